package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"mathduel/internal/auth"
)

// TokenVerifier authenticates handshake tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// WebSocketHandler handles websocket upgrade requests.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	tokens            TokenVerifier
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(cm *ConnectionManager, tokens TokenVerifier) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		tokens:            tokens,
	}
}

// HandleConnection authenticates the request and upgrades it to a
// websocket. Auth failures reject before the upgrade.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	identity, err := h.tokens.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, identity.UserID, identity.Username); err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID.String()).
			Msg("failed to upgrade websocket connection")
		// Upgrade already wrote the HTTP error response.
		return
	}
}

// extractToken reads the session token from the query string or the
// Authorization header. Browsers cannot set headers on websocket
// handshakes, so the query parameter is the primary path.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers websocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
