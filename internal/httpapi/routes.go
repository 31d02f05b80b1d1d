// Package httpapi exposes the REST surface: account management, the
// current-user endpoint, and the leaderboard.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mathduel/internal/auth"
	"mathduel/internal/models"
	"mathduel/internal/users"
)

// TokenMinter issues session tokens for authenticated users.
type TokenMinter interface {
	Mint(userID uuid.UUID, username string) (string, error)
	Verify(token string) (*auth.Identity, error)
}

// Handler serves the REST routes.
type Handler struct {
	users  *users.App
	tokens TokenMinter
}

// NewHandler creates the REST handler.
func NewHandler(usersApp *users.App, tokens TokenMinter) *Handler {
	return &Handler{users: usersApp, tokens: tokens}
}

// RegisterRoutes registers the REST routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/me", h.handleMe)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
	log.Info().Msg("http api routes registered")
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"gamesPlayed"`
	GamesWon    int       `json:"gamesWon"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Rating:      u.Rating,
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
		CreatedAt:   u.CreatedAt,
	}
}

// handleRegister handles POST /api/auth/register.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeAuthResponse(w, http.StatusCreated, user)
}

// handleLogin handles POST /api/auth/login.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.writeAuthResponse(w, http.StatusOK, user)
}

// handleMe handles GET /api/me for the token bearer.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleLeaderboard handles GET /api/leaderboard?limit=N.
func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	top, err := h.users.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load leaderboard")
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	out := make([]userResponse, 0, len(top))
	for _, u := range top {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeAuthResponse(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.tokens.Mint(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to mint token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}

	identity, err := h.tokens.Verify(header[len(prefix):])
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return identity, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
