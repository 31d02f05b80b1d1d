package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the connection manager and the websocket handler.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates the gateway service. The connection manager implements
// the game broadcaster contract; bind the app with SetApp before serving.
func NewService(config Config, tokens TokenVerifier) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, tokens),
	}
}

// SetApp binds the protocol layer the gateway dispatches into.
func (s *Service) SetApp(app GameApp) {
	s.connectionManager.SetApp(app)
}

// ConnectionManager exposes the broadcaster for wiring into the game app.
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.connectionManager
}

// Start runs the broadcast loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("gateway service stopped")
	return nil
}

// RegisterRoutes registers the websocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service.
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "gateway"
	stats["status"] = "running"
	return stats
}
