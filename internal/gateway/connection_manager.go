// Package gateway owns the websocket transport: handshake auth, connection
// pools, and the fan-out of game events to players.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mathduel/internal/game/events"
)

// GameApp is the protocol layer the gateway dispatches decoded client
// events into.
type GameApp interface {
	JoinQueue(ctx context.Context, userID uuid.UUID, username string)
	LeaveQueue(ctx context.Context, userID uuid.UUID)
	JoinMatch(ctx context.Context, userID, matchID uuid.UUID)
	SubmitAnswer(ctx context.Context, userID uuid.UUID, req events.SubmitAnswerPayload)
	Disconnect(userID uuid.UUID)
}

// ConnectionManager tracks live websocket connections. Connections are
// indexed by user for direct sends and, once a client joins a match, by
// match ID for broadcasts.
type ConnectionManager struct {
	userConnections  map[uuid.UUID]map[*Connection]bool
	matchConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	app      GameApp

	broadcastCh chan broadcastMessage
}

// Connection represents one websocket client.
type Connection struct {
	ID       string
	UserID   uuid.UUID
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// matchID is set when the client sends join_match. Guarded by the
	// manager mutex.
	matchID uuid.UUID

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	// Exactly one of matchID/userID is set.
	matchID uuid.UUID
	userID  uuid.UUID
	toUser  bool
	event   *events.Event
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a websocket connection manager. The app is
// wired afterwards with SetApp because the app itself sends through this
// manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		userConnections:  make(map[uuid.UUID]map[*Connection]bool),
		matchConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000), // Buffer for high throughput
	}
}

// SetApp binds the protocol layer. Must be called before the HTTP routes
// accept connections.
func (cm *ConnectionManager) SetApp(app GameApp) {
	cm.app = app
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an authenticated HTTP request to a websocket
// and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID, username string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Username:    username,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Str("username", username).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.userConnections[conn.UserID] == nil {
		cm.userConnections[conn.UserID] = make(map[*Connection]bool)
	}
	cm.userConnections[conn.UserID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Int("user_connections", len(cm.userConnections[conn.UserID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.userConnections[conn.UserID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}

	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.userConnections, conn.UserID)
	}

	if conn.matchID != uuid.Nil {
		if pool, ok := cm.matchConnections[conn.matchID]; ok {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(cm.matchConnections, conn.matchID)
			}
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Msg("connection unregistered")
}

// subscribeToMatch moves a connection into a match broadcast pool. A
// connection belongs to at most one match at a time.
func (cm *ConnectionManager) subscribeToMatch(conn *Connection, matchID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn.matchID != uuid.Nil {
		if pool, ok := cm.matchConnections[conn.matchID]; ok {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(cm.matchConnections, conn.matchID)
			}
		}
	}

	conn.matchID = matchID
	if cm.matchConnections[matchID] == nil {
		cm.matchConnections[matchID] = make(map[*Connection]bool)
	}
	cm.matchConnections[matchID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("match_id", matchID.String()).
		Int("match_connections", len(cm.matchConnections[matchID])).
		Msg("connection subscribed to match")
}

// BroadcastToMatch queues an event for every connection subscribed to the
// match. Implements the game broadcaster contract.
func (cm *ConnectionManager) BroadcastToMatch(matchID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{matchID: matchID, event: event}:
	default:
		log.Warn().Str("match_id", matchID.String()).Msg("broadcast channel full, dropping message")
	}
}

// SendToUser queues an event for every connection of a single user.
func (cm *ConnectionManager) SendToUser(userID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{userID: userID, toUser: true, event: event}:
	default:
		log.Warn().Str("user_id", userID.String()).Msg("broadcast channel full, dropping user message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.toUser {
		for conn := range cm.userConnections[message.userID] {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.matchConnections[message.matchID] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	eventData, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.event.Type)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	for _, connections := range cm.userConnections {
		totalConnections += len(connections)
	}

	return map[string]interface{}{
		"total_connections": totalConnections,
		"connected_users":   len(cm.userConnections),
		"active_matches":    len(cm.matchConnections),
	}
}

// writePump handles sending messages to the websocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads client frames and dispatches decoded events into the app.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		c.Manager.app.Disconnect(c.UserID)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes one client event and routes it. Malformed
// frames are logged and dropped without closing the connection.
func (c *Connection) handleClientMessage(message []byte) {
	var event events.Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID.String()).
			Msg("malformed client message")
		return
	}

	ctx := context.Background()

	switch event.Type {
	case events.TypeJoinQueue:
		c.Manager.app.JoinQueue(ctx, c.UserID, c.Username)

	case events.TypeLeaveQueue:
		c.Manager.app.LeaveQueue(ctx, c.UserID)

	case events.TypeJoinMatch:
		var payload events.JoinMatchPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			log.Debug().Str("connection_id", c.ID).Msg("malformed join_match payload")
			return
		}
		matchID, err := uuid.Parse(payload.MatchID)
		if err != nil {
			log.Debug().Str("connection_id", c.ID).Str("match_id", payload.MatchID).Msg("invalid match id")
			return
		}
		c.Manager.subscribeToMatch(c, matchID)
		c.Manager.app.JoinMatch(ctx, c.UserID, matchID)

	case events.TypeSubmitAnswer:
		var payload events.SubmitAnswerPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			log.Debug().Str("connection_id", c.ID).Msg("malformed submit_answer payload")
			return
		}
		c.Manager.app.SubmitAnswer(ctx, c.UserID, payload)

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("unknown client event type")
	}
}
