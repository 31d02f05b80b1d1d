// Package outbox drains durable match events from Postgres into JetStream.
// Rows are written in the same transaction as the match state they describe
// and relayed asynchronously by the worker.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one undelivered row from the match_outbox table.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	MatchID   uuid.UUID       `json:"match_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// EventPublisher delivers outbox events to the downstream broker.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
