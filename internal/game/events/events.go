// Package events defines the wire envelopes exchanged over a player's
// websocket. It sits below both the game app and the gateway to avoid
// cyclic imports.
package events

import (
	"encoding/json"
	"fmt"

	"mathduel/internal/match"
	"mathduel/internal/models"
)

// EventType identifies a wire event.
type EventType string

// Client-to-server events.
const (
	TypeJoinQueue    EventType = "join_queue"
	TypeLeaveQueue   EventType = "leave_queue"
	TypeJoinMatch    EventType = "join_match"
	TypeSubmitAnswer EventType = "submit_answer"
)

// Server-to-client events.
const (
	TypeQueueJoined     EventType = "queue_joined"
	TypeQueueLeft       EventType = "queue_left"
	TypeMatchFound      EventType = "match_found"
	TypeMatchState      EventType = "match_state"
	TypeAnswerSubmitted EventType = "answer_submitted"
	TypeMatchFinished   EventType = "match_finished"
)

// Event is the envelope for every message in either direction.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps a payload into an envelope.
func New(t EventType, payload any) (*Event, error) {
	if payload == nil {
		return &Event{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &Event{Type: t, Payload: data}, nil
}

// Opponent is the peer descriptor inside match_found.
type Opponent struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// QueueJoinedPayload acknowledges a join_queue.
type QueueJoinedPayload struct {
	QueueSize int `json:"queueSize"`
}

// MatchFoundPayload is sent individually to each participant with the other
// player as the opponent.
type MatchFoundPayload struct {
	MatchID   string            `json:"matchId"`
	Opponent  Opponent          `json:"opponent"`
	Questions []models.Question `json:"questions"`
}

// MatchStatePayload is the full session snapshot sent on join_match.
type MatchStatePayload struct {
	match.Snapshot
}

// AnswerSubmittedPayload is broadcast to both participants after every
// accepted submission.
type AnswerSubmittedPayload struct {
	PlayerID        string `json:"playerId"`
	QuestionIndex   int    `json:"questionIndex"`
	Correct         bool   `json:"correct"`
	NewScore        int    `json:"newScore"`
	CurrentQuestion int    `json:"currentQuestion"`
}

// FinalScores carries both raw scores of a finished match.
type FinalScores struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// MatchFinishedPayload is broadcast to both participants; the session is
// removed afterwards. WinnerID is null for a true draw.
type MatchFinishedPayload struct {
	WinnerID      *string     `json:"winnerId"`
	FinalScores   FinalScores `json:"finalScores"`
	FirstToFinish *string     `json:"firstToFinish"`
}

// JoinMatchPayload subscribes the connection to a match broadcast group.
type JoinMatchPayload struct {
	MatchID string `json:"matchId"`
}

// SubmitAnswerPayload is one answer submission from a client.
type SubmitAnswerPayload struct {
	MatchID       string `json:"matchId"`
	QuestionIndex int    `json:"questionIndex"`
	Answer        int    `json:"answer"`
	ElapsedMs     int64  `json:"elapsedMs"`
}
