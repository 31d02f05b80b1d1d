package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus represents the lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusFinished   MatchStatus = "finished"
)

// Match is the durable record of a head-to-head duel.
type Match struct {
	ID           uuid.UUID   `json:"id"`
	Player1ID    uuid.UUID   `json:"player1Id"`
	Player2ID    uuid.UUID   `json:"player2Id"`
	Questions    []Question  `json:"questions"`
	Player1Score int         `json:"player1Score"`
	Player2Score int         `json:"player2Score"`
	WinnerID     *uuid.UUID  `json:"winnerId"`
	Status       MatchStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	FinishedAt   *time.Time  `json:"finishedAt"`
}

// MatchEvent is one recorded answer submission, kept for audit.
type MatchEvent struct {
	ID            int64     `json:"id"`
	MatchID       uuid.UUID `json:"matchId"`
	PlayerID      uuid.UUID `json:"playerId"`
	QuestionIndex int       `json:"questionIndex"`
	Answer        int       `json:"answer"`
	Correct       bool      `json:"correct"`
	ElapsedMs     int64     `json:"elapsedMs"`
	CreatedAt     time.Time `json:"createdAt"`
}
