package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered player.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Rating       int       `json:"rating"`
	GamesPlayed  int       `json:"gamesPlayed"`
	GamesWon     int       `json:"gamesWon"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DefaultRating is the rating assigned to new players.
const DefaultRating = 1000
