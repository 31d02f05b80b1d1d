package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mathduel/internal/models"
	"mathduel/internal/sqlutil"
)

// Repository persists durable match records, answer events, and their outbox
// mirrors. All writes are idempotent on the same input; callers surface but
// do not retry failures inline.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a match repository over the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateMatchRequest carries everything needed for the durable match row.
type CreateMatchRequest struct {
	ID        uuid.UUID
	Player1ID uuid.UUID
	Player2ID uuid.UUID
	Questions []models.Question
}

// RecordAnswerEventRequest is one answer submission to be audited.
type RecordAnswerEventRequest struct {
	MatchID       uuid.UUID
	PlayerID      uuid.UUID
	QuestionIndex int
	Answer        int
	Correct       bool
	ElapsedMs     int64
}

// CreateMatch inserts the durable record for a freshly paired match.
func (r *Repository) CreateMatch(ctx context.Context, req CreateMatchRequest) error {
	questionsJSON, err := json.Marshal(req.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, questions, status)
		VALUES ($1, $2, $3, $4, 'in_progress')
		ON CONFLICT (id) DO NOTHING`,
		req.ID, req.Player1ID, req.Player2ID, questionsJSON)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// UpdateScore stores a player's current score on the match row.
func (r *Repository) UpdateScore(ctx context.Context, matchID, playerID uuid.UUID, score int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET player1_score = CASE WHEN player1_id = $2 THEN $3 ELSE player1_score END,
		    player2_score = CASE WHEN player2_id = $2 THEN $3 ELSE player2_score END
		WHERE id = $1`,
		matchID, playerID, score)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	return nil
}

// RecordAnswerEvent writes the audit row and its outbox mirror in one
// transaction, so the audit publication is durably retried even if the
// session is evicted right after.
func (r *Repository) RecordAnswerEvent(ctx context.Context, req RecordAnswerEventRequest, outboxPayload []byte) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_events (match_id, player_id, question_index, answer, correct, elapsed_ms)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			req.MatchID, req.PlayerID, req.QuestionIndex, req.Answer, req.Correct, req.ElapsedMs); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, req.MatchID, "answer_submitted", outboxPayload)
	})
	if err != nil {
		return fmt.Errorf("failed to record answer event: %w", err)
	}
	return nil
}

// FinishMatch marks the durable match record finished and queues the
// match_finished audit event.
func (r *Repository) FinishMatch(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID, p1Score, p2Score int, outboxPayload []byte) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		var winner sql.NullString
		if winnerID != nil {
			winner = sql.NullString{String: winnerID.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE matches
			SET status = 'finished',
			    winner_id = $2,
			    player1_score = $3,
			    player2_score = $4,
			    finished_at = NOW()
			WHERE id = $1 AND status <> 'finished'`,
			matchID, winner, p1Score, p2Score); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, matchID, "match_finished", outboxPayload)
	})
	if err != nil {
		return fmt.Errorf("failed to finish match: %w", err)
	}
	return nil
}

// GetMatch loads a durable match record.
func (r *Repository) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, player1_id, player2_id, questions, player1_score, player2_score,
		       winner_id, status, created_at, finished_at
		FROM matches WHERE id = $1`, id)

	var (
		m             models.Match
		questionsJSON []byte
		winner        sql.NullString
		finishedAt    sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Player1ID, &m.Player2ID, &questionsJSON,
		&m.Player1Score, &m.Player2Score, &winner, &m.Status, &m.CreatedAt, &finishedAt); err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if err := json.Unmarshal(questionsJSON, &m.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	if winner.Valid {
		id, err := uuid.Parse(winner.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse winner id: %w", err)
		}
		m.WinnerID = &id
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		m.FinishedAt = &t
	}
	return &m, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, matchID uuid.UUID, eventType string, payload []byte) error {
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_outbox (id, match_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), matchID, eventType, payload, time.Now().UTC())
	return err
}
