package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mathduel/internal/models"
	"mathduel/internal/sqlutil"
)

// Repository implements user data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user with the default rating and returns the row.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password_hash, rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, rating, games_played, games_won, created_at`,
		uuid.New(), username, passwordHash, models.DefaultRating)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, rating, games_played, games_won, created_at
		FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, rating, games_played, games_won, created_at
		FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// ApplyMatchResult stores both new ratings and bumps the counters for a
// decisive result in one transaction: both played counters increment, only
// the winner's won counter does.
func (r *Repository) ApplyMatchResult(ctx context.Context, winnerID, loserID uuid.UUID, winnerRating, loserRating int) error {
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET rating = $2, games_played = games_played + 1, games_won = games_won + 1
			WHERE id = $1`, winnerID, winnerRating); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE users
			SET rating = $2, games_played = games_played + 1
			WHERE id = $1`, loserID, loserRating)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply match result: %w", err)
	}
	return nil
}

// ApplyDraw bumps games played for both players with no rating change.
func (r *Repository) ApplyDraw(ctx context.Context, player1ID, player2ID uuid.UUID) error {
	ids := []string{player1ID.String(), player2ID.String()}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET games_played = games_played + 1 WHERE id = ANY($1::uuid[])`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to apply draw: %w", err)
	}
	return nil
}

// Leaderboard returns the top players ordered by rating.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, password_hash, rating, games_played, games_won, created_at
		FROM users ORDER BY rating DESC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Rating,
		&u.GamesPlayed, &u.GamesWon, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
