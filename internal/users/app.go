package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mathduel/internal/auth"
	"mathduel/internal/models"
)

// UsersRepository defines what the app layer needs from the repository.
type UsersRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.User, error)
}

// App handles account business logic.
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App.
func NewApp(repo UsersRepository) *App {
	return &App{repo: repo}
}

// Register creates an account with a hashed password.
func (a *App) Register(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if existing, err := a.repo.GetUserByUsername(ctx, username); err == nil && existing != nil {
		return nil, fmt.Errorf("user with username %s already exists", username)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.repo.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Authenticate verifies a username/password pair.
func (a *App) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

// GetUser loads a user by id.
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return a.repo.GetUser(ctx, id)
}

// Leaderboard returns the top rated players.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return a.repo.Leaderboard(ctx, limit)
}

func validateCredentials(username, password string) error {
	if len(username) < 3 || len(username) > 20 {
		return fmt.Errorf("username must be 3-20 characters")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}
