package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"mathduel/internal/dbconfig"
)

func setupDatabase() (*sql.DB, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := bootstrapSchema(database); err != nil {
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return database, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		rating INT NOT NULL DEFAULT 1000,
		games_played INT NOT NULL DEFAULT 0,
		games_won INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id UUID PRIMARY KEY,
		player1_id UUID NOT NULL REFERENCES users(id),
		player2_id UUID NOT NULL REFERENCES users(id),
		questions JSONB NOT NULL,
		player1_score INT NOT NULL DEFAULT 0,
		player2_score INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'in_progress',
		winner_id UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS match_events (
		id BIGSERIAL PRIMARY KEY,
		match_id UUID NOT NULL REFERENCES matches(id),
		player_id UUID NOT NULL REFERENCES users(id),
		question_index INT NOT NULL,
		answer INT NOT NULL,
		correct BOOLEAN NOT NULL,
		elapsed_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS match_outbox (
		id UUID PRIMARY KEY,
		match_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		sent_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_match_outbox_unsent ON match_outbox (created_at) WHERE sent_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_rating ON users (rating DESC)`,
}

func bootstrapSchema(database *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
