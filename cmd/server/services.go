package main

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"mathduel/internal/auth"
	"mathduel/internal/game"
	"mathduel/internal/gateway"
	"mathduel/internal/httpapi"
	"mathduel/internal/match"
	"mathduel/internal/matchmaking"
	"mathduel/internal/outbox"
	"mathduel/internal/users"
)

type Services struct {
	Users   *users.App
	Game    *game.App
	Gateway *gateway.Service
	HTTP    *httpapi.Handler
	Outbox  *outbox.Worker
	Queue   *matchmaking.Queue
}

func setupServices(database *sql.DB, cfg *Config) *Services {
	// Wire up dependency injection chain
	// Database layer -> Repository layer -> App layer -> Transport layer
	clock := clockwork.NewRealClock()

	secret := getEnv("TOKEN_SECRET", "")
	if secret == "" {
		log.Fatal().Msg("TOKEN_SECRET environment variable is required")
	}
	tokens := auth.NewTokenService([]byte(secret), cfg.tokenTTL(), clock)

	// Users
	userRepo := users.NewRepository(database)
	userApp := users.NewApp(userRepo)

	// Matches
	matchRepo := match.NewRepository(database)
	store := match.NewStore()
	queue := matchmaking.NewQueue(matchmaking.DefaultConfig(), clock)

	// Gateway and game app reference each other: the gateway dispatches
	// client events into the app, the app broadcasts through the gateway.
	gatewaySvc := gateway.NewService(gateway.DefaultConfig(), tokens)

	gameCfg := game.DefaultConfig()
	if cfg.Match.QuestionCount > 0 {
		gameCfg.QuestionCount = cfg.Match.QuestionCount
	}
	if cfg.Match.StartDifficulty > 0 {
		gameCfg.StartDifficulty = cfg.Match.StartDifficulty
	}
	gameApp := game.NewApp(queue, store, matchRepo, userRepo, gatewaySvc.ConnectionManager(), clock, gameCfg)
	gatewaySvc.SetApp(gameApp)

	// REST surface
	httpHandler := httpapi.NewHandler(userApp, tokens)

	// Outbox relay
	outboxLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	var publisher outbox.EventPublisher
	if cfg.Nats.URL != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Nats.URL
		jsPublisher, err := outbox.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream publisher")
		}
		publisher = jsPublisher
	} else {
		log.Warn().Msg("NATS_URL not set, outbox events are logged only")
		publisher = outbox.NewMockPublisher(outboxLogger)
	}

	outboxCfg := outbox.DefaultConfig()
	outboxCfg.PollInterval = cfg.outboxPollInterval()
	outboxWorker := outbox.NewWorker(database, publisher, outboxCfg, outboxLogger)

	return &Services{
		Users:   userApp,
		Game:    gameApp,
		Gateway: gatewaySvc,
		HTTP:    httpHandler,
		Outbox:  outboxWorker,
		Queue:   queue,
	}
}
