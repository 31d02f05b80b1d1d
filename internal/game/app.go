// Package game implements the session protocol: queueing, pairing, live
// answer handling, and finish adjudication. The gateway feeds it decoded
// client events; it talks back through the Broadcaster interface.
package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"mathduel/internal/game/events"
	"mathduel/internal/match"
	"mathduel/internal/matchmaking"
	"mathduel/internal/models"
	"mathduel/internal/questions"
	"mathduel/internal/rating"
)

// MatchRepository defines what the app needs from durable match storage.
type MatchRepository interface {
	CreateMatch(ctx context.Context, req match.CreateMatchRequest) error
	UpdateScore(ctx context.Context, matchID, playerID uuid.UUID, score int) error
	RecordAnswerEvent(ctx context.Context, req match.RecordAnswerEventRequest, outboxPayload []byte) error
	FinishMatch(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID, p1Score, p2Score int, outboxPayload []byte) error
}

// UserRepository defines what the app needs from user storage.
type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ApplyMatchResult(ctx context.Context, winnerID, loserID uuid.UUID, winnerRating, loserRating int) error
	ApplyDraw(ctx context.Context, player1ID, player2ID uuid.UUID) error
}

// Broadcaster delivers events to connected players. Sends are fire-and-forget
// and must never block the caller on peer I/O.
type Broadcaster interface {
	BroadcastToMatch(matchID uuid.UUID, event *events.Event)
	SendToUser(userID uuid.UUID, event *events.Event)
}

// Config holds match parameters.
type Config struct {
	QuestionCount   int
	StartDifficulty int
}

// DefaultConfig returns the production match parameters.
func DefaultConfig() Config {
	return Config{
		QuestionCount:   questions.DefaultCount,
		StartDifficulty: questions.DefaultStartDifficulty,
	}
}

// App coordinates the matchmaking queue, the live session store, and the
// persistence collaborators.
type App struct {
	queue       *matchmaking.Queue
	store       *match.Store
	matchRepo   MatchRepository
	userRepo    UserRepository
	broadcaster Broadcaster
	clock       clockwork.Clock
	cfg         Config
}

// NewApp wires the game app.
func NewApp(queue *matchmaking.Queue, store *match.Store, matchRepo MatchRepository, userRepo UserRepository, broadcaster Broadcaster, clock clockwork.Clock, cfg Config) *App {
	return &App{
		queue:       queue,
		store:       store,
		matchRepo:   matchRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		clock:       clock,
		cfg:         cfg,
	}
}

// JoinQueue enqueues the player at their current rating and immediately
// attempts a pairing.
func (a *App) JoinQueue(ctx context.Context, userID uuid.UUID, username string) {
	user, err := a.userRepo.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("join_queue: failed to load user")
		return
	}

	size := a.queue.Enqueue(userID, username, user.Rating)
	a.sendToUser(userID, events.TypeQueueJoined, events.QueueJoinedPayload{QueueSize: size})

	player, opponent, ok := a.queue.TryPair(userID)
	if !ok {
		return
	}
	a.startMatch(ctx, player, opponent)
}

// LeaveQueue removes the player's queue entry.
func (a *App) LeaveQueue(ctx context.Context, userID uuid.UUID) {
	a.queue.Dequeue(userID)
	a.sendToUser(userID, events.TypeQueueLeft, nil)
}

// JoinMatch resyncs the caller with the full session snapshot. Unknown match
// ids are benign no-ops.
func (a *App) JoinMatch(ctx context.Context, userID, matchID uuid.UUID) {
	session := a.store.Get(matchID)
	if session == nil {
		log.Debug().Str("match_id", matchID.String()).Msg("join_match: no live session")
		return
	}
	a.sendToUser(userID, events.TypeMatchState, events.MatchStatePayload{Snapshot: session.Snapshot()})
}

// SubmitAnswer applies one submission and broadcasts the result. Invalid
// submissions (missing session, finished match, bad index, replay) are
// silently dropped per the protocol error design.
func (a *App) SubmitAnswer(ctx context.Context, userID uuid.UUID, req events.SubmitAnswerPayload) {
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		log.Debug().Str("match_id", req.MatchID).Msg("submit_answer: malformed match id")
		return
	}

	session := a.store.Get(matchID)
	if session == nil {
		log.Debug().Str("match_id", req.MatchID).Msg("submit_answer: no live session")
		return
	}

	res, ok := session.ApplyAnswer(userID, req.QuestionIndex, req.Answer)
	if !ok {
		log.Debug().
			Str("match_id", req.MatchID).
			Str("user_id", userID.String()).
			Int("question_index", req.QuestionIndex).
			Msg("submit_answer: dropped")
		return
	}

	payload := events.AnswerSubmittedPayload{
		PlayerID:        userID.String(),
		QuestionIndex:   req.QuestionIndex,
		Correct:         res.Correct,
		NewScore:        res.NewScore,
		CurrentQuestion: res.CurrentQuestion,
	}

	// Persistence failures are logged and the broadcast still goes out: the
	// live experience wins over strict consistency here.
	if err := a.matchRepo.UpdateScore(ctx, matchID, userID, res.NewScore); err != nil {
		log.Error().Err(err).Str("match_id", req.MatchID).Msg("failed to persist score")
	}
	if err := a.matchRepo.RecordAnswerEvent(ctx, match.RecordAnswerEventRequest{
		MatchID:       matchID,
		PlayerID:      userID,
		QuestionIndex: req.QuestionIndex,
		Answer:        req.Answer,
		Correct:       res.Correct,
		ElapsedMs:     req.ElapsedMs,
	}, mustMarshal(payload)); err != nil {
		log.Error().Err(err).Str("match_id", req.MatchID).Msg("failed to record answer event")
	}

	a.broadcastToMatch(matchID, events.TypeAnswerSubmitted, payload)

	if res.Finished {
		outcome, ok := session.Finish()
		if !ok {
			// Another submission already triggered adjudication.
			return
		}
		a.finishMatch(ctx, outcome)
	}
}

// Disconnect handles a dropped connection: a queued player is removed, but a
// live match is left running and simply stops receiving this peer's events.
func (a *App) Disconnect(userID uuid.UUID) {
	a.queue.Dequeue(userID)
}

func (a *App) startMatch(ctx context.Context, player, opponent *matchmaking.Entry) {
	matchID := uuid.New()
	seed := fmt.Sprintf("%s-%s-%d", player.PlayerID, opponent.PlayerID, a.clock.Now().UnixMilli())
	qs := questions.Generate(seed, a.cfg.QuestionCount, a.cfg.StartDifficulty)

	p1 := match.Participant{ID: player.PlayerID, DisplayName: player.DisplayName, Rating: player.Rating}
	p2 := match.Participant{ID: opponent.PlayerID, DisplayName: opponent.DisplayName, Rating: opponent.Rating}
	a.store.Create(matchID, p1, p2, qs)

	if err := a.matchRepo.CreateMatch(ctx, match.CreateMatchRequest{
		ID:        matchID,
		Player1ID: p1.ID,
		Player2ID: p2.ID,
		Questions: qs,
	}); err != nil {
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to persist match")
	}

	a.sendToUser(p1.ID, events.TypeMatchFound, events.MatchFoundPayload{
		MatchID:   matchID.String(),
		Opponent:  events.Opponent{ID: p2.ID.String(), DisplayName: p2.DisplayName},
		Questions: qs,
	})
	a.sendToUser(p2.ID, events.TypeMatchFound, events.MatchFoundPayload{
		MatchID:   matchID.String(),
		Opponent:  events.Opponent{ID: p1.ID.String(), DisplayName: p1.DisplayName},
		Questions: qs,
	})
}

func (a *App) finishMatch(ctx context.Context, outcome match.Outcome) {
	if outcome.WinnerID != nil {
		winnerID := *outcome.WinnerID
		loserID := outcome.Player1.PlayerID
		if loserID == winnerID {
			loserID = outcome.Player2.PlayerID
		}
		a.applyRatings(ctx, winnerID, loserID)
	} else {
		if err := a.userRepo.ApplyDraw(ctx, outcome.Player1.PlayerID, outcome.Player2.PlayerID); err != nil {
			log.Error().Err(err).Str("match_id", outcome.MatchID.String()).Msg("failed to apply draw")
		}
	}

	payload := events.MatchFinishedPayload{
		WinnerID:      uuidString(outcome.WinnerID),
		FinalScores:   events.FinalScores{Player1: outcome.Player1.Score, Player2: outcome.Player2.Score},
		FirstToFinish: uuidString(outcome.FirstToFinish),
	}

	if err := a.matchRepo.FinishMatch(ctx, outcome.MatchID, outcome.WinnerID,
		outcome.Player1.Score, outcome.Player2.Score, mustMarshal(payload)); err != nil {
		log.Error().Err(err).Str("match_id", outcome.MatchID.String()).Msg("failed to persist match result")
	}

	a.broadcastToMatch(outcome.MatchID, events.TypeMatchFinished, payload)
	a.store.Remove(outcome.MatchID)

	log.Info().
		Str("match_id", outcome.MatchID.String()).
		Int("player1_score", outcome.Player1.Score).
		Int("player2_score", outcome.Player2.Score).
		Bool("draw", outcome.Draw()).
		Msg("match finished")
}

func (a *App) applyRatings(ctx context.Context, winnerID, loserID uuid.UUID) {
	winner, err := a.userRepo.GetUser(ctx, winnerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", winnerID.String()).Msg("failed to load winner")
		return
	}
	loser, err := a.userRepo.GetUser(ctx, loserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", loserID.String()).Msg("failed to load loser")
		return
	}

	winnerNew, loserNew := rating.Calculate(winner.Rating, loser.Rating)
	if err := a.userRepo.ApplyMatchResult(ctx, winnerID, loserID, winnerNew, loserNew); err != nil {
		log.Error().Err(err).
			Str("winner_id", winnerID.String()).
			Str("loser_id", loserID.String()).
			Msg("failed to apply ratings")
	}
}

func (a *App) sendToUser(userID uuid.UUID, t events.EventType, payload any) {
	event, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	a.broadcaster.SendToUser(userID, event)
}

func (a *App) broadcastToMatch(matchID uuid.UUID, t events.EventType, payload any) {
	event, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	a.broadcaster.BroadcastToMatch(matchID, event)
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal outbox payload")
		return []byte("{}")
	}
	return data
}
