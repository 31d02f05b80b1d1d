package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathduel/internal/game/events"
	"mathduel/internal/match"
	"mathduel/internal/matchmaking"
	"mathduel/internal/models"
)

type fakeMatchRepo struct {
	mu            sync.Mutex
	created       []match.CreateMatchRequest
	scoreUpdates  int
	answerEvents  []match.RecordAnswerEventRequest
	finishedCalls int
}

func (f *fakeMatchRepo) CreateMatch(ctx context.Context, req match.CreateMatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return nil
}

func (f *fakeMatchRepo) UpdateScore(ctx context.Context, matchID, playerID uuid.UUID, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreUpdates++
	return nil
}

func (f *fakeMatchRepo) RecordAnswerEvent(ctx context.Context, req match.RecordAnswerEventRequest, outboxPayload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerEvents = append(f.answerEvents, req)
	return nil
}

func (f *fakeMatchRepo) FinishMatch(ctx context.Context, matchID uuid.UUID, winnerID *uuid.UUID, p1Score, p2Score int, outboxPayload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishedCalls++
	return nil
}

type matchResult struct {
	winnerID, loserID        uuid.UUID
	winnerRating, loserRating int
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	results []matchResult
	draws   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) addUser(username string, userRating int) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.New(), Username: username, Rating: userRating}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, assert.AnError
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) ApplyMatchResult(ctx context.Context, winnerID, loserID uuid.UUID, winnerRating, loserRating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, matchResult{winnerID, loserID, winnerRating, loserRating})
	f.users[winnerID].Rating = winnerRating
	f.users[loserID].Rating = loserRating
	return nil
}

func (f *fakeUserRepo) ApplyDraw(ctx context.Context, player1ID, player2ID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draws++
	return nil
}

type fakeBroadcaster struct {
	mu         sync.Mutex
	userEvents map[uuid.UUID][]*events.Event
	matchEvents map[uuid.UUID][]*events.Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		userEvents:  make(map[uuid.UUID][]*events.Event),
		matchEvents: make(map[uuid.UUID][]*events.Event),
	}
}

func (f *fakeBroadcaster) BroadcastToMatch(matchID uuid.UUID, event *events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchEvents[matchID] = append(f.matchEvents[matchID], event)
}

func (f *fakeBroadcaster) SendToUser(userID uuid.UUID, event *events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userEvents[userID] = append(f.userEvents[userID], event)
}

func (f *fakeBroadcaster) lastUserEvent(userID uuid.UUID, t events.EventType) *events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := f.userEvents[userID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == t {
			return evs[i]
		}
	}
	return nil
}

func (f *fakeBroadcaster) matchEventsOfType(matchID uuid.UUID, t events.EventType) []*events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*events.Event
	for _, ev := range f.matchEvents[matchID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestApp() (*App, *fakeMatchRepo, *fakeUserRepo, *fakeBroadcaster) {
	clock := clockwork.NewFakeClock()
	queue := matchmaking.NewQueue(matchmaking.DefaultConfig(), clock)
	store := match.NewStore()
	matchRepo := &fakeMatchRepo{}
	userRepo := newFakeUserRepo()
	broadcaster := newFakeBroadcaster()
	app := NewApp(queue, store, matchRepo, userRepo, broadcaster, clock, DefaultConfig())
	return app, matchRepo, userRepo, broadcaster
}

func TestJoinQueueAloneDoesNotPair(t *testing.T) {
	app, matchRepo, userRepo, broadcaster := newTestApp()
	alice := userRepo.addUser("alice", 1000)

	app.JoinQueue(context.Background(), alice.ID, alice.Username)

	joined := broadcaster.lastUserEvent(alice.ID, events.TypeQueueJoined)
	require.NotNil(t, joined)
	var payload events.QueueJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &payload))
	assert.Equal(t, 1, payload.QueueSize)
	assert.Empty(t, matchRepo.created)
}

func TestLeaveQueueAcks(t *testing.T) {
	app, _, userRepo, broadcaster := newTestApp()
	alice := userRepo.addUser("alice", 1000)

	app.JoinQueue(context.Background(), alice.ID, alice.Username)
	app.LeaveQueue(context.Background(), alice.ID)

	assert.NotNil(t, broadcaster.lastUserEvent(alice.ID, events.TypeQueueLeft))

	// Bob joining afterwards finds nobody.
	bob := userRepo.addUser("bob", 1000)
	app.JoinQueue(context.Background(), bob.ID, bob.Username)
	assert.Nil(t, broadcaster.lastUserEvent(bob.ID, events.TypeMatchFound))
}

func TestPairingSendsIdenticalQuestions(t *testing.T) {
	app, matchRepo, userRepo, broadcaster := newTestApp()
	alice := userRepo.addUser("alice", 1000)
	bob := userRepo.addUser("bob", 1050)

	app.JoinQueue(context.Background(), alice.ID, alice.Username)
	app.JoinQueue(context.Background(), bob.ID, bob.Username)

	require.Len(t, matchRepo.created, 1)

	aliceFound := broadcaster.lastUserEvent(alice.ID, events.TypeMatchFound)
	bobFound := broadcaster.lastUserEvent(bob.ID, events.TypeMatchFound)
	require.NotNil(t, aliceFound)
	require.NotNil(t, bobFound)

	var alicePayload, bobPayload events.MatchFoundPayload
	require.NoError(t, json.Unmarshal(aliceFound.Payload, &alicePayload))
	require.NoError(t, json.Unmarshal(bobFound.Payload, &bobPayload))

	assert.Equal(t, alicePayload.MatchID, bobPayload.MatchID)
	assert.Equal(t, alicePayload.Questions, bobPayload.Questions, "both players must see identical problems")
	assert.Len(t, alicePayload.Questions, DefaultConfig().QuestionCount)
	assert.Equal(t, bob.ID.String(), alicePayload.Opponent.ID)
	assert.Equal(t, alice.ID.String(), bobPayload.Opponent.ID)
}

func TestJoinMatchReturnsSnapshot(t *testing.T) {
	app, _, userRepo, broadcaster := newTestApp()
	alice := userRepo.addUser("alice", 1000)
	bob := userRepo.addUser("bob", 1000)

	app.JoinQueue(context.Background(), alice.ID, alice.Username)
	app.JoinQueue(context.Background(), bob.ID, bob.Username)

	found := broadcaster.lastUserEvent(alice.ID, events.TypeMatchFound)
	var foundPayload events.MatchFoundPayload
	require.NoError(t, json.Unmarshal(found.Payload, &foundPayload))
	matchID := uuid.MustParse(foundPayload.MatchID)

	app.JoinMatch(context.Background(), alice.ID, matchID)

	state := broadcaster.lastUserEvent(alice.ID, events.TypeMatchState)
	require.NotNil(t, state)
	var snapshot events.MatchStatePayload
	require.NoError(t, json.Unmarshal(state.Payload, &snapshot))
	assert.Equal(t, matchID, snapshot.MatchID)
	assert.Equal(t, models.MatchStatusInProgress, snapshot.Status)
}

// Full duel: both players answer the shared sequence, scores end equal, and
// the first to exhaust the questions takes the win and the rating points.
func TestFullMatchFirstFinisherBreaksTie(t *testing.T) {
	app, matchRepo, userRepo, broadcaster := newTestApp()
	ctx := context.Background()
	alice := userRepo.addUser("alice", 1000)
	bob := userRepo.addUser("bob", 1000)

	app.JoinQueue(ctx, alice.ID, alice.Username)
	app.JoinQueue(ctx, bob.ID, bob.Username)

	found := broadcaster.lastUserEvent(alice.ID, events.TypeMatchFound)
	require.NotNil(t, found)
	var foundPayload events.MatchFoundPayload
	require.NoError(t, json.Unmarshal(found.Payload, &foundPayload))
	matchID := uuid.MustParse(foundPayload.MatchID)
	qs := foundPayload.Questions
	n := len(qs)
	require.Equal(t, 20, n)

	submit := func(userID uuid.UUID, index, answer int) {
		app.SubmitAnswer(ctx, userID, events.SubmitAnswerPayload{
			MatchID:       matchID.String(),
			QuestionIndex: index,
			Answer:        answer,
			ElapsedMs:     1500,
		})
	}

	// Bob answers the first n-2 questions correctly.
	for i := 0; i < n-2; i++ {
		submit(bob.ID, i, qs[i].Answer)
	}
	// Alice answers everything, missing only the last question: n-1 correct,
	// 1 wrong, leaving her score equal to Bob's n-2.
	for i := 0; i < n-1; i++ {
		submit(alice.ID, i, qs[i].Answer)
	}
	submit(alice.ID, n-1, qs[n-1].Answer+1)

	finished := broadcaster.matchEventsOfType(matchID, events.TypeMatchFinished)
	require.Len(t, finished, 1, "exactly one match_finished broadcast")

	var result events.MatchFinishedPayload
	require.NoError(t, json.Unmarshal(finished[0].Payload, &result))
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, alice.ID.String(), *result.WinnerID, "equal scores go to the first finisher")
	assert.Equal(t, n-2, result.FinalScores.Player1)
	assert.Equal(t, n-2, result.FinalScores.Player2)
	require.NotNil(t, result.FirstToFinish)
	assert.Equal(t, alice.ID.String(), *result.FirstToFinish)

	// Ratings applied exactly once, K=32 even match.
	require.Len(t, userRepo.results, 1)
	assert.Equal(t, alice.ID, userRepo.results[0].winnerID)
	assert.Equal(t, 1016, userRepo.results[0].winnerRating)
	assert.Equal(t, 984, userRepo.results[0].loserRating)
	assert.Zero(t, userRepo.draws)
	assert.Equal(t, 1, matchRepo.finishedCalls)

	// The session is gone: late submissions are dropped silently.
	before := len(broadcaster.matchEventsOfType(matchID, events.TypeAnswerSubmitted))
	submit(bob.ID, n-2, qs[n-2].Answer)
	after := len(broadcaster.matchEventsOfType(matchID, events.TypeAnswerSubmitted))
	assert.Equal(t, before, after)
}

func TestHigherScoreBeatsFasterFinisher(t *testing.T) {
	app, _, userRepo, broadcaster := newTestApp()
	ctx := context.Background()
	alice := userRepo.addUser("alice", 1200)
	bob := userRepo.addUser("bob", 1100)

	app.JoinQueue(ctx, alice.ID, alice.Username)
	app.JoinQueue(ctx, bob.ID, bob.Username)

	found := broadcaster.lastUserEvent(alice.ID, events.TypeMatchFound)
	var foundPayload events.MatchFoundPayload
	require.NoError(t, json.Unmarshal(found.Payload, &foundPayload))
	matchID := uuid.MustParse(foundPayload.MatchID)
	qs := foundPayload.Questions
	n := len(qs)

	// Bob banks a big lead without finishing.
	for i := 0; i < n-1; i++ {
		app.SubmitAnswer(ctx, bob.ID, events.SubmitAnswerPayload{
			MatchID: matchID.String(), QuestionIndex: i, Answer: qs[i].Answer,
		})
	}
	// Alice rushes through answering everything wrong and finishes first.
	for i := 0; i < n; i++ {
		app.SubmitAnswer(ctx, alice.ID, events.SubmitAnswerPayload{
			MatchID: matchID.String(), QuestionIndex: i, Answer: qs[i].Answer + 1,
		})
	}

	finished := broadcaster.matchEventsOfType(matchID, events.TypeMatchFinished)
	require.Len(t, finished, 1)
	var result events.MatchFinishedPayload
	require.NoError(t, json.Unmarshal(finished[0].Payload, &result))
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, bob.ID.String(), *result.WinnerID, "score wins regardless of finisher order")
	require.Len(t, userRepo.results, 1)
	assert.Equal(t, bob.ID, userRepo.results[0].winnerID)
}

func TestDisconnectWhileQueuedRemovesEntry(t *testing.T) {
	app, matchRepo, userRepo, broadcaster := newTestApp()
	ctx := context.Background()
	alice := userRepo.addUser("alice", 1000)
	bob := userRepo.addUser("bob", 1000)

	app.JoinQueue(ctx, alice.ID, alice.Username)
	app.Disconnect(alice.ID)

	app.JoinQueue(ctx, bob.ID, bob.Username)
	assert.Nil(t, broadcaster.lastUserEvent(bob.ID, events.TypeMatchFound))
	assert.Empty(t, matchRepo.created)
}
