// Package match owns the live state of in-progress duels: per-session
// progress, scores, question sets, and the finish/tie-break adjudication.
package match

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mathduel/internal/models"
)

// Store holds every live session, keyed by match id, with a routing index
// from player id to their active match. Constructed at server start and torn
// down with it; there is no package-level state.
type Store struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*Session
	playerMatch map[uuid.UUID]uuid.UUID
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions:    make(map[uuid.UUID]*Session),
		playerMatch: make(map[uuid.UUID]uuid.UUID),
	}
}

// Create allocates a live session for a freshly paired match and registers
// it under both participants. Sessions start in progress; there is no
// observable waiting state.
func (st *Store) Create(matchID uuid.UUID, p1, p2 Participant, qs []models.Question) *Session {
	session := newSession(matchID, p1, p2, qs)

	st.mu.Lock()
	st.sessions[matchID] = session
	st.playerMatch[p1.ID] = matchID
	st.playerMatch[p2.ID] = matchID
	st.mu.Unlock()

	log.Info().
		Str("match_id", matchID.String()).
		Str("player1_id", p1.ID.String()).
		Str("player2_id", p2.ID.String()).
		Int("questions", len(qs)).
		Msg("match session created")

	return session
}

// Get returns the live session for a match, or nil if none exists.
func (st *Store) Get(matchID uuid.UUID) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[matchID]
}

// MatchFor returns the match a player is currently in.
func (st *Store) MatchFor(playerID uuid.UUID) (uuid.UUID, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.playerMatch[playerID]
	return id, ok
}

// Remove evicts a finished session and its routing entries. The ephemeral
// first-finisher marker dies with the session.
func (st *Store) Remove(matchID uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[matchID]
	if !ok {
		return
	}
	p1, p2 := session.Players()
	delete(st.sessions, matchID)
	delete(st.playerMatch, p1)
	delete(st.playerMatch, p2)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
