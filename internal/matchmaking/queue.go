// Package matchmaking holds waiting players and pairs them by rating
// proximity with a tolerance that widens the longer a player waits.
package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Entry is one waiting player. Owned exclusively by the queue from enqueue
// until pairing, removal, or staleness eviction.
type Entry struct {
	PlayerID    uuid.UUID
	DisplayName string
	Rating      int
	EnqueuedAt  time.Time
}

// Config holds queue tuning parameters.
type Config struct {
	// ToleranceBase is the rating difference accepted immediately.
	ToleranceBase int
	// ToleranceStep widens the acceptable difference per ExpandInterval waited.
	ToleranceStep  int
	ExpandInterval time.Duration
	// MaxWait is how long an entry may sit before the sweep evicts it.
	MaxWait       time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the production queue parameters.
func DefaultConfig() Config {
	return Config{
		ToleranceBase:  100,
		ToleranceStep:  50,
		ExpandInterval: 10 * time.Second,
		MaxWait:        60 * time.Second,
		SweepInterval:  30 * time.Second,
	}
}

// Queue is a mutex-guarded, insertion-ordered matchmaking queue. The queue
// lock is never held while any session lock is acquired.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry

	clock clockwork.Clock
	cfg   Config
}

// NewQueue creates a queue using the given clock for all wait-time math.
func NewQueue(cfg Config, clock clockwork.Clock) *Queue {
	return &Queue{
		entries: make([]*Entry, 0),
		clock:   clock,
		cfg:     cfg,
	}
}

// Enqueue adds a player to the back of the queue and returns the resulting
// queue size. If the player is already queued the old entry is replaced and
// its wait time discarded.
func (q *Queue) Enqueue(playerID uuid.UUID, displayName string, playerRating int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(playerID)
	q.entries = append(q.entries, &Entry{
		PlayerID:    playerID,
		DisplayName: displayName,
		Rating:      playerRating,
		EnqueuedAt:  q.clock.Now(),
	})
	return len(q.entries)
}

// Dequeue removes the player's entry if present; no-op otherwise.
func (q *Queue) Dequeue(playerID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(playerID)
}

// TryPair looks for the first queued opponent (in insertion order) within the
// player's current rating tolerance. On success both entries are removed
// atomically and returned; otherwise the queue is left unchanged.
func (q *Queue) TryPair(playerID uuid.UUID) (player, opponent *Entry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	player = q.findLocked(playerID)
	if player == nil {
		return nil, nil, false
	}

	waited := q.clock.Now().Sub(player.EnqueuedAt)
	tolerance := q.cfg.ToleranceBase + int(waited/q.cfg.ExpandInterval)*q.cfg.ToleranceStep

	for _, candidate := range q.entries {
		if candidate.PlayerID == playerID {
			continue
		}
		diff := candidate.Rating - player.Rating
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			q.removeLocked(player.PlayerID)
			q.removeLocked(candidate.PlayerID)
			return player, candidate, true
		}
	}

	return nil, nil, false
}

// EvictStale removes every entry older than maxWait and returns how many
// were dropped.
func (q *Queue) EvictStale(maxWait time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	kept := q.entries[:0]
	evicted := 0
	for _, e := range q.entries {
		if now.Sub(e.EnqueuedAt) < maxWait {
			kept = append(kept, e)
		} else {
			evicted++
		}
	}
	q.entries = kept
	return evicted
}

// Size returns the number of waiting players.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether the player is currently queued.
func (q *Queue) Contains(playerID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.findLocked(playerID) != nil
}

// RunSweeper evicts stale entries on a fixed period until ctx is cancelled.
func (q *Queue) RunSweeper(ctx context.Context) {
	ticker := q.clock.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", q.cfg.SweepInterval).
		Dur("max_wait", q.cfg.MaxWait).
		Msg("matchmaking sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("matchmaking sweeper stopped")
			return
		case <-ticker.Chan():
			if n := q.EvictStale(q.cfg.MaxWait); n > 0 {
				log.Debug().Int("evicted", n).Msg("evicted stale queue entries")
			}
		}
	}
}

func (q *Queue) findLocked(playerID uuid.UUID) *Entry {
	for _, e := range q.entries {
		if e.PlayerID == playerID {
			return e
		}
	}
	return nil
}

func (q *Queue) removeLocked(playerID uuid.UUID) {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}
