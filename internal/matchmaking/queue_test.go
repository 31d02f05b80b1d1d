package matchmaking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue() (*Queue, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewQueue(DefaultConfig(), clock), clock
}

func TestEnqueueReplacesExistingEntry(t *testing.T) {
	q, clock := newTestQueue()
	id := uuid.New()

	size := q.Enqueue(id, "alice", 1000)
	assert.Equal(t, 1, size)

	clock.Advance(25 * time.Second)
	size = q.Enqueue(id, "alice", 1000)
	assert.Equal(t, 1, size, "re-enqueue must replace, not duplicate")

	// Wait time was discarded, so the tolerance is back at base and a
	// 150-point gap is not yet acceptable.
	q.Enqueue(uuid.New(), "bob", 1150)
	_, _, ok := q.TryPair(id)
	assert.False(t, ok)
}

func TestDequeueMissingIsNoop(t *testing.T) {
	q, _ := newTestQueue()
	q.Dequeue(uuid.New())
	assert.Equal(t, 0, q.Size())
}

func TestTryPairWithinBaseTolerance(t *testing.T) {
	q, _ := newTestQueue()
	a := uuid.New()
	b := uuid.New()
	q.Enqueue(a, "alice", 1000)
	q.Enqueue(b, "bob", 1080)

	player, opponent, ok := q.TryPair(a)
	require.True(t, ok)
	assert.Equal(t, a, player.PlayerID)
	assert.Equal(t, b, opponent.PlayerID)
	assert.Equal(t, 0, q.Size(), "both entries removed atomically")
}

func TestTryPairFirstInQueueOrder(t *testing.T) {
	q, _ := newTestQueue()
	a := uuid.New()
	first := uuid.New()
	closer := uuid.New()
	q.Enqueue(a, "alice", 1000)
	q.Enqueue(first, "bob", 1090)
	q.Enqueue(closer, "carol", 1001)

	_, opponent, ok := q.TryPair(a)
	require.True(t, ok)
	assert.Equal(t, first, opponent.PlayerID, "first acceptable wins, not best")
	assert.True(t, q.Contains(closer))
}

func TestTryPairToleranceExpandsWithWait(t *testing.T) {
	q, clock := newTestQueue()
	a := uuid.New()
	b := uuid.New()
	q.Enqueue(a, "alice", 1000)
	q.Enqueue(b, "bob", 1500)

	_, _, ok := q.TryPair(a)
	assert.False(t, ok, "500 apart must not pair immediately")

	// 100 + floor(70s/10s)*50 = 450, still short.
	clock.Advance(70 * time.Second)
	_, _, ok = q.TryPair(a)
	assert.False(t, ok)

	// 100 + floor(80s/10s)*50 = 500.
	clock.Advance(10 * time.Second)
	_, _, ok = q.TryPair(a)
	assert.True(t, ok)
}

func TestTryPairUnknownPlayer(t *testing.T) {
	q, _ := newTestQueue()
	q.Enqueue(uuid.New(), "alice", 1000)

	_, _, ok := q.TryPair(uuid.New())
	assert.False(t, ok)
	assert.Equal(t, 1, q.Size(), "queue unchanged")
}

func TestTryPairAloneInQueue(t *testing.T) {
	q, _ := newTestQueue()
	a := uuid.New()
	q.Enqueue(a, "alice", 1000)

	_, _, ok := q.TryPair(a)
	assert.False(t, ok)
	assert.True(t, q.Contains(a))
}

func TestEvictStale(t *testing.T) {
	q, clock := newTestQueue()
	old := uuid.New()
	q.Enqueue(old, "alice", 1000)

	clock.Advance(45 * time.Second)
	fresh := uuid.New()
	q.Enqueue(fresh, "bob", 1000)

	clock.Advance(20 * time.Second)
	evicted := q.EvictStale(60 * time.Second)

	assert.Equal(t, 1, evicted)
	assert.False(t, q.Contains(old))
	assert.True(t, q.Contains(fresh))
}
