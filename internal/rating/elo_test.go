package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateEvenMatch(t *testing.T) {
	winnerNew, loserNew := Calculate(1000, 1000)
	assert.Equal(t, 1016, winnerNew)
	assert.Equal(t, 984, loserNew)
}

func TestCalculateUpset(t *testing.T) {
	// A low-rated winner takes more points than an even match grants.
	winnerNew, loserNew := Calculate(1000, 1400)
	assert.Greater(t, winnerNew-1000, 16)
	assert.Less(t, 1400-loserNew, KFactor+1)
}

func TestCalculateMonotonic(t *testing.T) {
	cases := []struct{ winner, loser int }{
		{1000, 1000},
		{1200, 800},
		{800, 1200},
		{1500, 1501},
		{2400, 1000},
	}
	for _, c := range cases {
		winnerNew, loserNew := Calculate(c.winner, c.loser)
		assert.GreaterOrEqual(t, winnerNew, c.winner, "winner %d vs %d", c.winner, c.loser)
		assert.LessOrEqual(t, loserNew, c.loser, "loser %d vs %d", c.winner, c.loser)
	}
}

func TestExpectedSymmetry(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1000, 1000), 1e-9)
	assert.InDelta(t, 1.0, Expected(1000, 1000)+Expected(1000, 1000), 1e-9)
	assert.InDelta(t, 1.0, Expected(1100, 900)+Expected(900, 1100), 1e-9)
}
