package questions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathduel/internal/models"
)

func TestGenerateDeterministic(t *testing.T) {
	seeds := []string{"a", "match-123", "p1-p2-1700000000000", ""}
	for _, seed := range seeds {
		first := Generate(seed, DefaultCount, DefaultStartDifficulty)
		second := Generate(seed, DefaultCount, DefaultStartDifficulty)
		assert.Equal(t, first, second, "seed %q must be reproducible", seed)
	}
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	a := Generate("seed-a", DefaultCount, DefaultStartDifficulty)
	b := Generate("seed-b", DefaultCount, DefaultStartDifficulty)
	assert.NotEqual(t, a, b)
}

func TestGenerateLength(t *testing.T) {
	for _, count := range []int{1, 5, 20, 50} {
		qs := Generate("len-seed", count, DefaultStartDifficulty)
		assert.Len(t, qs, count)
	}
}

func TestGenerateQuestionsAreSolvable(t *testing.T) {
	qs := Generate("solvable", 200, DefaultStartDifficulty)
	for i, q := range qs {
		switch q.Op {
		case models.OpAdd:
			assert.Equal(t, q.A+q.B, q.Answer, "question %d", i)
		case models.OpSub:
			assert.Equal(t, q.A-q.B, q.Answer, "question %d", i)
			assert.GreaterOrEqual(t, q.Answer, 0, "question %d: no negative results", i)
		case models.OpMul:
			assert.Equal(t, q.A*q.B, q.Answer, "question %d", i)
		case models.OpDiv:
			require.NotZero(t, q.B, "question %d", i)
			assert.Zero(t, q.A%q.B, "question %d: division must be exact", i)
			assert.Equal(t, q.A/q.B, q.Answer, "question %d", i)
		default:
			t.Fatalf("question %d: unknown operator %q", i, q.Op)
		}
	}
}

func TestGenerateOperandBounds(t *testing.T) {
	qs := Generate("bounds", 100, DefaultStartDifficulty)
	for i, q := range qs {
		assert.Positive(t, q.A, "question %d", i)
		assert.Positive(t, q.B, "question %d", i)
		if q.Op == models.OpDiv {
			// Constructed as divisor * quotient with caps 15 and 20.
			assert.LessOrEqual(t, q.A, 15*20, "question %d", i)
		}
	}
}

func TestHashSeedNonNegative(t *testing.T) {
	for _, s := range []string{"", "a", "zzzzzzzzzzzz", "0-0-0"} {
		assert.GreaterOrEqual(t, hashSeed(s), int32(0), "seed %q", s)
	}
}
