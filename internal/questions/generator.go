// Package questions generates deterministic arithmetic problem sequences.
// Both players of a match receive the byte-identical sequence, so all
// randomness is driven by a seeded linear congruential generator rather than
// any shared global source.
package questions

import (
	"mathduel/internal/models"
)

const (
	// DefaultCount is the number of questions per match.
	DefaultCount = 20
	// DefaultStartDifficulty is the difficulty at question index 0.
	DefaultStartDifficulty = 1
)

// lcg is a linear congruential generator over the positive int32 range.
type lcg struct {
	seed int64
}

func newLCG(seed int32) *lcg {
	return &lcg{seed: int64(seed)}
}

// next returns a uniform value in [0, 1).
func (r *lcg) next() float64 {
	r.seed = (r.seed*1103515245 + 12345) & 0x7fffffff
	return float64(r.seed) / float64(0x7fffffff)
}

// rangeInt returns a uniform integer in [min, max].
func (r *lcg) rangeInt(min, max int) int {
	return int(r.next()*float64(max-min+1)) + min
}

// hashSeed derives a non-negative 32-bit seed from an arbitrary string.
func hashSeed(s string) int32 {
	var hash int32
	for _, c := range []byte(s) {
		hash = hash<<5 - hash + int32(c)
	}
	if hash < 0 {
		return -hash
	}
	return hash
}

// Generate produces an ordered question sequence from a seed string. The same
// seed always yields the identical sequence. Difficulty ramps from
// startDifficulty up by 3 across the sequence, shifting operator selection
// from addition/subtraction toward multiplication/division.
func Generate(seed string, count, startDifficulty int) []models.Question {
	rng := newLCG(hashSeed(seed))
	qs := make([]models.Question, 0, count)

	for i := 0; i < count; i++ {
		progress := float64(i) / float64(count)
		difficulty := float64(startDifficulty) + progress*3

		var op models.Operator
		roll := rng.next()
		switch {
		case difficulty < 1.5:
			// Easy: mostly addition/subtraction.
			switch {
			case roll < 0.6:
				op = models.OpAdd
			case roll < 0.9:
				op = models.OpSub
			case roll < 0.95:
				op = models.OpMul
			default:
				op = models.OpDiv
			}
		case difficulty < 2.5:
			// Balanced.
			switch {
			case roll < 0.3:
				op = models.OpAdd
			case roll < 0.5:
				op = models.OpSub
			case roll < 0.8:
				op = models.OpMul
			default:
				op = models.OpDiv
			}
		default:
			// Hard: mostly multiplication/division.
			switch {
			case roll < 0.15:
				op = models.OpAdd
			case roll < 0.25:
				op = models.OpSub
			case roll < 0.7:
				op = models.OpMul
			default:
				op = models.OpDiv
			}
		}

		qs = append(qs, generateQuestion(rng, op, difficulty))
	}

	return qs
}

func generateQuestion(rng *lcg, op models.Operator, difficulty float64) models.Question {
	maxNum := 10 + int(difficulty*10)
	if maxNum > 100 {
		maxNum = 100
	}

	var a, b, answer int
	switch op {
	case models.OpAdd:
		a = rng.rangeInt(1, maxNum)
		b = rng.rangeInt(1, maxNum)
		answer = a + b

	case models.OpSub:
		// a >= b keeps results non-negative.
		a = rng.rangeInt(10, maxNum)
		b = rng.rangeInt(1, a)
		answer = a - b

	case models.OpMul:
		// Keep one operand small so problems stay mental-arithmetic sized.
		a = rng.rangeInt(2, 10)
		b = rng.rangeInt(2, 100)
		answer = a * b

	case models.OpDiv:
		// Pick divisor and quotient first and multiply up, so the result is
		// always an exact integer.
		b = rng.rangeInt(2, minInt(maxNum, 15))
		answer = rng.rangeInt(2, minInt(maxNum, 20))
		a = b * answer
	}

	return models.Question{Op: op, A: a, B: b, Answer: answer}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
