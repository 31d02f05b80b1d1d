// Package rating implements the logistic (ELO) rating update applied after a
// decisive match.
package rating

import "math"

// KFactor is the standard ELO K constant used for every update.
const KFactor = 32

// Expected returns the expected score of a player rated a against a player
// rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Calculate returns the new ratings after a decisive result. The winner's
// rating never decreases and the loser's never increases.
func Calculate(winnerRating, loserRating int) (winnerNew, loserNew int) {
	winnerNew = int(math.Round(float64(winnerRating) + KFactor*(1-Expected(winnerRating, loserRating))))
	loserNew = int(math.Round(float64(loserRating) + KFactor*(0-Expected(loserRating, winnerRating))))
	return winnerNew, loserNew
}
