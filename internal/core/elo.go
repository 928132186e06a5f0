package core

import "math"

// KFactor is the fixed ELO K used for duel rating updates.
const KFactor = 32

// ExpectedScore returns the probability that a player rated self beats a
// player rated opponent under the ELO model.
func ExpectedScore(self, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-self)/400))
}

// RatingDelta returns the rating points the winner gains. The loser loses the
// same amount, so duels are zero-sum; both sides use this single rounded
// value.
func RatingDelta(winnerRating, loserRating int) int {
	return int(math.Round(KFactor * (1 - ExpectedScore(winnerRating, loserRating))))
}
