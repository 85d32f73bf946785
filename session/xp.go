package session

import "math"

// XPPerScore converts a round's final score into experience points.
const XPPerScore = 5

// XPReward is the experience granted for a round that ended at score.
func XPReward(score int) int {
	if score <= 0 {
		return 0
	}
	return score * XPPerScore
}

// Level maps accumulated experience to a player level starting at 1.
func Level(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}
