package game

import "math"

// Intent is the per-tick input for a single snake.
type Intent struct {
	TargetHeading float64
	Boost         bool
}

// PointerIntent converts a pointer position into a heading relative to the
// screen center, where the player's head is drawn.
func PointerIntent(pointerX, pointerY, centerX, centerY float64, boostHeld bool) Intent {
	return Intent{
		TargetHeading: math.Atan2(pointerY-centerY, pointerX-centerX),
		Boost:         boostHeld,
	}
}

// HoldIntent keeps the snake on heading without boosting.
func HoldIntent(heading float64) Intent {
	return Intent{TargetHeading: heading}
}
