package rules

import (
	"math"

	"github.com/kelvin0611/Mini-io-games/game"
)

// TurnTo rotates heading toward target by at most rate radians, taking the
// shorter way round. A target within one step is reached exactly.
func TurnTo(heading, target, rate float64) float64 {
	diff := game.AngleDiff(target, heading)
	if math.Abs(diff) < rate {
		return game.NormalizeAngle(target)
	}
	if diff > 0 {
		return game.NormalizeAngle(heading + rate)
	}
	return game.NormalizeAngle(heading - rate)
}

// MaxPathLen is the number of trail points a snake of the given score keeps
// at the given speed. Faster snakes keep sparser history. A non-positive
// speed falls back to the base speed.
func MaxPathLen(cfg game.Config, score int, speed float64) float64 {
	if speed <= 0 {
		speed = cfg.BaseSpeed
	}
	if score < 0 {
		score = 0
	}
	return float64(score) * cfg.LengthFactor / (speed * 0.5)
}

// Advance moves one snake a single tick: turn, pick a speed, pay the boost
// cost, integrate, check the arena edge and maintain the trail. A snake that
// leaves the arena is marked dead and its trail is left untouched.
func Advance(w *game.World, s *game.Snake, in game.Intent) {
	if s == nil || s.Dead {
		return
	}
	cfg := w.Config

	s.Heading = TurnTo(s.Heading, in.TargetHeading, cfg.TurnSpeed)

	s.Boost = in.Boost && s.Score > cfg.BoostMinScore
	if s.Boost {
		s.Speed = cfg.BoostSpeed
		if w.Rand.Float64() < cfg.BoostDropChance {
			s.Score--
			w.DropFood(s.Tail(), 1, s.Color)
		}
	} else {
		s.Speed = cfg.BaseSpeed
	}

	s.Pos = game.Project(s.Pos, s.Heading, s.Speed)
	if !game.InSquare(s.Pos, cfg.Half()) {
		s.Dead = true
		return
	}

	s.Path = append(s.Path, game.Point{})
	copy(s.Path[1:], s.Path)
	s.Path[0] = s.Pos

	limit := MaxPathLen(cfg, s.Score, s.Speed)
	n := len(s.Path)
	for n > 0 && float64(n) > limit {
		n--
	}
	s.Path = s.Path[:n]
}
