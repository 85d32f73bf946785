// Package steering decides where bot snakes want to go each tick.
//
// The Heuristic policy ranks its rules strictly: keep off the arena edge,
// then keep the look-ahead point off other snakes' trails, then (on a slower
// cadence) chase the best visible pellet or occasionally wander. Only the
// foraging rule updates the bot's remembered target heading; hazard rules
// return a one-off heading and leave the memory alone.
package steering

import (
	"math"
	"math/rand"

	"github.com/kelvin0611/Mini-io-games/game"
)

// Policy produces a bot's intent for the current tick. Implementations may
// mutate st but must not mutate the world.
type Policy interface {
	Steer(w *game.World, self *game.Snake, st *game.AIState, rng *rand.Rand) game.Intent
}

// Config tunes the Heuristic policy.
type Config struct {
	LookAheadBase      float64 // look-ahead distance = radius*LookAheadRadiusMul + LookAheadBase
	LookAheadRadiusMul float64
	WallInset          float64 // the bot treats Half()-WallInset as the edge

	ThreatRange  float64 // other snakes whose head is farther are ignored
	ThreatStride int     // every Nth trail point is sampled
	ThreatMargin float64 // clearance added to both radii
	EvadeAngle   float64 // deflection from the current heading when evading

	ForageEvery   int // foraging runs when Timer%ForageEvery == 0
	ForageSamples int
	ForageRange   float64
	ForageCone    float64 // pellets at or beyond this angle off the nose are ignored
	ForwardBonus  float64
	AnglePenalty  float64 // score lost per radian off the nose
	WanderChance  float64
	WanderSpread  float64 // max perturbation either way, radians
}

// DefaultConfig reproduces the browser game's bots.
func DefaultConfig() Config {
	return Config{
		LookAheadBase:      50,
		LookAheadRadiusMul: 4,
		WallInset:          150,
		ThreatRange:        600,
		ThreatStride:       3,
		ThreatMargin:       20,
		EvadeAngle:         2 * math.Pi / 3,
		ForageEvery:        5,
		ForageSamples:      20,
		ForageRange:        500,
		ForageCone:         2 * math.Pi / 3,
		ForwardBonus:       100,
		AnglePenalty:       50,
		WanderChance:       0.02,
		WanderSpread:       1,
	}
}

// Heuristic is the rule-based bot brain.
type Heuristic struct {
	Config Config
}

// NewHeuristic returns a Heuristic with cfg, filling unusable strides and
// cadences with defaults.
func NewHeuristic(cfg Config) *Heuristic {
	def := DefaultConfig()
	if cfg.ThreatStride < 1 {
		cfg.ThreatStride = def.ThreatStride
	}
	if cfg.ForageEvery < 1 {
		cfg.ForageEvery = def.ForageEvery
	}
	return &Heuristic{Config: cfg}
}

// Default returns a Heuristic with DefaultConfig.
func Default() *Heuristic {
	return NewHeuristic(DefaultConfig())
}

// LookAhead is the projected point the bot checks for hazards.
func (h *Heuristic) LookAhead(cfg game.Config, self *game.Snake) game.Point {
	dist := self.Radius(cfg)*h.Config.LookAheadRadiusMul + h.Config.LookAheadBase
	return game.Project(self.Pos, self.Heading, dist)
}

func (h *Heuristic) Steer(w *game.World, self *game.Snake, st *game.AIState, rng *rand.Rand) game.Intent {
	st.Timer++
	look := h.LookAhead(w.Config, self)

	if heading, ok := h.avoidWall(w.Config, look); ok {
		return game.Intent{TargetHeading: heading}
	}
	if heading, ok := h.avoidTrails(w, self, look); ok {
		return game.Intent{TargetHeading: heading}
	}

	if st.Timer%h.Config.ForageEvery == 0 {
		h.forage(w, self, st, rng)
	}
	return game.Intent{TargetHeading: st.TargetHeading}
}

// avoidWall returns the cardinal heading back toward the center on the first
// violated axis, x before y.
func (h *Heuristic) avoidWall(cfg game.Config, look game.Point) (float64, bool) {
	limit := cfg.Half() - h.Config.WallInset
	switch {
	case look.X < -limit:
		return 0, true
	case look.X > limit:
		return math.Pi, true
	case look.Y < -limit:
		return math.Pi / 2, true
	case look.Y > limit:
		return -math.Pi / 2, true
	}
	return 0, false
}

// avoidTrails deflects away from the first sampled trail point near the
// look-ahead point. The side is picked from the sign of
// (look-ahead direction) × (direction to the threat).
func (h *Heuristic) avoidTrails(w *game.World, self *game.Snake, look game.Point) (float64, bool) {
	cfg := w.Config
	selfR := self.Radius(cfg)
	ahead := look.Sub(self.Pos)
	for _, other := range w.Snakes() {
		if other == self || other.Dead {
			continue
		}
		if game.Distance(self.Pos, other.Pos) > h.Config.ThreatRange {
			continue
		}
		clearance := other.Radius(cfg) + selfR + h.Config.ThreatMargin
		for i := 0; i < len(other.Path); i += h.Config.ThreatStride {
			pt := other.Path[i]
			if game.Distance(look, pt) >= clearance {
				continue
			}
			turn := h.Config.EvadeAngle
			if game.Cross(ahead, pt.Sub(self.Pos)) > 0 {
				turn = -turn
			}
			return game.NormalizeAngle(self.Heading + turn), true
		}
	}
	return 0, false
}

// forage samples pellets at random and aims at the best one in the forward
// cone, scoring closer and more central pellets higher. With nothing in
// sight it occasionally nudges the remembered heading so the bot keeps
// exploring.
func (h *Heuristic) forage(w *game.World, self *game.Snake, st *game.AIState, rng *rand.Rand) {
	c := h.Config
	var best *game.Food
	bestScore := math.Inf(-1)
	if n := len(w.Food); n > 0 {
		for i := 0; i < c.ForageSamples; i++ {
			f := &w.Food[rng.Intn(n)]
			d := game.Distance(self.Pos, f.Pos)
			if d > c.ForageRange {
				continue
			}
			off := math.Abs(game.AngleDiff(game.Bearing(self.Pos, f.Pos), self.Heading))
			if off >= c.ForageCone {
				continue
			}
			score := (c.ForageRange - d) + (c.ForwardBonus - off*c.AnglePenalty)
			if score > bestScore {
				bestScore = score
				best = f
			}
		}
	}

	if best != nil {
		st.TargetHeading = game.Bearing(self.Pos, best.Pos)
		return
	}
	if rng.Float64() < c.WanderChance {
		st.TargetHeading = game.NormalizeAngle(st.TargetHeading + (rng.Float64()-0.5)*2*c.WanderSpread)
	}
}
