package game

import (
	"math"
	"math/rand"
)

// PlayerColor is the fixed color of the human-controlled snake.
const PlayerColor = "#00ffcc"

// Controller selects where a snake's intent comes from each tick.
// It is either PlayerControlled or AIControlled.
type Controller interface {
	controller()
}

// PlayerControlled snakes follow the external Intent passed to the tick.
type PlayerControlled struct{}

// AIControlled snakes are steered by a bot policy that owns State.
type AIControlled struct {
	State *AIState
}

func (PlayerControlled) controller() {}
func (AIControlled) controller()     {}

// AIState is the per-bot memory kept between ticks.
type AIState struct {
	TargetHeading float64 // last heading chosen by foraging or wandering
	Timer         int     // number of steering evaluations so far
}

// Snake is one trailing-path entity. Path is most-recent-first and doubles
// as the collision body.
type Snake struct {
	ID      uint32
	Name    string
	Pos     Point
	Heading float64
	Speed   float64
	Score   int
	Dead    bool
	Boost   bool // true when the last advance ran at boosted speed
	Path    []Point
	Color   string
	Control Controller
}

// IsPlayer reports whether the snake follows external intent.
func (s *Snake) IsPlayer() bool {
	_, ok := s.Control.(PlayerControlled)
	return ok
}

// AI returns the bot state, or nil for the player.
func (s *Snake) AI() *AIState {
	if c, ok := s.Control.(AIControlled); ok {
		return c.State
	}
	return nil
}

// Radius is derived from score on every call so growth shows up at once.
func (s *Snake) Radius(cfg Config) float64 {
	return RadiusFor(cfg, s.Score)
}

// RadiusFor is the body radius of a snake with the given score.
func RadiusFor(cfg Config, score int) float64 {
	if score < 0 {
		score = 0
	}
	return cfg.BaseRadius + math.Sqrt(float64(score))*cfg.RadiusFactor
}

// Tail is the oldest path point, or the head when the path is empty.
func (s *Snake) Tail() Point {
	if len(s.Path) == 0 {
		return s.Pos
	}
	return s.Path[len(s.Path)-1]
}

// Alive is the inverse of Dead, tolerant of nil.
func (s *Snake) Alive() bool {
	return s != nil && !s.Dead
}

func (w *World) newSnake(name, color string, ctl Controller) *Snake {
	cfg := w.Config
	pos := Point{
		X: (w.Rand.Float64() - 0.5) * cfg.Half(),
		Y: (w.Rand.Float64() - 0.5) * cfg.Half(),
	}
	heading := w.Rand.Float64() * 2 * math.Pi
	path := make([]Point, cfg.StartPathLen)
	for i := range path {
		path[i] = pos
	}
	return &Snake{
		ID:      w.newID(),
		Name:    name,
		Pos:     pos,
		Heading: NormalizeAngle(heading),
		Speed:   cfg.BaseSpeed,
		Score:   cfg.StartScore,
		Path:    path,
		Color:   color,
		Control: ctl,
	}
}

// NewPlayer spawns the player snake at a random position.
func (w *World) NewPlayer(name string) *Snake {
	return w.newSnake(name, PlayerColor, PlayerControlled{})
}

// NewBot spawns a bot whose initial target is its own spawn heading.
func (w *World) NewBot(name string) *Snake {
	s := w.newSnake(name, RandomColor(w.Rand), AIControlled{State: &AIState{}})
	s.AI().TargetHeading = s.Heading
	return s
}

func randomParticle(rng *rand.Rand, p Point, color string) Particle {
	return Particle{
		Pos:   p,
		Vel:   Point{X: (rng.Float64() - 0.5) * 4, Y: (rng.Float64() - 0.5) * 4},
		Color: color,
		Size:  rng.Float64()*3 + 2,
		Life:  1,
	}
}
