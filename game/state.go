// Package game defines the entity and world types for the snek.io arena.
//
// A World is one round: a player snake, a population of bot snakes, the food
// set and cosmetic particles, plus the seeded random source every tick draws
// from. The types carry no behavior beyond construction and bookkeeping; the
// per-tick transition lives in package rules.
package game

import (
	"fmt"
	"math/rand"
)

// Phase is the round state.
type Phase uint8

const (
	Playing Phase = iota
	Over
)

func (p Phase) String() string {
	if p == Over {
		return "over"
	}
	return "playing"
}

// World is the aggregate owning every entity of a round. It is mutated in
// place by rules.Step and must not be shared between goroutines.
type World struct {
	Config Config
	Tick   int64
	Phase  Phase

	Player    *Snake // nil for bot-only rounds
	Bots      []*Snake
	Food      []Food
	Particles []Particle

	Rand *rand.Rand
	Seed int64

	// src backs own, the Rand the world was built with.
	src *pcgSource
	own *rand.Rand

	nextID uint32
	botSeq int
}

// NewWorld starts a round with a player, BotCount bots and MaxFood pellets.
func NewWorld(cfg Config, seed int64) (*World, error) {
	w, err := NewEmptyWorld(cfg, seed)
	if err != nil {
		return nil, err
	}
	w.Player = w.NewPlayer("You")
	w.Populate()
	return w, nil
}

// NewEmptyWorld returns a world with no entities. Tests and bot-only rounds
// build on it.
func NewEmptyWorld(cfg Config, seed int64) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := newPCGSource(seed)
	rng := rand.New(src)
	return &World{
		Config: cfg,
		Rand:   rng,
		Seed:   seed,
		src:    src,
		own:    rng,
	}, nil
}

// Populate fills bots and food up to their targets.
func (w *World) Populate() {
	for len(w.Bots) < w.Config.BotCount {
		w.AddBot()
	}
	for len(w.Food) < w.Config.MaxFood {
		w.SpawnFood()
	}
}

// AddBot spawns and appends a fresh bot.
func (w *World) AddBot() *Snake {
	w.botSeq++
	b := w.NewBot(fmt.Sprintf("Bot %d", w.botSeq))
	w.Bots = append(w.Bots, b)
	return b
}

func (w *World) newID() uint32 {
	w.nextID++
	return w.nextID
}

// Snakes returns the player (if present) followed by the bots. The order is
// the gameplay order for pickups and collisions.
func (w *World) Snakes() []*Snake {
	out := make([]*Snake, 0, len(w.Bots)+1)
	if w.Player != nil {
		out = append(out, w.Player)
	}
	return append(out, w.Bots...)
}

// Living returns Snakes filtered to the ones not dead.
func (w *World) Living() []*Snake {
	out := make([]*Snake, 0, len(w.Bots)+1)
	for _, s := range w.Snakes() {
		if !s.Dead {
			out = append(out, s)
		}
	}
	return out
}

// LivingBots counts bots not yet marked dead.
func (w *World) LivingBots() int {
	n := 0
	for _, b := range w.Bots {
		if !b.Dead {
			n++
		}
	}
	return n
}

// Clone performs a deep copy of the world, random source included. The
// source world's stream is not consumed, and the copy draws the same values
// the original will, so stepping both with the same intents keeps them equal.
func (w *World) Clone() *World {
	if w == nil {
		return nil
	}
	var src *pcgSource
	if w.src != nil && w.Rand == w.own {
		src = w.src.clone()
	} else {
		// A Rand swapped in from outside cannot be copied; derive a fresh
		// stream from the round's seed and tick instead of drawing from it.
		src = newPCGSource(w.Seed ^ int64(uint64(w.Tick)*pcgStream))
	}
	rng := rand.New(src)
	out := &World{
		Config: w.Config,
		Tick:   w.Tick,
		Phase:  w.Phase,
		Rand:   rng,
		Seed:   w.Seed,
		src:    src,
		own:    rng,
		nextID: w.nextID,
		botSeq: w.botSeq,
	}
	out.Player = cloneSnake(w.Player)
	if len(w.Bots) > 0 {
		out.Bots = make([]*Snake, len(w.Bots))
		for i, b := range w.Bots {
			out.Bots[i] = cloneSnake(b)
		}
	}
	if len(w.Food) > 0 {
		out.Food = make([]Food, len(w.Food))
		copy(out.Food, w.Food)
	}
	if len(w.Particles) > 0 {
		out.Particles = make([]Particle, len(w.Particles))
		copy(out.Particles, w.Particles)
	}
	return out
}

func cloneSnake(s *Snake) *Snake {
	if s == nil {
		return nil
	}
	c := *s
	if len(s.Path) > 0 {
		c.Path = make([]Point, len(s.Path))
		copy(c.Path, s.Path)
	}
	if ai := s.AI(); ai != nil {
		st := *ai
		c.Control = AIControlled{State: &st}
	}
	return &c
}
