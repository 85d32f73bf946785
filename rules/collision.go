package rules

import (
	"github.com/kelvin0611/Mini-io-games/game"
)

// HitsBody reports whether a's head touches b's trail. Only every
// CollisionStride-th trail point is tested. The test is directional: it says
// nothing about b's head against a's trail.
func HitsBody(cfg game.Config, a, b *game.Snake) bool {
	if a == nil || b == nil || a == b || a.Dead || b.Dead {
		return false
	}
	reach := a.Radius(cfg) + b.Radius(cfg) - cfg.CollisionSlack
	for i := 0; i < len(b.Path); i += cfg.CollisionStride {
		if game.Distance(a.Pos, b.Path[i]) < reach {
			return true
		}
	}
	return false
}

// resolveCollisions tests every ordered pair of living snakes against the
// set alive at the start of the phase, then applies all deaths. Two snakes
// can therefore eliminate each other in the same tick.
func resolveCollisions(w *game.World) []game.Event {
	living := w.Living()
	type hit struct {
		victim *game.Snake
		killer *game.Snake
	}
	var hits []hit
	for _, s1 := range living {
		for _, s2 := range living {
			if HitsBody(w.Config, s1, s2) {
				hits = append(hits, hit{victim: s1, killer: s2})
				break
			}
		}
	}

	var events []game.Event
	for _, h := range hits {
		events = append(events, kill(w, h.victim, h.killer.Name, true)...)
	}
	return events
}

// kill marks s dead. A collision death scatters the trail as food and emits
// particles; a wall death leaves nothing behind. The player's death ends the
// round.
func kill(w *game.World, s *game.Snake, killer string, scatter bool) []game.Event {
	s.Dead = true
	if scatter {
		cfg := w.Config
		for i := 0; i < len(s.Path); i += cfg.DeathFoodStride {
			w.DropFood(s.Path[i], cfg.DeathFoodValue, s.Color)
		}
		w.Burst(s.Pos, s.Color, cfg.DeathParticles)
	}

	ev := game.Event{
		Kind:    game.SnakeDied,
		Tick:    w.Tick,
		SnakeID: s.ID,
		Name:    s.Name,
		Score:   s.Score,
		Killer:  killer,
	}
	events := []game.Event{ev}
	if s.IsPlayer() {
		ev.Kind = game.PlayerDied
		events = append(events, ev)
		w.Phase = game.Over
	}
	return events
}
