// Package rules implements the per-tick transition of an arena World.
//
// Step is the only entry point the round driver needs. It is deterministic
// for a given world (including its random source), intent and policy, and it
// must not be called concurrently on the same world.
package rules

import (
	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/steering"
)

// Step advances the world one tick and returns the lifecycle events it
// produced. Order matters:
//
//  1. the player follows in (if alive)
//  2. every bot steers via policy, then advances
//  3. food pickups, player first
//  4. snake-vs-trail collisions
//  5. food and bot replenishment
//  6. particles
//
// A nil policy uses steering.Default. Step is a no-op once the round is over.
func Step(w *game.World, in game.Intent, policy steering.Policy) []game.Event {
	if w == nil || w.Phase == game.Over {
		return nil
	}
	if policy == nil {
		policy = steering.Default()
	}
	w.Tick++

	var events []game.Event

	if p := w.Player; p.Alive() {
		Advance(w, p, in)
		if p.Dead {
			events = append(events, kill(w, p, game.KillerWall, false)...)
		}
	}

	for _, b := range w.Bots {
		if b.Dead {
			continue
		}
		st := b.AI()
		if st == nil {
			st = &game.AIState{TargetHeading: b.Heading}
			b.Control = game.AIControlled{State: st}
		}
		Advance(w, b, policy.Steer(w, b, st, w.Rand))
		if b.Dead {
			events = append(events, kill(w, b, game.KillerWall, false)...)
		}
	}

	resolvePickups(w)
	events = append(events, resolveCollisions(w)...)
	events = append(events, replenish(w)...)
	w.StepParticles()

	return events
}

// Run steps the world until the round ends or maxTicks have elapsed, feeding
// the player from intent each tick. It returns every event produced.
func Run(w *game.World, maxTicks int, intent func(*game.World) game.Intent, policy steering.Policy) []game.Event {
	var events []game.Event
	for i := 0; i < maxTicks && w.Phase != game.Over; i++ {
		var in game.Intent
		if intent != nil {
			in = intent(w)
		}
		events = append(events, Step(w, in, policy)...)
	}
	return events
}

// IsOver reports whether the round has ended.
func IsOver(w *game.World) bool {
	return w == nil || w.Phase == game.Over
}
