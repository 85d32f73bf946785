package rules

import (
	"math"

	"github.com/kelvin0611/Mini-io-games/game"
)

// resolvePickups lets each living snake, player first, eat every pellet its
// body touches. A cheap |dx| check runs before the exact distance test. The
// radius is recomputed per pellet so growth applies within the same pass.
func resolvePickups(w *game.World) {
	cfg := w.Config
	for _, s := range w.Living() {
		// Backwards so RemoveFood only swaps in pellets already tested.
		for i := len(w.Food) - 1; i >= 0; i-- {
			f := w.Food[i]
			reach := s.Radius(cfg) + f.Radius()
			if math.Abs(s.Pos.X-f.Pos.X) >= reach+cfg.PickupBroadPhase {
				continue
			}
			if game.Distance(s.Pos, f.Pos) < reach {
				s.Score += f.Value
				w.RemoveFood(i)
			}
		}
	}
}

// replenish restores the population floors: food up to MaxFood and living
// bots up to BotCount. Dead bots are evicted first. Food above MaxFood, from
// boost and death drops, is left alone.
func replenish(w *game.World) []game.Event {
	cfg := w.Config
	for deficit := cfg.MaxFood - len(w.Food); deficit > 0; deficit-- {
		w.SpawnFood()
	}

	live := w.Bots[:0]
	for _, b := range w.Bots {
		if !b.Dead {
			live = append(live, b)
		}
	}
	clear(w.Bots[len(live):])
	w.Bots = live

	var events []game.Event
	for len(w.Bots) < cfg.BotCount {
		b := w.AddBot()
		events = append(events, game.Event{
			Kind:    game.BotSpawned,
			Tick:    w.Tick,
			SnakeID: b.ID,
			Name:    b.Name,
			Score:   b.Score,
		})
	}
	return events
}
