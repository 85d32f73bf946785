// Package session owns the lifecycle of one round around the tick engine:
// starting a world, stepping it, noticing the end, restarting and telling
// listeners (score log, recorder, websocket hub) what happened.
//
// A Round is not safe for concurrent use; callers that share one across
// goroutines guard it themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/rules"
	"github.com/kelvin0611/Mini-io-games/steering"
)

// ErrRoundOver is returned by Step once the round has ended.
var ErrRoundOver = errors.New("session: round is over")

// Listener receives every event of a round, plus RoundStarted when a world
// is created and RoundEnded once it finishes.
type Listener interface {
	OnEvent(r *Round, ev game.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(r *Round, ev game.Event)

func (f ListenerFunc) OnEvent(r *Round, ev game.Event) { f(r, ev) }

// Options configures a Round.
type Options struct {
	Config game.Config
	// Seed 0 picks a time-based seed.
	Seed   int64
	Policy steering.Policy
	// MaxTicks ends the round with KillerTimeout when reached. 0 = unlimited.
	MaxTicks  int64
	Listeners []Listener
}

// Summary describes a round for scoreboards and archives.
type Summary struct {
	RoundID   string
	Seed      int64
	Ticks     int64
	Score     int
	Killer    string
	XP        int
	Level     int
	BotDeaths int
	StartedAt time.Time
	EndedAt   time.Time
}

// Round wraps one World and its lifecycle.
type Round struct {
	ID        string
	World     *game.World
	StartedAt time.Time
	EndedAt   time.Time

	opts      Options
	ended     bool
	killer    string
	score     int
	botDeaths int
}

// New creates and starts a round.
func New(opts Options) (*Round, error) {
	if opts.Policy == nil {
		opts.Policy = steering.Default()
	}
	r := &Round{opts: opts}
	if err := r.start(opts.Seed); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Round) start(seed int64) error {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	w, err := game.NewWorld(r.opts.Config, seed)
	if err != nil {
		return fmt.Errorf("new world: %w", err)
	}
	r.ID = uuid.NewString()
	r.World = w
	r.StartedAt = time.Now()
	r.EndedAt = time.Time{}
	r.ended = false
	r.killer = ""
	r.score = 0
	r.botDeaths = 0

	ev := game.Event{Kind: game.RoundStarted, Tick: w.Tick}
	if p := w.Player; p != nil {
		ev.SnakeID, ev.Name, ev.Score = p.ID, p.Name, p.Score
	}
	r.emit(ev)
	return nil
}

// AddListener subscribes l to future events.
func (r *Round) AddListener(l Listener) {
	r.opts.Listeners = append(r.opts.Listeners, l)
}

// Policy returns the bot policy of the round.
func (r *Round) Policy() steering.Policy { return r.opts.Policy }

// Seed returns the seed the current world was created from.
func (r *Round) Seed() int64 { return r.World.Seed }

// Over reports whether the round has ended.
func (r *Round) Over() bool { return r.ended }

// Step advances the world one tick with the player's intent.
func (r *Round) Step(in game.Intent) ([]game.Event, error) {
	if r.ended {
		return nil, ErrRoundOver
	}
	events := rules.Step(r.World, in, r.opts.Policy)
	for _, ev := range events {
		switch ev.Kind {
		case game.PlayerDied:
			r.score = ev.Score
			r.killer = ev.Killer
		case game.SnakeDied:
			if p := r.World.Player; p == nil || ev.SnakeID != p.ID {
				r.botDeaths++
			}
		}
		r.emit(ev)
	}

	switch {
	case rules.IsOver(r.World):
		events = append(events, r.finish(r.killer))
	case r.opts.MaxTicks > 0 && r.World.Tick >= r.opts.MaxTicks:
		if p := r.World.Player; p != nil {
			r.score = p.Score
		}
		events = append(events, r.finish(game.KillerTimeout))
	}
	return events, nil
}

func (r *Round) finish(killer string) game.Event {
	r.ended = true
	r.killer = killer
	r.EndedAt = time.Now()
	ev := game.Event{Kind: game.RoundEnded, Tick: r.World.Tick, Score: r.score, Killer: killer}
	if p := r.World.Player; p != nil {
		ev.SnakeID, ev.Name = p.ID, p.Name
	}
	r.emit(ev)
	return ev
}

func (r *Round) emit(ev game.Event) {
	for _, l := range r.opts.Listeners {
		l.OnEvent(r, ev)
	}
}

// Restart replaces the world with a fresh one under a new id. The new seed is
// drawn from the old world so a seeded session replays the same sequence of
// rounds.
func (r *Round) Restart() error {
	return r.start(r.World.Rand.Int63())
}

// Checkpoint returns a deep copy of the current world.
func (r *Round) Checkpoint() *game.World {
	return r.World.Clone()
}

// Summary reports the round so far. Score is the final score once the round
// has ended and the player's live score before that.
func (r *Round) Summary() Summary {
	score := r.score
	if !r.ended {
		if p := r.World.Player; p != nil {
			score = p.Score
		}
	}
	xp := XPReward(score)
	return Summary{
		RoundID:   r.ID,
		Seed:      r.World.Seed,
		Ticks:     r.World.Tick,
		Score:     score,
		Killer:    r.killer,
		XP:        xp,
		Level:     Level(xp),
		BotDeaths: r.botDeaths,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

// IntentFunc supplies the player's intent for the next tick.
type IntentFunc func(w *game.World) game.Intent

// Run steps the round until it ends or ctx is cancelled. A positive interval
// paces ticks with a ticker; zero runs flat out.
func (r *Round) Run(ctx context.Context, interval time.Duration, intent IntentFunc) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for !r.ended {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		var in game.Intent
		if intent != nil {
			in = intent(r.World)
		}
		if _, err := r.Step(in); err != nil {
			return err
		}
	}
	return nil
}
