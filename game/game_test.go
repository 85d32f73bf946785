package game

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestNormalizeAngle_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		a := (rng.Float64() - 0.5) * 100
		got := NormalizeAngle(a)
		if got <= -math.Pi || got > math.Pi {
			t.Fatalf("NormalizeAngle(%v)=%v outside (-π, π]", a, got)
		}
		if d := math.Mod(math.Abs(got-a), 2*math.Pi); d > 1e-9 && 2*math.Pi-d > 1e-9 {
			t.Fatalf("NormalizeAngle(%v)=%v is not the same direction", a, got)
		}
	}
	if got := NormalizeAngle(-math.Pi); got != math.Pi {
		t.Fatalf("NormalizeAngle(-π)=%v want π", got)
	}
	if got := NormalizeAngle(math.NaN()); got != 0 {
		t.Fatalf("NormalizeAngle(NaN)=%v want 0", got)
	}
}

func TestAngleDiff_ShorterWayAcrossSeam(t *testing.T) {
	// 3.0 -> -3.0 is a small positive turn through π, not a 6 radian one.
	got := AngleDiff(-3.0, 3.0)
	want := 2*math.Pi - 6
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("AngleDiff=%v want %v", got, want)
	}
}

func TestRadius_Scenario(t *testing.T) {
	cfg := DefaultConfig()
	s := &Snake{Score: 10}
	got := s.Radius(cfg)
	if math.Abs(got-11.5811) > 1e-3 {
		t.Fatalf("radius=%v want ~11.58", got)
	}
}

func TestRadius_NonDecreasing(t *testing.T) {
	cfg := DefaultConfig()
	prev := RadiusFor(cfg, 0)
	for score := 1; score <= 5000; score++ {
		r := RadiusFor(cfg, score)
		if r < prev {
			t.Fatalf("radius(%d)=%v < radius(%d)=%v", score, r, score-1, prev)
		}
		prev = r
	}
	if r := RadiusFor(cfg, -3); r != cfg.BaseRadius {
		t.Fatalf("negative score radius=%v want base %v", r, cfg.BaseRadius)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.MapSize = 0 },
		func(c *Config) { c.BaseSpeed = 0 },
		func(c *Config) { c.TurnSpeed = -1 },
		func(c *Config) { c.BoostDropChance = 1.5 },
		func(c *Config) { c.MaxFood = -1 },
		func(c *Config) { c.CollisionStride = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: err=%v want ErrInvalidConfig", i, err)
		}
	}
	if _, err := NewWorld(Config{}, 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewWorld(zero config) err=%v", err)
	}
}

func TestNewWorld_Populations(t *testing.T) {
	cfg := DefaultConfig()
	w, err := NewWorld(cfg, 42)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	if w.Player == nil || !w.Player.IsPlayer() || w.Player.Color != PlayerColor {
		t.Fatalf("player not set up: %+v", w.Player)
	}
	if len(w.Bots) != cfg.BotCount {
		t.Fatalf("bots=%d want %d", len(w.Bots), cfg.BotCount)
	}
	if len(w.Food) != cfg.MaxFood {
		t.Fatalf("food=%d want %d", len(w.Food), cfg.MaxFood)
	}
	quarter := cfg.MapSize / 4
	seen := map[uint32]bool{w.Player.ID: true}
	for _, b := range w.Bots {
		if b.IsPlayer() || b.AI() == nil {
			t.Fatalf("bot %s has no AI state", b.Name)
		}
		if math.Abs(b.Pos.X) > quarter || math.Abs(b.Pos.Y) > quarter {
			t.Fatalf("bot %s spawned at %v outside the central half", b.Name, b.Pos)
		}
		if len(b.Path) != cfg.StartPathLen || b.Score != cfg.StartScore {
			t.Fatalf("bot %s path=%d score=%d", b.Name, len(b.Path), b.Score)
		}
		if seen[b.ID] {
			t.Fatalf("duplicate id %d", b.ID)
		}
		seen[b.ID] = true
	}
	for _, f := range w.Food {
		if !InSquare(f.Pos, cfg.Half()) {
			t.Fatalf("food outside arena: %v", f.Pos)
		}
		if f.Value != 1 || f.Radius() != 5.5 {
			t.Fatalf("random food value=%d radius=%v", f.Value, f.Radius())
		}
	}
}

func TestNewWorld_SameSeedSameWorld(t *testing.T) {
	a, _ := NewWorld(DefaultConfig(), 99)
	b, _ := NewWorld(DefaultConfig(), 99)
	if a.Player.Pos != b.Player.Pos || a.Player.Heading != b.Player.Heading {
		t.Fatalf("player differs: %v vs %v", a.Player.Pos, b.Player.Pos)
	}
	for i := range a.Food {
		if a.Food[i] != b.Food[i] {
			t.Fatalf("food[%d] differs: %+v vs %+v", i, a.Food[i], b.Food[i])
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	w, _ := NewWorld(DefaultConfig(), 3)
	c := w.Clone()

	c.Player.Path[0] = Point{X: 12345, Y: 12345}
	c.Bots[0].AI().TargetHeading = 2.5
	c.Food[0].Value = 99
	c.Bots = c.Bots[:1]

	if w.Player.Path[0] == c.Player.Path[0] {
		t.Fatalf("player path shared")
	}
	if w.Bots[0].AI().TargetHeading == 2.5 {
		t.Fatalf("bot AI state shared")
	}
	if w.Food[0].Value == 99 {
		t.Fatalf("food shared")
	}
	if len(w.Bots) != DefaultConfig().BotCount {
		t.Fatalf("bot slice shared")
	}
}

func TestClone_LeavesRandomStreamAlone(t *testing.T) {
	ref, _ := NewWorld(DefaultConfig(), 3)
	w, _ := NewWorld(DefaultConfig(), 3)
	c := w.Clone()

	// The copy replays the original's stream, and drawing from it does not
	// move the original.
	for i := 0; i < 20; i++ {
		want := ref.Rand.Int63()
		if got := c.Rand.Int63(); got != want {
			t.Fatalf("clone draw %d=%d want %d", i, got, want)
		}
	}
	ref2, _ := NewWorld(DefaultConfig(), 3)
	for i := 0; i < 20; i++ {
		if got, want := w.Rand.Float64(), ref2.Rand.Float64(); got != want {
			t.Fatalf("source draw %d=%v want %v", i, got, want)
		}
	}
	if c.Seed != w.Seed {
		t.Fatalf("clone seed=%d want %d", c.Seed, w.Seed)
	}
}

func TestClone_ForeignRandNotDrawn(t *testing.T) {
	w, _ := NewEmptyWorld(DefaultConfig(), 4)
	w.Rand = rand.New(rand.NewSource(1))
	w.Clone()
	if got, want := w.Rand.Int63(), rand.New(rand.NewSource(1)).Int63(); got != want {
		t.Fatalf("clone drew from the source rand: next=%d want %d", got, want)
	}
}

func TestSnapshot_DetachedAndDecimated(t *testing.T) {
	w, _ := NewWorld(DefaultConfig(), 5)
	snap := w.Snapshot(3)
	if snap.Player == nil || len(snap.Bots) != len(w.Bots) || len(snap.Food) != len(w.Food) {
		t.Fatalf("snapshot sizes: player=%v bots=%d food=%d", snap.Player != nil, len(snap.Bots), len(snap.Food))
	}
	if got, want := len(snap.Player.Path), (len(w.Player.Path)+2)/3; got != want {
		t.Fatalf("decimated path len=%d want %d", got, want)
	}
	snap.Player.Path[0].X = -1
	if w.Player.Path[0].X == -1 {
		t.Fatalf("snapshot path aliases world path")
	}
	if snap.Player.Radius != w.Player.Radius(w.Config) {
		t.Fatalf("snapshot radius=%v want %v", snap.Player.Radius, w.Player.Radius(w.Config))
	}
}

func TestStepParticles_Culls(t *testing.T) {
	w, _ := NewEmptyWorld(DefaultConfig(), 1)
	w.Burst(Point{}, "#fff", 20)
	if len(w.Particles) != 20 {
		t.Fatalf("particles=%d want 20", len(w.Particles))
	}
	ticks := 0
	for len(w.Particles) > 0 {
		w.StepParticles()
		ticks++
		if ticks > 100 {
			t.Fatalf("particles never expired")
		}
	}
	// life 1 decays by 0.03: gone after 34 ticks.
	if ticks != 34 {
		t.Fatalf("particles lived %d ticks want 34", ticks)
	}
}

func TestRemoveFood_SwapsLast(t *testing.T) {
	w, _ := NewEmptyWorld(DefaultConfig(), 1)
	w.DropFood(Point{X: 1}, 1, "a")
	w.DropFood(Point{X: 2}, 1, "b")
	w.DropFood(Point{X: 3}, 1, "c")
	w.RemoveFood(0)
	if len(w.Food) != 2 || w.Food[0].Color != "c" || w.Food[1].Color != "b" {
		t.Fatalf("food after remove: %+v", w.Food)
	}
}

func TestPointerIntent(t *testing.T) {
	in := PointerIntent(400, 300, 400, 200, true)
	if math.Abs(in.TargetHeading-math.Pi/2) > 1e-12 || !in.Boost {
		t.Fatalf("intent=%+v want heading π/2 boost", in)
	}
}
