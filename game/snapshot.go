package game

// SnakeView is the renderer-facing copy of a snake.
type SnakeView struct {
	ID      uint32  `json:"id" msgpack:"id"`
	Name    string  `json:"name" msgpack:"name"`
	Player  bool    `json:"player" msgpack:"player"`
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
	Heading float64 `json:"heading" msgpack:"heading"`
	Radius  float64 `json:"radius" msgpack:"radius"`
	Score   int     `json:"score" msgpack:"score"`
	Boost   bool    `json:"boost" msgpack:"boost"`
	Dead    bool    `json:"dead" msgpack:"dead"`
	Color   string  `json:"color" msgpack:"color"`
	Path    []Point `json:"path" msgpack:"path"`
}

// FoodView is the renderer-facing copy of a pellet.
type FoodView struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Radius float64 `json:"r" msgpack:"r"`
	Color  string  `json:"color" msgpack:"color"`
}

// ParticleView is the renderer-facing copy of a particle.
type ParticleView struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Size  float64 `json:"size" msgpack:"size"`
	Life  float64 `json:"life" msgpack:"life"`
	Color string  `json:"color" msgpack:"color"`
}

// Snapshot is a read-only view of the world after a tick. It shares no
// memory with the world it was taken from.
type Snapshot struct {
	Tick      int64          `json:"tick" msgpack:"tick"`
	Phase     string         `json:"phase" msgpack:"phase"`
	MapSize   float64        `json:"map_size" msgpack:"map_size"`
	Player    *SnakeView     `json:"player,omitempty" msgpack:"player,omitempty"`
	Bots      []SnakeView    `json:"bots" msgpack:"bots"`
	Food      []FoodView     `json:"food" msgpack:"food"`
	Particles []ParticleView `json:"particles" msgpack:"particles"`
}

// Snapshot copies the current world state. Path points are decimated by
// pathStride (1 keeps every point) to bound the size of a frame.
func (w *World) Snapshot(pathStride int) Snapshot {
	if pathStride < 1 {
		pathStride = 1
	}
	out := Snapshot{
		Tick:      w.Tick,
		Phase:     w.Phase.String(),
		MapSize:   w.Config.MapSize,
		Bots:      make([]SnakeView, 0, len(w.Bots)),
		Food:      make([]FoodView, 0, len(w.Food)),
		Particles: make([]ParticleView, 0, len(w.Particles)),
	}
	if w.Player != nil {
		v := w.viewSnake(w.Player, pathStride)
		out.Player = &v
	}
	for _, b := range w.Bots {
		if b.Dead {
			continue
		}
		out.Bots = append(out.Bots, w.viewSnake(b, pathStride))
	}
	for _, f := range w.Food {
		out.Food = append(out.Food, FoodView{X: f.Pos.X, Y: f.Pos.Y, Radius: f.Radius(), Color: f.Color})
	}
	for _, p := range w.Particles {
		out.Particles = append(out.Particles, ParticleView{X: p.Pos.X, Y: p.Pos.Y, Size: p.Size, Life: p.Life, Color: p.Color})
	}
	return out
}

func (w *World) viewSnake(s *Snake, stride int) SnakeView {
	path := make([]Point, 0, len(s.Path)/stride+1)
	for i := 0; i < len(s.Path); i += stride {
		path = append(path, s.Path[i])
	}
	return SnakeView{
		ID:      s.ID,
		Name:    s.Name,
		Player:  s.IsPlayer(),
		X:       s.Pos.X,
		Y:       s.Pos.Y,
		Heading: s.Heading,
		Radius:  s.Radius(w.Config),
		Score:   s.Score,
		Boost:   s.Boost,
		Dead:    s.Dead,
		Color:   s.Color,
		Path:    path,
	}
}
