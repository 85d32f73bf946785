package inference

import (
	"math"
	"sync"

	"github.com/kelvin0611/Mini-io-games/game"
)

const (
	NumRays      = 16
	RayChannels  = 3 // wall, trail, food
	ScalarInputs = 3 // score, speed, can-boost
	InputSize    = NumRays*RayChannels + ScalarInputs
	DefaultRange = 600
	trailStride  = 3
	scoreScale   = 1000
)

// Channel offsets within one ray's block.
const (
	chWall = iota
	chTrail
	chFood
)

var featurePool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, InputSize)
		return &b
	},
}

// GetFeatures returns a zeroed feature buffer from the pool.
func GetFeatures() *[]float32 {
	b := featurePool.Get().(*[]float32)
	clear(*b)
	return b
}

// PutFeatures returns a buffer to the pool.
func PutFeatures(b *[]float32) {
	featurePool.Put(b)
}

// Encode fills a pooled buffer with the sensor view of self. Ray i points
// i*2π/NumRays radians clockwise from the current heading. Each ray carries
// proximity in [0,1] (1 = touching, 0 = nothing within sensorRange) for the
// arena edge, the nearest foreign trail point and the nearest pellet.
// Caller must return the buffer with PutFeatures.
func Encode(w *game.World, self *game.Snake, sensorRange float64) *[]float32 {
	ptr := GetFeatures()
	EncodeInto(*ptr, w, self, sensorRange)
	return ptr
}

// EncodeInto writes the features into dst, which must hold InputSize values.
func EncodeInto(dst []float32, w *game.World, self *game.Snake, sensorRange float64) {
	clear(dst)
	if self == nil || len(dst) < InputSize {
		return
	}
	if sensorRange <= 0 {
		sensorRange = DefaultRange
	}
	cfg := w.Config
	selfR := self.Radius(cfg)

	var dirs [NumRays]game.Point
	for i := range dirs {
		a := self.Heading + float64(i)*2*math.Pi/NumRays
		dirs[i] = game.Point{X: math.Cos(a), Y: math.Sin(a)}
	}

	set := func(ray, ch int, dist float64) {
		if dist < 0 || dist >= sensorRange {
			return
		}
		v := float32(1 - dist/sensorRange)
		idx := ray*RayChannels + ch
		if v > dst[idx] {
			dst[idx] = v
		}
	}

	half := cfg.Half()
	for i, d := range dirs {
		set(i, chWall, wallDistance(self.Pos, d, half))
	}

	for _, other := range w.Living() {
		if other == self || game.Distance(self.Pos, other.Pos) > sensorRange+float64(len(other.Path))*cfg.BaseSpeed {
			continue
		}
		width := other.Radius(cfg) + selfR
		for j := 0; j < len(other.Path); j += trailStride {
			for i, d := range dirs {
				if t, ok := rayHit(self.Pos, d, other.Path[j], width); ok {
					set(i, chTrail, t)
				}
			}
		}
	}

	for k := range w.Food {
		f := &w.Food[k]
		if math.Abs(f.Pos.X-self.Pos.X) > sensorRange || math.Abs(f.Pos.Y-self.Pos.Y) > sensorRange {
			continue
		}
		width := f.Radius() + selfR
		for i, d := range dirs {
			if t, ok := rayHit(self.Pos, d, f.Pos, width); ok {
				set(i, chFood, t)
			}
		}
	}

	base := NumRays * RayChannels
	dst[base] = float32(math.Min(float64(self.Score)/scoreScale, 1))
	dst[base+1] = float32(self.Speed / cfg.BoostSpeed)
	if self.Score > cfg.BoostMinScore {
		dst[base+2] = 1
	}
}

// wallDistance is the distance from p along unit direction d to the edge of
// the square [-half, half]².
func wallDistance(p, d game.Point, half float64) float64 {
	best := math.Inf(1)
	if d.X > 0 {
		best = math.Min(best, (half-p.X)/d.X)
	} else if d.X < 0 {
		best = math.Min(best, (-half-p.X)/d.X)
	}
	if d.Y > 0 {
		best = math.Min(best, (half-p.Y)/d.Y)
	} else if d.Y < 0 {
		best = math.Min(best, (-half-p.Y)/d.Y)
	}
	return math.Max(best, 0)
}

// rayHit reports the distance along the ray from origin in direction d to
// target when target lies within width of the ray and ahead of the origin.
func rayHit(origin, d, target game.Point, width float64) (float64, bool) {
	rel := target.Sub(origin)
	t := rel.X*d.X + rel.Y*d.Y
	if t < 0 {
		return 0, false
	}
	if math.Abs(game.Cross(d, rel)) > width {
		return 0, false
	}
	return t, true
}
