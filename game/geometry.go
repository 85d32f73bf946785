package game

import "math"

// Point is an arena coordinate. The arena is centered at the origin.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Distance is the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Project returns the point dist units away from p along heading.
func Project(p Point, heading, dist float64) Point {
	return Point{X: p.X + math.Cos(heading)*dist, Y: p.Y + math.Sin(heading)*dist}
}

// Bearing is the heading from -> to.
func Bearing(from, to Point) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

// NormalizeAngle maps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// AngleDiff returns target-from normalized into (-π, π]. A positive result
// means turning with increasing heading is the shorter way round.
func AngleDiff(target, from float64) float64 {
	return NormalizeAngle(target - from)
}

// Cross is the z component of a × b.
func Cross(a, b Point) float64 {
	return a.X*b.Y - a.Y*b.X
}

// InSquare reports whether p lies within [-half, half] on both axes.
func InSquare(p Point, half float64) bool {
	return p.X >= -half && p.X <= half && p.Y >= -half && p.Y <= half
}
