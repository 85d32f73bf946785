// food.go implements the food pickups scattered across the arena.

package game

import (
	"fmt"
	"math/rand"
)

// Food is a point pickup. Value is granted to the snake's score on pickup.
type Food struct {
	ID    uint32
	Pos   Point
	Value int
	Color string
}

// Radius grows with value: a value-1 pellet is 5.5 units across.
func (f Food) Radius() float64 {
	return 5 + float64(f.Value)*0.5
}

// RandomColor returns a random fully saturated hue in CSS hsl() form.
func RandomColor(rng *rand.Rand) string {
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", rng.Intn(360))
}

// randomFood places a value-1 pellet uniformly over the arena square.
func (w *World) randomFood() Food {
	return Food{
		ID: w.newID(),
		Pos: Point{
			X: (w.Rand.Float64() - 0.5) * w.Config.MapSize,
			Y: (w.Rand.Float64() - 0.5) * w.Config.MapSize,
		},
		Value: 1,
		Color: RandomColor(w.Rand),
	}
}

// SpawnFood appends one random pellet.
func (w *World) SpawnFood() {
	w.Food = append(w.Food, w.randomFood())
}

// DropFood appends a pellet at p, used for boost trails and death scatter.
func (w *World) DropFood(p Point, value int, color string) {
	w.Food = append(w.Food, Food{ID: w.newID(), Pos: p, Value: value, Color: color})
}

// RemoveFood deletes the pellet at index i without preserving order.
func (w *World) RemoveFood(i int) {
	last := len(w.Food) - 1
	w.Food[i] = w.Food[last]
	w.Food = w.Food[:last]
}
