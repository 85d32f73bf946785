// Package inference steers bots with a learned policy served by ONNX
// Runtime. Each bot's surroundings are encoded as a fixed ray-sensor vector,
// requests from concurrent rounds are batched, and the model's logits pick
// one of six discrete actions. Any failure falls back to the heuristic
// policy so a round never stalls on the model.
package inference

import (
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/kelvin0611/Mini-io-games/game"
	"github.com/kelvin0611/Mini-io-games/steering"
)

// Predictor is satisfied by OnnxClient and OnnxPool.
type Predictor interface {
	Predict(features []float32) ([]float32, float32, error)
}

// ActionOffsets are the heading changes, relative to the current heading, of
// the left, straight and right actions.
var ActionOffsets = [3]float64{-math.Pi / 4, 0, math.Pi / 4}

// OnnxPolicy implements steering.Policy on top of a Predictor.
type OnnxPolicy struct {
	Model       Predictor
	Fallback    steering.Policy
	SensorRange float64

	failures atomic.Int64
}

// NewOnnxPolicy wraps model. A nil fallback means steering.Default().
func NewOnnxPolicy(model Predictor, fallback steering.Policy) *OnnxPolicy {
	if fallback == nil {
		fallback = steering.Default()
	}
	return &OnnxPolicy{Model: model, Fallback: fallback, SensorRange: DefaultRange}
}

// Failures counts ticks that were steered by the fallback.
func (p *OnnxPolicy) Failures() int64 { return p.failures.Load() }

func (p *OnnxPolicy) Steer(w *game.World, self *game.Snake, st *game.AIState, rng *rand.Rand) game.Intent {
	if p.Model == nil {
		return p.Fallback.Steer(w, self, st, rng)
	}

	feats := Encode(w, self, p.SensorRange)
	logits, _, err := p.Model.Predict(*feats)
	PutFeatures(feats)
	if err == nil && len(logits) < PolicySize {
		err = ErrModelShape
	}
	if err != nil {
		if p.failures.Add(1) == 1 {
			slog.Warn("model steering failed, using fallback", "snake", self.Name, "error", err)
		}
		return p.Fallback.Steer(w, self, st, rng)
	}

	st.Timer++
	in := DecodeAction(Argmax(logits[:PolicySize]), self.Heading)
	st.TargetHeading = in.TargetHeading
	return in
}

// Argmax returns the index of the largest logit; ties keep the first.
func Argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}

// DecodeAction maps an action index to an intent relative to heading.
// Indices 0-2 cruise, 3-5 boost, each as left/straight/right.
func DecodeAction(action int, heading float64) game.Intent {
	if action < 0 || action >= PolicySize {
		action = 1
	}
	return game.Intent{
		TargetHeading: game.NormalizeAngle(heading + ActionOffsets[action%3]),
		Boost:         action >= 3,
	}
}
