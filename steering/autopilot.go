package steering

import "github.com/kelvin0611/Mini-io-games/game"

// Autopilot drives the player snake with a bot policy, for headless rounds
// and soak tests. It keeps its own AIState between ticks.
type Autopilot struct {
	Policy Policy
	state  game.AIState
	primed bool
}

// NewAutopilot wraps p; a nil p means Default.
func NewAutopilot(p Policy) *Autopilot {
	if p == nil {
		p = Default()
	}
	return &Autopilot{Policy: p}
}

// Intent returns the player's intent for the current tick, or a zero intent
// when there is no living player.
func (a *Autopilot) Intent(w *game.World) game.Intent {
	p := w.Player
	if !p.Alive() {
		return game.Intent{}
	}
	if !a.primed {
		a.state.TargetHeading = p.Heading
		a.primed = true
	}
	return a.Policy.Steer(w, p, &a.state, w.Rand)
}

// Reset forgets the steering memory, for reuse across rounds.
func (a *Autopilot) Reset() {
	a.state = game.AIState{}
	a.primed = false
}
