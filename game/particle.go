package game

// ParticleDecay is the life lost per tick.
const ParticleDecay = 0.03

// Particle is a cosmetic death effect. It never affects gameplay.
type Particle struct {
	Pos   Point
	Vel   Point
	Color string
	Size  float64
	Life  float64 // 1 at birth, removed at <= 0
}

// Burst emits n particles at p.
func (w *World) Burst(p Point, color string, n int) {
	for i := 0; i < n; i++ {
		w.Particles = append(w.Particles, randomParticle(w.Rand, p, color))
	}
}

// StepParticles advances every particle and culls the expired ones in place.
func (w *World) StepParticles() {
	live := w.Particles[:0]
	for _, p := range w.Particles {
		p.Pos = p.Pos.Add(p.Vel)
		p.Life -= ParticleDecay
		if p.Life > 0 {
			live = append(live, p)
		}
	}
	clear(w.Particles[len(live):])
	w.Particles = live
}
