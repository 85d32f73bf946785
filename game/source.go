package game

import (
	"math/rand"
	randv2 "math/rand/v2"
)

// pcgStream is xored into the seed to pick the second PCG word.
const pcgStream = 0x9e3779b97f4a7c15

// pcgSource adapts a PCG generator to the math/rand Source64 interface. Its
// whole state is two words, so a World can be cloned mid-stream without
// drawing from it.
type pcgSource struct {
	pcg randv2.PCG
}

var _ rand.Source64 = (*pcgSource)(nil)

func newPCGSource(seed int64) *pcgSource {
	s := &pcgSource{}
	s.Seed(seed)
	return s
}

func (s *pcgSource) Seed(seed int64) {
	s.pcg.Seed(uint64(seed), uint64(seed)^pcgStream)
}

func (s *pcgSource) Uint64() uint64 { return s.pcg.Uint64() }

func (s *pcgSource) Int63() int64 { return int64(s.pcg.Uint64() >> 1) }

// clone returns an independent source positioned at the same point in the
// stream.
func (s *pcgSource) clone() *pcgSource {
	cp := *s
	return &cp
}
