package random

import "github.com/iti/rngstream"

// MRG32k3a moduli; seed components must stay below them.
const (
	mrgM1 = 4294967087
	mrgM2 = 4294944443
)

// LEcuyerStream adapts an MRG32k3a stream from github.com/iti/rngstream.
// Its initial state is derived from the seed alone, so the draws do not depend
// on how many streams the process created before.
type LEcuyerStream struct {
	rs         *rngstream.RngStream
	antithetic bool
}

// NewLEcuyerStream creates an MRG32k3a stream whose initial state is derived
// from seed.
func NewLEcuyerStream(name string, seed uint64) *LEcuyerStream {
	rs := rngstream.New(name)
	rs.SetSeed(mrgSeed(seed))
	return &LEcuyerStream{rs: rs}
}

// mrgSeed expands seed into six components with splitmix64. Each lies in
// [1, m-1], which satisfies the generator's non-zero and range checks.
func mrgSeed(seed uint64) []uint64 {
	out := make([]uint64, 6)
	x := seed
	for i := range out {
		x += 0x9e3779b97f4a7c15
		z := x
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		m := uint64(mrgM1)
		if i >= 3 {
			m = mrgM2
		}
		out[i] = 1 + z%(m-1)
	}
	return out
}

// LEcuyerFactory is a Provider factory producing MRG32k3a streams seeded from
// the provider's key and the stream name.
func LEcuyerFactory(name string, seed uint64) Stream {
	return NewLEcuyerStream(name, seed)
}

func (s *LEcuyerStream) RandU01() float64 { return s.rs.RandU01() }

func (s *LEcuyerStream) ResetStartStream() { s.rs.ResetStartStream() }

func (s *LEcuyerStream) ResetStartSubstream() { s.rs.ResetStartSubstream() }

func (s *LEcuyerStream) AdvanceToNextSubstream() { s.rs.ResetNextSubstream() }

func (s *LEcuyerStream) SetAntithetic(anti bool) {
	s.antithetic = anti
	s.rs.SetAntithetic(anti)
}

func (s *LEcuyerStream) Antithetic() bool { return s.antithetic }
