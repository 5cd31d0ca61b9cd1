package sim

import (
	"github.com/inference-sim/simkernel/sim/random"
)

// RandomVariable draws from a distribution on its own named stream.
//
// It keeps an initial distribution and a live one. The live distribution may
// be replaced mid-replication; every replication starts again from the
// initial one.
type RandomVariable struct {
	*Element

	initial random.Distribution
	live    random.Distribution
	stream  random.Stream
}

// NewRandomVariable attaches a random variable to parent. Its stream is the
// model provider's stream with the element's name.
func NewRandomVariable(parent *Element, name string, d random.Distribution) (*RandomVariable, error) {
	if d == nil {
		return nil, configErrorf("distribution", "random variable %q needs a distribution", name)
	}
	rv := &RandomVariable{initial: d, live: d}
	el, err := NewElement(parent, name, "RandomVariable", rv)
	if err != nil {
		return nil, err
	}
	rv.Element = el
	rv.stream = el.Streams().Stream(el.name)
	return rv, nil
}

// Value returns the next draw from the live distribution.
func (rv *RandomVariable) Value() float64 {
	return random.Draw(rv.live, rv.stream)
}

// Stream returns the variable's stream.
func (rv *RandomVariable) Stream() random.Stream { return rv.stream }

// Initial returns the distribution each replication starts with.
func (rv *RandomVariable) Initial() random.Distribution { return rv.initial }

// SetInitial replaces the distribution used from the next replication on.
func (rv *RandomVariable) SetInitial(d random.Distribution) error {
	if d == nil {
		return configErrorf("distribution", "random variable %q needs a distribution", rv.name)
	}
	rv.initial = d
	return nil
}

// Live returns the distribution currently drawn from.
func (rv *RandomVariable) Live() random.Distribution { return rv.live }

// SetLive replaces the distribution for the rest of the current replication.
func (rv *RandomVariable) SetLive(d random.Distribution) error {
	if d == nil {
		return configErrorf("distribution", "random variable %q needs a distribution", rv.name)
	}
	rv.live = d
	return nil
}

func (rv *RandomVariable) BeforeReplication() error {
	rv.live = rv.initial
	return nil
}
