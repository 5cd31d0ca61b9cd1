package resource

import (
	"fmt"

	"github.com/inference-sim/simkernel/sim/random"
)

// SelectionRule picks the unit that serves a request from the idle units of
// a pool, given in pool order. Returning nil makes the request wait.
type SelectionRule interface {
	Select(idle []*Unit) *Unit
}

// SelectionFunc adapts a function to SelectionRule.
type SelectionFunc func(idle []*Unit) *Unit

// Select implements SelectionRule.
func (f SelectionFunc) Select(idle []*Unit) *Unit { return f(idle) }

// FirstIdle selects the lowest-numbered idle unit.
type FirstIdle struct{}

// Select implements SelectionRule for FirstIdle.
func (FirstIdle) Select(idle []*Unit) *Unit {
	if len(idle) == 0 {
		return nil
	}
	return idle[0]
}

// RandomIdle selects an idle unit uniformly at random from its own stream.
type RandomIdle struct {
	stream random.Stream
}

// Select implements SelectionRule for RandomIdle.
func (ri *RandomIdle) Select(idle []*Unit) *Unit {
	if len(idle) == 0 {
		return nil
	}
	i := int(ri.stream.RandU01() * float64(len(idle)))
	if i >= len(idle) {
		i = len(idle) - 1
	}
	return idle[i]
}

// CyclicIdle hands work around the pool: it selects the first idle unit
// after the one it selected last.
type CyclicIdle struct {
	last *Unit
	pool *Pool
}

// Select implements SelectionRule for CyclicIdle.
func (ci *CyclicIdle) Select(idle []*Unit) *Unit {
	if len(idle) == 0 {
		return nil
	}
	start := 0
	if ci.last != nil {
		for i, u := range ci.pool.units {
			if u == ci.last {
				start = i + 1
				break
			}
		}
	}
	n := len(ci.pool.units)
	for k := 0; k < n; k++ {
		u := ci.pool.units[(start+k)%n]
		for _, c := range idle {
			if c == u {
				ci.last = u
				return u
			}
		}
	}
	return nil
}

// SelectionRuleNames lists the names accepted by NewSelectionRule.
var SelectionRuleNames = []string{"first-idle", "random", "cyclic"}

// NewSelectionRule builds a named rule for pool p. An empty name selects first-idle.
func NewSelectionRule(name string, p *Pool) (SelectionRule, error) {
	switch name {
	case "", "first-idle":
		return FirstIdle{}, nil
	case "random":
		return &RandomIdle{stream: p.Streams().Stream(p.Name() + ":Selection")}, nil
	case "cyclic":
		return &CyclicIdle{pool: p}, nil
	default:
		return nil, fmt.Errorf("unknown selection rule %q, valid: %v", name, SelectionRuleNames)
	}
}
