package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// StoppingRuleKind selects the precision criterion that turns a statistic off.
type StoppingRuleKind string

const (
	// NoStopping never turns the statistic off.
	NoStopping StoppingRuleKind = ""
	// HalfWidthRule stops once the half-width is at or below Target.
	HalfWidthRule StoppingRuleKind = "half-width"
	// RelativePrecisionRule stops once half-width/|average| is at or below Target.
	RelativePrecisionRule StoppingRuleKind = "relative-precision"
)

// DefaultMinStoppingCount is the smallest sample size at which a rule is evaluated.
const DefaultMinStoppingCount = 2

// StoppingRule turns a Statistic off once the desired precision is reached.
// The zero value disables early stopping.
type StoppingRule struct {
	Kind     StoppingRuleKind `yaml:"kind"`
	Target   float64          `yaml:"target"`
	MinCount int64            `yaml:"min_count"` // defaults to DefaultMinStoppingCount
}

// Validate checks the rule's parameters.
func (r StoppingRule) Validate() error {
	switch r.Kind {
	case NoStopping:
		return nil
	case HalfWidthRule, RelativePrecisionRule:
		if !(r.Target > 0) || math.IsInf(r.Target, 0) {
			return fmt.Errorf("stopping rule %q: target must be positive and finite, got %v", r.Kind, r.Target)
		}
		if r.MinCount < 0 {
			return fmt.Errorf("stopping rule %q: min count must be non-negative, got %d", r.Kind, r.MinCount)
		}
		return nil
	default:
		return fmt.Errorf("unknown stopping rule %q", r.Kind)
	}
}

func (r StoppingRule) satisfied(s *Statistic) bool {
	if r.Kind == NoStopping {
		return false
	}
	minCount := max(r.MinCount, DefaultMinStoppingCount)
	if s.count < minCount {
		return false
	}
	hw := s.HalfWidthDefault()
	if math.IsNaN(hw) {
		return false
	}
	switch r.Kind {
	case HalfWidthRule:
		return hw <= r.Target
	case RelativePrecisionRule:
		if s.mean == 0 {
			return false
		}
		return hw/math.Abs(s.mean) <= r.Target
	}
	return false
}

// StudentTQuantile returns the two-sided critical value t such that
// P(-t < T < t) = level for a Student-t variable with dof degrees of freedom.
func StudentTQuantile(level, dof float64) float64 {
	if !(level > 0 && level < 1) || !(dof > 0) {
		return math.NaN()
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return t.Quantile(1 - (1-level)/2)
}
