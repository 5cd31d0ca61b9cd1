// Package stats implements the online estimators used by simulation responses.
//
// Estimators are pure data-in / summary-out: they know nothing about simulated
// time. Time-weighting is expressed by the caller through observation weights.
package stats

import (
	"fmt"
	"math"
)

// DefaultConfidenceLevel is the level used by HalfWidth when none is configured.
const DefaultConfidenceLevel = 0.95

// Statistic accumulates summary statistics over a stream of observations using
// single-pass central-moment recurrences, so long replications do not lose
// precision the way sum-of-squares accumulation does.
//
// NaN and infinite observations are counted as missing and leave every moment
// untouched. Moments (mean, variance, skewness, kurtosis, lag-1 terms) are
// computed over the unweighted observations; the weighted sums are kept
// alongside for time-persistent averages.
type Statistic struct {
	name  string
	level float64
	rule  StoppingRule

	count      int64
	numMissing int64

	mean float64
	m2   float64
	m3   float64
	m4   float64

	min float64
	max float64

	first      float64
	last       float64
	lastWeight float64
	sumLag1    float64 // sum of x[i]*x[i-1]

	sumWeights    float64
	weightedSum   float64
	weightedSumSq float64

	stopped bool
}

// NewStatistic returns an empty statistic with the default confidence level
// and no stopping rule.
func NewStatistic(name string) *Statistic {
	s := &Statistic{
		name:  name,
		level: DefaultConfidenceLevel,
	}
	s.Reset()
	return s
}

// Name returns the statistic's name.
func (s *Statistic) Name() string { return s.name }

// ConfidenceLevel returns the level used by HalfWidthDefault and the stopping rule.
func (s *Statistic) ConfidenceLevel() float64 { return s.level }

// SetConfidenceLevel sets the level used for half-widths. The level must lie in (0, 1).
func (s *Statistic) SetConfidenceLevel(level float64) error {
	if !(level > 0 && level < 1) {
		return fmt.Errorf("confidence level must be in (0,1), got %v", level)
	}
	s.level = level
	return nil
}

// StoppingRule returns the configured stopping rule.
func (s *Statistic) StoppingRule() StoppingRule { return s.rule }

// SetStoppingRule installs an early-stop rule. It survives Reset.
func (s *Statistic) SetStoppingRule(rule StoppingRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.rule = rule
	return nil
}

// Reset restores the identity element. Name, confidence level and stopping
// rule are preserved.
func (s *Statistic) Reset() {
	s.count = 0
	s.numMissing = 0
	s.mean = 0
	s.m2 = 0
	s.m3 = 0
	s.m4 = 0
	s.min = math.Inf(1)
	s.max = math.Inf(-1)
	s.first = 0
	s.last = 0
	s.lastWeight = 0
	s.sumLag1 = 0
	s.sumWeights = 0
	s.weightedSum = 0
	s.weightedSumSq = 0
	s.stopped = false
}

// Collect records x with unit weight. See CollectWeighted.
func (s *Statistic) Collect(x float64) bool {
	return s.CollectWeighted(x, 1)
}

// CollectWeighted records x with weight w. It returns false when the statistic
// has been turned off by its stopping rule and the observation was ignored.
// Missing (NaN/Inf) observations are counted and return true.
// A negative or NaN weight is a caller bug and panics.
func (s *Statistic) CollectWeighted(x, w float64) bool {
	if s.stopped {
		return false
	}
	if math.IsNaN(w) || w < 0 {
		panic(fmt.Sprintf("stats: invalid weight %v for statistic %q", w, s.name))
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		s.numMissing++
		return true
	}

	if s.count == 0 {
		s.first = x
	} else {
		s.sumLag1 += x * s.last
	}

	n1 := float64(s.count)
	s.count++
	n := float64(s.count)
	delta := x - s.mean
	deltaN := delta / n
	deltaN2 := deltaN * deltaN
	term1 := delta * deltaN * n1
	s.mean += deltaN
	s.m4 += term1*deltaN2*(n*n-3*n+3) + 6*deltaN2*s.m2 - 4*deltaN*s.m3
	s.m3 += term1*deltaN*(n-2) - 3*deltaN*s.m2
	s.m2 += term1

	if x < s.min {
		s.min = x
	}
	if x > s.max {
		s.max = x
	}
	s.last = x
	s.lastWeight = w
	s.sumWeights += w
	s.weightedSum += x * w
	s.weightedSumSq += x * x * w

	if s.rule.satisfied(s) {
		s.stopped = true
	}
	return true
}

// Stopped reports whether the stopping rule has turned the statistic off.
func (s *Statistic) Stopped() bool { return s.stopped }

// Count returns the number of non-missing observations.
func (s *Statistic) Count() int64 { return s.count }

// NumMissing returns the number of NaN/Inf observations seen.
func (s *Statistic) NumMissing() int64 { return s.numMissing }

// Sum returns the unweighted sum of the observations.
func (s *Statistic) Sum() float64 { return s.mean * float64(s.count) }

// Min returns the smallest observation, or +Inf when empty.
func (s *Statistic) Min() float64 { return s.min }

// Max returns the largest observation, or -Inf when empty.
func (s *Statistic) Max() float64 { return s.max }

// Last returns the most recent observation.
func (s *Statistic) Last() float64 { return s.last }

// LastWeight returns the weight of the most recent observation.
func (s *Statistic) LastWeight() float64 { return s.lastWeight }

// SumOfWeights returns the sum of observation weights.
func (s *Statistic) SumOfWeights() float64 { return s.sumWeights }

// WeightedSum returns sum(w*x).
func (s *Statistic) WeightedSum() float64 { return s.weightedSum }

// WeightedSumOfSquares returns sum(w*x*x).
func (s *Statistic) WeightedSumOfSquares() float64 { return s.weightedSumSq }

// DeviationSumOfSquares returns sum((x - mean)^2).
func (s *Statistic) DeviationSumOfSquares() float64 { return s.m2 }

// Average returns the sample mean, NaN when empty.
func (s *Statistic) Average() float64 {
	if s.count < 1 {
		return math.NaN()
	}
	return s.mean
}

// WeightedAverage returns sum(w*x)/sum(w), NaN when no weight has been collected.
func (s *Statistic) WeightedAverage() float64 {
	if s.sumWeights <= 0 {
		return math.NaN()
	}
	return s.weightedSum / s.sumWeights
}

// Variance returns the sample variance (n-1 denominator), NaN for n < 2.
func (s *Statistic) Variance() float64 {
	if s.count < 2 {
		return math.NaN()
	}
	return s.m2 / float64(s.count-1)
}

// StdDev returns the sample standard deviation.
func (s *Statistic) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StandardError returns StdDev/sqrt(n).
func (s *Statistic) StandardError() float64 {
	if s.count < 2 {
		return math.NaN()
	}
	return s.StdDev() / math.Sqrt(float64(s.count))
}

// HalfWidth returns the Student-t confidence-interval half-width at level.
func (s *Statistic) HalfWidth(level float64) float64 {
	if s.count < 2 || !(level > 0 && level < 1) {
		return math.NaN()
	}
	return StudentTQuantile(level, float64(s.count-1)) * s.StandardError()
}

// HalfWidthDefault returns the half-width at the configured confidence level.
func (s *Statistic) HalfWidthDefault() float64 {
	return s.HalfWidth(s.level)
}

// ConfidenceInterval returns the interval mean +/- half-width at level.
func (s *Statistic) ConfidenceInterval(level float64) (lower, upper float64) {
	hw := s.HalfWidth(level)
	return s.Average() - hw, s.Average() + hw
}

// Skewness returns the adjusted sample skewness, NaN for n < 3 or zero variance.
func (s *Statistic) Skewness() float64 {
	if s.count < 3 || s.m2 == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	sd := s.StdDev()
	return n / ((n - 1) * (n - 2)) * s.m3 / (sd * sd * sd)
}

// Kurtosis returns the unbiased sample excess kurtosis, NaN for n < 4 or zero variance.
func (s *Statistic) Kurtosis() float64 {
	if s.count < 4 || s.m2 == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	a := (n + 1) * n * (n - 1) / ((n - 2) * (n - 3))
	b := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return a*s.m4/(s.m2*s.m2) - b
}

// Lag1Covariance returns (1/n) * sum((x[i]-mean)(x[i-1]-mean)), NaN for n < 3.
func (s *Statistic) Lag1Covariance() float64 {
	if s.count < 3 {
		return math.NaN()
	}
	n := float64(s.count)
	c1 := s.sumLag1 - (n+1)*s.mean*s.mean + s.mean*(s.first+s.last)
	return c1 / n
}

// Lag1Correlation returns the lag-1 autocorrelation, NaN for n < 3 or zero variance.
func (s *Statistic) Lag1Correlation() float64 {
	if s.count < 3 || s.m2 == 0 {
		return math.NaN()
	}
	return s.Lag1Covariance() / (s.m2 / float64(s.count))
}

// VonNeumannLag1 returns the von Neumann lag-1 test statistic, which is
// approximately standard normal under independence. NaN for n < 3.
func (s *Statistic) VonNeumannLag1() float64 {
	if s.count < 3 || s.m2 == 0 {
		return math.NaN()
	}
	n := float64(s.count)
	r1 := s.Lag1Correlation()
	df := s.first - s.mean
	dl := s.last - s.mean
	t := r1 + (df*df+dl*dl)/(2*s.m2)
	return t * math.Sqrt((n*n-1)/(n-2))
}

// Summary returns the across-observation view of the statistic.
func (s *Statistic) Summary() Summary {
	return Summary{
		StatisticName:   s.name,
		Count:           s.count,
		Average:         s.Average(),
		StdDev:          s.StdDev(),
		StdErr:          s.StandardError(),
		HalfWidth:       s.HalfWidthDefault(),
		ConfidenceLevel: s.level,
		Min:             s.min,
		Max:             s.max,
		Skewness:        s.Skewness(),
		Kurtosis:        s.Kurtosis(),
		Lag1Covariance:  s.Lag1Covariance(),
		Lag1Correlation: s.Lag1Correlation(),
		VonNeumannLag1:  s.VonNeumannLag1(),
		NumMissing:      s.numMissing,
	}
}

func (s *Statistic) String() string {
	return fmt.Sprintf("Statistic: (Name: %s, Count: %d, Average: %v, StdDev: %v, Min: %v, Max: %v)",
		s.name, s.count, s.Average(), s.StdDev(), s.min, s.max)
}
