package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gonumstat "gonum.org/v1/gonum/stat"
)

func collectAll(s *Statistic, xs []float64) {
	for _, x := range xs {
		s.Collect(x)
	}
}

func sampleData(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = 10*math.Sin(float64(i)) + float64(i%7) + 0.25*float64(i%3)
	}
	return xs
}

func TestStatistic_KnownSample(t *testing.T) {
	// GIVEN the classic textbook sample
	s := NewStatistic("x")
	collectAll(s, []float64{2, 4, 4, 4, 5, 5, 7, 9})

	// THEN the basic statistics match the closed form
	assert.Equal(t, int64(8), s.Count())
	assert.InDelta(t, 5.0, s.Average(), 1e-12)
	assert.InDelta(t, 32.0/7.0, s.Variance(), 1e-12)
	assert.Equal(t, 2.0, s.Min())
	assert.Equal(t, 9.0, s.Max())
	assert.Equal(t, 9.0, s.Last())
	assert.InDelta(t, 40.0, s.Sum(), 1e-12)
	assert.InDelta(t, 32.0, s.DeviationSumOfSquares(), 1e-12)
}

func TestStatistic_HigherMomentsMatchGonum(t *testing.T) {
	xs := sampleData(500)
	s := NewStatistic("x")
	collectAll(s, xs)

	mean, sd := gonumstat.MeanStdDev(xs, nil)
	assert.InDelta(t, mean, s.Average(), 1e-10)
	assert.InDelta(t, sd, s.StdDev(), 1e-10)
	assert.InDelta(t, gonumstat.Skew(xs, nil), s.Skewness(), 1e-9)
	assert.InDelta(t, gonumstat.ExKurtosis(xs, nil), s.Kurtosis(), 1e-9)
}

func TestStatistic_Lag1MatchesDirectComputation(t *testing.T) {
	xs := sampleData(200)
	s := NewStatistic("x")
	collectAll(s, xs)

	mean := gonumstat.Mean(xs, nil)
	var c1, c0 float64
	for i := range xs {
		c0 += (xs[i] - mean) * (xs[i] - mean)
		if i > 0 {
			c1 += (xs[i] - mean) * (xs[i-1] - mean)
		}
	}
	n := float64(len(xs))
	assert.InDelta(t, c1/n, s.Lag1Covariance(), 1e-9)
	assert.InDelta(t, c1/c0, s.Lag1Correlation(), 1e-9)
	assert.False(t, math.IsNaN(s.VonNeumannLag1()))
}

func TestStatistic_InsufficientSamplesReturnNaN(t *testing.T) {
	tests := []struct {
		name string
		n    int
		get  func(*Statistic) float64
	}{
		{"average", 1, (*Statistic).Average},
		{"variance", 2, (*Statistic).Variance},
		{"standard error", 2, (*Statistic).StandardError},
		{"half width", 2, (*Statistic).HalfWidthDefault},
		{"skewness", 3, (*Statistic).Skewness},
		{"kurtosis", 4, (*Statistic).Kurtosis},
		{"lag1 covariance", 3, (*Statistic).Lag1Covariance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatistic("x")
			for i := 0; i < tt.n-1; i++ {
				s.Collect(float64(i * i))
			}
			assert.True(t, math.IsNaN(tt.get(s)), "expected NaN with %d samples", tt.n-1)
			s.Collect(float64(tt.n * tt.n))
			assert.False(t, math.IsNaN(tt.get(s)), "expected a value with %d samples", tt.n)
		})
	}
}

func TestStatistic_MissingValuesDoNotUpdateMoments(t *testing.T) {
	s := NewStatistic("x")
	collectAll(s, []float64{1, 2, 3})
	before := s.Summary()

	assert.True(t, s.Collect(math.NaN()))
	assert.True(t, s.Collect(math.Inf(1)))
	assert.True(t, s.Collect(math.Inf(-1)))

	assert.Equal(t, int64(3), s.NumMissing())
	after := s.Summary()
	after.NumMissing = before.NumMissing
	assert.Equal(t, before.Count, after.Count)
	assert.Equal(t, before.Average, after.Average)
	assert.Equal(t, before.Max, after.Max)
}

func TestStatistic_ResetIsIdempotentWithFreshStatistic(t *testing.T) {
	// GIVEN a statistic with history, a rule and a custom level
	used := NewStatistic("x")
	require.NoError(t, used.SetConfidenceLevel(0.9))
	collectAll(used, sampleData(73))
	used.Collect(math.NaN())

	fresh := NewStatistic("x")
	require.NoError(t, fresh.SetConfidenceLevel(0.9))

	// WHEN it is reset and fed the same data as a fresh statistic
	used.Reset()
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	collectAll(used, data)
	collectAll(fresh, data)

	// THEN both are identical, configuration included
	assert.Equal(t, fresh, used)
	assert.Equal(t, math.Float64bits(fresh.Variance()), math.Float64bits(used.Variance()))
	assert.Equal(t, 0.9, used.ConfidenceLevel())
}

func TestStatistic_ResetRestoresIdentity(t *testing.T) {
	s := NewStatistic("x")
	collectAll(s, []float64{1, 2})
	s.Reset()
	assert.Equal(t, int64(0), s.Count())
	assert.True(t, math.IsInf(s.Min(), 1))
	assert.True(t, math.IsInf(s.Max(), -1))
	assert.True(t, math.IsNaN(s.Average()))
	assert.Equal(t, "x", s.Name())
}

func TestStatistic_WeightedSums(t *testing.T) {
	s := NewStatistic("tw")
	s.CollectWeighted(1, 2)
	s.CollectWeighted(3, 6)
	assert.Equal(t, 8.0, s.SumOfWeights())
	assert.Equal(t, 20.0, s.WeightedSum())
	assert.Equal(t, 56.0, s.WeightedSumOfSquares())
	assert.Equal(t, 2.5, s.WeightedAverage())
	assert.Equal(t, 6.0, s.LastWeight())
}

func TestStatistic_NegativeWeightPanics(t *testing.T) {
	s := NewStatistic("x")
	assert.Panics(t, func() { s.CollectWeighted(1, -1) })
}

func TestStatistic_HalfWidthUsesStudentT(t *testing.T) {
	s := NewStatistic("x")
	collectAll(s, []float64{2, 4, 4, 4, 5, 5, 7, 9})
	// t(0.975, 7) = 2.364624...
	want := 2.3646242510102993 * math.Sqrt(32.0/7.0) / math.Sqrt(8)
	assert.InDelta(t, want, s.HalfWidth(0.95), 1e-6)
	lo, hi := s.ConfidenceInterval(0.95)
	assert.InDelta(t, 5.0-want, lo, 1e-6)
	assert.InDelta(t, 5.0+want, hi, 1e-6)
}

func TestStatistic_SetConfidenceLevelRejectsOutOfRange(t *testing.T) {
	s := NewStatistic("x")
	assert.Error(t, s.SetConfidenceLevel(0))
	assert.Error(t, s.SetConfidenceLevel(1))
	assert.NoError(t, s.SetConfidenceLevel(0.99))
}

func TestStatistic_HalfWidthRuleStopsCollection(t *testing.T) {
	// GIVEN a statistic that stops once the half-width falls below 0.5
	s := NewStatistic("x")
	require.NoError(t, s.SetStoppingRule(StoppingRule{Kind: HalfWidthRule, Target: 0.5, MinCount: 10}))

	// WHEN observations with small spread arrive
	collected := 0
	for i := 0; i < 1000; i++ {
		if !s.Collect(5 + 0.1*float64(i%3)) {
			break
		}
		collected++
	}

	// THEN the statistic turns itself off and refuses further data
	assert.True(t, s.Stopped())
	assert.Equal(t, int64(10), s.Count())
	assert.False(t, s.Collect(100))
	assert.Equal(t, int64(10), s.Count())

	// AND reset re-enables collection but keeps the rule
	s.Reset()
	assert.False(t, s.Stopped())
	assert.Equal(t, HalfWidthRule, s.StoppingRule().Kind)
}

func TestStatistic_RelativePrecisionRule(t *testing.T) {
	s := NewStatistic("x")
	require.NoError(t, s.SetStoppingRule(StoppingRule{Kind: RelativePrecisionRule, Target: 0.01}))
	for i := 0; i < 10000 && !s.Stopped(); i++ {
		s.Collect(100 + float64(i%5))
	}
	assert.True(t, s.Stopped())
	assert.LessOrEqual(t, s.HalfWidthDefault()/s.Average(), 0.01)
}

func TestStoppingRule_Validate(t *testing.T) {
	assert.NoError(t, StoppingRule{}.Validate())
	assert.Error(t, StoppingRule{Kind: HalfWidthRule}.Validate())
	assert.Error(t, StoppingRule{Kind: "bogus", Target: 1}.Validate())
	assert.Error(t, StoppingRule{Kind: RelativePrecisionRule, Target: math.Inf(1)}.Validate())
}

func TestStudentTQuantile(t *testing.T) {
	assert.InDelta(t, 1.959964, StudentTQuantile(0.95, 1e9), 1e-4)
	assert.InDelta(t, 12.7062, StudentTQuantile(0.95, 1), 1e-3)
	assert.True(t, math.IsNaN(StudentTQuantile(1.5, 3)))
}

func TestReplicationRecord_FromStatistic(t *testing.T) {
	s := NewStatistic("x")
	s.CollectWeighted(2, 1)
	s.CollectWeighted(4, 3)
	r := NewReplicationRecord(s, 3, s.WeightedAverage())
	assert.Equal(t, 3, r.Replication)
	assert.Equal(t, int64(2), r.Count)
	assert.Equal(t, 3.5, r.Average)
	assert.Equal(t, 2.0, r.Minimum)
	assert.Equal(t, 4.0, r.Maximum)
	assert.Equal(t, 4.0, r.SumOfWeights)
	assert.Equal(t, 4.0, r.LastValue)
	assert.Equal(t, 3.0, r.LastWeight)
}
