package random

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionSpec_Build(t *testing.T) {
	tests := []struct {
		name     string
		spec     DistributionSpec
		wantMean float64
		wantErr  bool
	}{
		{"constant", DistributionSpec{Type: "constant", Value: 3}, 3, false},
		{"exponential", DistributionSpec{Type: "exponential", Mean: 0.5}, 0.5, false},
		{"uniform", DistributionSpec{Type: "uniform", Min: 1, Max: 3}, 2, false},
		{"normal", DistributionSpec{Type: "normal", Mean: 10, StdDev: 2}, 10, false},
		{"lognormal", DistributionSpec{Type: "lognormal", Mean: 4, StdDev: 1}, 4, false},
		{"weibull", DistributionSpec{Type: "weibull", Shape: 1, Scale: 2}, 2, false},
		{"gamma", DistributionSpec{Type: "gamma", Shape: 2, Scale: 3}, 6, false},
		{"triangular", DistributionSpec{Type: "triangular", Min: 0, Mode: 3, Max: 6}, 3, false},
		{"missing type", DistributionSpec{}, 0, true},
		{"unknown type", DistributionSpec{Type: "zipf"}, 0, true},
		{"bad exponential", DistributionSpec{Type: "exponential", Mean: -1}, 0, true},
		{"bad uniform", DistributionSpec{Type: "uniform", Min: 3, Max: 1}, 0, true},
		{"bad triangular", DistributionSpec{Type: "triangular", Min: 0, Mode: 9, Max: 6}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.spec.Build()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMean, d.Mean(), 1e-9)
		})
	}
}

func TestDraw_SampleMeanConverges(t *testing.T) {
	d, err := NewExponential(2)
	require.NoError(t, err)
	s := NewPCGStream("exp", 17)
	sum := 0.0
	const n = 200000
	for i := 0; i < n; i++ {
		x := Draw(d, s)
		require.False(t, math.IsInf(x, 0))
		sum += x
	}
	assert.InDelta(t, 2.0, sum/n, 0.05)
}

func TestDraw_InversionIsMonotoneInU(t *testing.T) {
	d, err := NewNormal(0, 1)
	require.NoError(t, err)
	assert.Less(t, d.Quantile(0.2), d.Quantile(0.8))
	assert.InDelta(t, 0.0, d.Quantile(0.5), 1e-12)
}
