package random

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is sampled by inversion: a uniform draw u from a Stream is
// mapped through Quantile. Inversion keeps antithetic streams meaningful,
// since 1-u yields the complementary variate.
type Distribution interface {
	Quantile(p float64) float64
	Mean() float64
}

// Draw returns one variate from d using the next draw of s.
func Draw(d Distribution, s Stream) float64 {
	return d.Quantile(s.RandU01())
}

// Constant always returns Value.
type Constant struct {
	Value float64
}

func (c Constant) Quantile(float64) float64 { return c.Value }

func (c Constant) Mean() float64 { return c.Value }

// NewExponential returns an exponential distribution with the given mean.
func NewExponential(mean float64) (Distribution, error) {
	if !(mean > 0) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("exponential: mean must be positive and finite, got %v", mean)
	}
	return distuv.Exponential{Rate: 1 / mean}, nil
}

// NewUniform returns a uniform distribution over [min, max].
func NewUniform(min, max float64) (Distribution, error) {
	if !(min < max) {
		return nil, fmt.Errorf("uniform: min must be < max, got [%v, %v]", min, max)
	}
	return distuv.Uniform{Min: min, Max: max}, nil
}

// NewNormal returns a normal distribution.
func NewNormal(mean, stdDev float64) (Distribution, error) {
	if !(stdDev > 0) {
		return nil, fmt.Errorf("normal: std dev must be positive, got %v", stdDev)
	}
	return distuv.Normal{Mu: mean, Sigma: stdDev}, nil
}

// NewLogNormal returns a lognormal distribution parameterized by the mean and
// standard deviation of the variate itself, not of its logarithm.
func NewLogNormal(mean, stdDev float64) (Distribution, error) {
	if !(mean > 0) || !(stdDev > 0) {
		return nil, fmt.Errorf("lognormal: mean and std dev must be positive, got %v, %v", mean, stdDev)
	}
	sigma2 := math.Log(1 + (stdDev*stdDev)/(mean*mean))
	return distuv.LogNormal{Mu: math.Log(mean) - sigma2/2, Sigma: math.Sqrt(sigma2)}, nil
}

// NewWeibull returns a Weibull distribution with the given shape and scale.
func NewWeibull(shape, scale float64) (Distribution, error) {
	if !(shape > 0) || !(scale > 0) {
		return nil, fmt.Errorf("weibull: shape and scale must be positive, got %v, %v", shape, scale)
	}
	return distuv.Weibull{K: shape, Lambda: scale}, nil
}

// NewGamma returns a gamma distribution with the given shape and scale.
func NewGamma(shape, scale float64) (Distribution, error) {
	if !(shape > 0) || !(scale > 0) {
		return nil, fmt.Errorf("gamma: shape and scale must be positive, got %v, %v", shape, scale)
	}
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale}, nil
}

// NewTriangular returns a triangular distribution on [min, max] with the given mode.
func NewTriangular(min, mode, max float64) (Distribution, error) {
	if !(min < max) || mode < min || mode > max {
		return nil, fmt.Errorf("triangular: need min <= mode <= max and min < max, got %v, %v, %v", min, mode, max)
	}
	return distuv.NewTriangle(min, max, mode, nil), nil
}

// DistributionSpec is the YAML form of a Distribution.
//
//	service:
//	  type: exponential
//	  mean: 0.5
type DistributionSpec struct {
	Type   string  `yaml:"type"`
	Value  float64 `yaml:"value,omitempty"`
	Mean   float64 `yaml:"mean,omitempty"`
	StdDev float64 `yaml:"std_dev,omitempty"`
	Min    float64 `yaml:"min,omitempty"`
	Max    float64 `yaml:"max,omitempty"`
	Mode   float64 `yaml:"mode,omitempty"`
	Shape  float64 `yaml:"shape,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
}

// Build validates the spec and returns the corresponding Distribution.
func (s DistributionSpec) Build() (Distribution, error) {
	switch s.Type {
	case "constant":
		return Constant{Value: s.Value}, nil
	case "exponential":
		return NewExponential(s.Mean)
	case "uniform":
		return NewUniform(s.Min, s.Max)
	case "normal":
		return NewNormal(s.Mean, s.StdDev)
	case "lognormal":
		return NewLogNormal(s.Mean, s.StdDev)
	case "weibull":
		return NewWeibull(s.Shape, s.Scale)
	case "gamma":
		return NewGamma(s.Shape, s.Scale)
	case "triangular":
		return NewTriangular(s.Min, s.Mode, s.Max)
	case "":
		return nil, fmt.Errorf("distribution type not set")
	default:
		return nil, fmt.Errorf("unknown distribution type %q", s.Type)
	}
}
