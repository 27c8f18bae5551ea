package betats

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws from a Beta(alpha, beta) distribution. Implementations must
// return a value in [0, 1] for alpha, beta >= 1.
type Sampler interface {
	SampleBeta(alpha, beta float64) float64
}

// GonumSampler samples Beta variates through gonum's distuv.Beta, which
// draws two Gamma variates X, Y and returns X/(X+Y).
type GonumSampler struct {
	Src rand.Source
}

// NewGonumSampler returns a sampler reading from src.
func NewGonumSampler(src rand.Source) *GonumSampler {
	return &GonumSampler{Src: src}
}

// SampleBeta implements Sampler.
func (s *GonumSampler) SampleBeta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: s.Src}.Rand()
}

// SamplerFunc adapts an ordinary function to the Sampler interface.
type SamplerFunc func(alpha, beta float64) float64

// SampleBeta implements Sampler.
func (f SamplerFunc) SampleBeta(alpha, beta float64) float64 {
	return f(alpha, beta)
}
