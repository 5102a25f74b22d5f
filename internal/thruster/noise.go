package thruster

import (
	"math/rand/v2"
	"sync"
)

// NoiseFunc returns one sample from a Gaussian-like distribution.
type NoiseFunc func(mean, sd float64) float64

// GaussianNoise draws from the process-wide generator.
func GaussianNoise() NoiseFunc {
	return func(mean, sd float64) float64 {
		return mean + rand.NormFloat64()*sd
	}
}

// SeededNoise returns a reproducible generator. It is safe for concurrent use.
func SeededNoise(seed uint64) NoiseFunc {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(mean, sd float64) float64 {
		mu.Lock()
		defer mu.Unlock()
		return mean + r.NormFloat64()*sd
	}
}

// NoNoise always returns the mean.
func NoNoise() NoiseFunc {
	return func(mean, _ float64) float64 { return mean }
}
