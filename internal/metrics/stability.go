package metrics

import "github.com/0xshey/ionthruster-test-automation/internal/thruster"

const DefaultTemperatureLimit = 150.0

// Stability is the fraction of samples with the chamber below the temperature limit.
type Stability struct {
	name       string
	limit      float64
	violations int
	samples    int
}

func NewStability(limit float64) *Stability {
	return &Stability{
		name:  "thermal_stability",
		limit: limit,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(tel thruster.Telemetry, dt float64) {
	s.samples++
	if tel.ChamberTemperature > s.limit {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
