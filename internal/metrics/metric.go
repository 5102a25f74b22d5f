// Package metrics summarises a stream of thruster telemetry samples.
package metrics

import "github.com/0xshey/ionthruster-test-automation/internal/thruster"

// Metric accumulates telemetry samples taken dt seconds apart.
type Metric interface {
	Name() string
	Observe(tel thruster.Telemetry, dt float64)
	Value() float64
	Reset()
}

// Defaults returns a fresh set of the standard run metrics.
func Defaults() []Metric {
	return []Metric{
		NewPeakTemperature(),
		NewMeanThrust(),
		NewImpulse(),
		NewEnergyUsed(),
		NewStability(DefaultTemperatureLimit),
	}
}

// Collect reads every metric into a name-keyed map.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
