package metrics

import (
	"math"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

// EnergyUsed integrates total power draw over time, in joules.
type EnergyUsed struct {
	name   string
	joules float64
}

func NewEnergyUsed() *EnergyUsed {
	return &EnergyUsed{name: "energy_j"}
}

func (e *EnergyUsed) Name() string { return e.name }

func (e *EnergyUsed) Observe(tel thruster.Telemetry, dt float64) {
	e.joules += tel.PowerDraw.Total() * dt
}

func (e *EnergyUsed) Value() float64 { return e.joules }

func (e *EnergyUsed) Reset() { e.joules = 0 }

type PeakTemperature struct {
	name    string
	peak    float64
	samples int
}

func NewPeakTemperature() *PeakTemperature {
	return &PeakTemperature{name: "peak_temperature", peak: math.Inf(-1)}
}

func (p *PeakTemperature) Name() string { return p.name }

func (p *PeakTemperature) Observe(tel thruster.Telemetry, dt float64) {
	p.peak = math.Max(p.peak, tel.ChamberTemperature)
	p.samples++
}

func (p *PeakTemperature) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.peak
}

func (p *PeakTemperature) Reset() {
	p.peak = math.Inf(-1)
	p.samples = 0
}
