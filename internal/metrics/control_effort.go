package metrics

import "github.com/0xshey/ionthruster-test-automation/internal/thruster"

// Impulse is the time integral of thrust, in newton-seconds.
type Impulse struct {
	name  string
	total float64
}

func NewImpulse() *Impulse {
	return &Impulse{name: "impulse_ns"}
}

func (i *Impulse) Name() string { return i.name }

func (i *Impulse) Observe(tel thruster.Telemetry, dt float64) {
	i.total += tel.Thrust * dt
}

func (i *Impulse) Value() float64 { return i.total }

func (i *Impulse) Reset() { i.total = 0 }

type MeanThrust struct {
	name    string
	sum     float64
	samples int
}

func NewMeanThrust() *MeanThrust {
	return &MeanThrust{name: "mean_thrust"}
}

func (m *MeanThrust) Name() string { return m.name }

func (m *MeanThrust) Observe(tel thruster.Telemetry, dt float64) {
	m.sum += tel.Thrust
	m.samples++
}

func (m *MeanThrust) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanThrust) Reset() {
	m.sum = 0
	m.samples = 0
}
