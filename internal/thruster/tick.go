package thruster

import (
	"math"

	"go.uber.org/zap"
)

const (
	ioniserCurrentScale = 100.0
	gridCurrentScale    = 120.0
	heatingFactor       = 0.01
	thrustFactor        = 0.01

	ioniserCurrentNoise = 0.02
	gridCurrentNoise    = 0.01
	temperatureNoise    = 0.2
	thrustNoise         = 0.05
)

// tick advances the model by one step and returns the fields of its log line.
// The caller must hold s.mu.
func (s *Simulator) tick() []zap.Field {
	cfg := s.cfg
	flow := cfg.PropellantFlowRate
	ioniserV := cfg.IoniserVoltage
	gridV := cfg.GridVoltage()

	var ioniserI, gridI float64
	if s.outputEnabled {
		ioniserI = ioniserV / ioniserCurrentScale
		gridI = math.Abs(gridV) / gridCurrentScale
	}
	ioniserI += s.noise(0, ioniserCurrentNoise)
	gridI += s.noise(0, gridCurrentNoise)

	power := PowerDraw{
		Ioniser:         ioniserV * ioniserI,
		AcceleratorGrid: gridV * gridI,
		Controller:      ControllerPowerDraw,
	}

	temp := s.state.chamberTemperature
	if s.outputEnabled {
		temp += power.Total() * heatingFactor
	} else {
		temp -= s.coolingRate
	}
	temp += s.noise(0, temperatureNoise)

	thrust := 0.0
	if s.outputEnabled && flow > 0 && ioniserV > 0 && gridV > 0 {
		thrust = flow*(ioniserV*thrustFactor+gridV*thrustFactor) + s.noise(0, thrustNoise)
	}

	s.state.ioniserCurrent = ioniserI
	s.state.gridCurrent = gridI
	s.state.powerDraw = power
	s.state.chamberTemperature = temp
	s.state.thrust = thrust
	s.ticks++

	return []zap.Field{
		zap.Uint64("tick", s.ticks),
		zap.Float64("ioniser_current", ioniserI),
		zap.Float64("grid_current", gridI),
		zap.Float64("thrust", thrust),
		zap.Float64("chamber_temperature", temp),
		zap.Float64("environment_pressure", s.state.environmentPressure),
		zap.Any("power_draw", power.AsMap()),
	}
}
