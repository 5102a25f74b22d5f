package automation

import (
	"context"
	"fmt"

	"github.com/0xshey/ionthruster-test-automation/internal/metrics"
	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

// ParameterSweep holds one configuration key across a range of values.
type ParameterSweep struct {
	Key         string
	Min         float64
	Max         float64
	NumSteps    int
	Hold        float64
	SampleEvery float64
	Base        thruster.Config
}

// SweepResult holds the outcome of one sweep point.
type SweepResult struct {
	Value       float64
	Final       thruster.Telemetry
	MeanThrust  float64
	PeakTemp    float64
	EnergyUsedJ float64
}

// RunSweep executes a parameter sweep on a running simulator, stopping it at the end.
func RunSweep(ctx context.Context, sweep *ParameterSweep, sim *thruster.Simulator) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", ErrInvalidScenario)
	}
	sampleEvery := sweep.SampleEvery
	if sampleEvery <= 0 {
		sampleEvery = DefaultSampleEvery
	}

	// Base and the first value go in as one keyed update, so an unknown key changes nothing.
	initial := sweep.Base.AsMap()
	initial[sweep.Key] = sweep.Min
	if err := sim.UpdateConfigFields(initial); err != nil {
		return nil, err
	}

	step := 0.0
	if sweep.NumSteps > 1 {
		step = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	sim.Start()
	defer sim.Stop()

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		value := sweep.Min + float64(i)*step
		if err := sim.UpdateConfigFields(map[string]float64{sweep.Key: value}); err != nil {
			return results, err
		}

		mean := metrics.NewMeanThrust()
		peak := metrics.NewPeakTemperature()
		energy := metrics.NewEnergyUsed()
		sampler := NewSampler(sim, seconds(sampleEvery), mean, peak, energy)
		if err := sampler.Record(ctx, seconds(sweep.Hold)); err != nil {
			return results, err
		}

		results = append(results, SweepResult{
			Value:       value,
			Final:       sim.ReadTelemetry(),
			MeanThrust:  mean.Value(),
			PeakTemp:    peak.Value(),
			EnergyUsedJ: energy.Value(),
		})
	}

	return results, nil
}
