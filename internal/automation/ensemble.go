package automation

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xshey/ionthruster-test-automation/internal/metrics"
	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

// Ensemble records the same run on independent simulators that differ only in noise seed.
type Ensemble struct {
	Runs      int
	SeedStart uint64
	Duration  time.Duration
	Interval  time.Duration
	Build     func(seed uint64) *thruster.Simulator
}

type EnsembleResult struct {
	Seed    uint64
	Final   thruster.Telemetry
	Samples int
	Metrics map[string]float64
}

func NewEnsemble(build func(seed uint64) *thruster.Simulator, runs int, seedStart uint64) *Ensemble {
	return &Ensemble{
		Runs:      runs,
		SeedStart: seedStart,
		Duration:  time.Second,
		Interval:  seconds(DefaultSampleEvery),
		Build:     build,
	}
}

// Run starts every member at once and waits for all of them. The first failure cancels the rest.
func (e *Ensemble) Run(ctx context.Context) ([]EnsembleResult, error) {
	if e.Runs < 1 {
		return nil, fmt.Errorf("%w: ensemble needs at least one run", ErrInvalidScenario)
	}
	if e.Interval <= 0 {
		return nil, fmt.Errorf("%w: ensemble sample interval must be positive", ErrInvalidScenario)
	}
	if e.Build == nil {
		return nil, fmt.Errorf("%w: ensemble has no simulator builder", ErrInvalidScenario)
	}

	results := make([]EnsembleResult, e.Runs)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < e.Runs; i++ {
		idx := i
		g.Go(func() error {
			seed := e.SeedStart + uint64(idx)
			sim := e.Build(seed)

			sampler := NewSampler(sim, e.Interval, metrics.Defaults()...)
			sim.Start()
			err := sampler.Record(ctx, e.Duration)
			sim.Stop()
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}

			results[idx] = EnsembleResult{
				Seed:    seed,
				Final:   sim.ReadTelemetry(),
				Samples: len(sampler.Samples()),
				Metrics: sampler.Metrics(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Spread summarises one metric across ensemble members.
type Spread struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func Summarize(results []EnsembleResult, metric string) Spread {
	if len(results) == 0 {
		return Spread{}
	}

	s := Spread{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, r := range results {
		v := r.Metrics[metric]
		s.Mean += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean /= float64(len(results))

	for _, r := range results {
		d := r.Metrics[metric] - s.Mean
		s.StdDev += d * d
	}
	s.StdDev = math.Sqrt(s.StdDev / float64(len(results)))
	return s
}
