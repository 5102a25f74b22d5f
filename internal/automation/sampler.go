package automation

import (
	"context"
	"time"

	"github.com/0xshey/ionthruster-test-automation/internal/metrics"
	"github.com/0xshey/ionthruster-test-automation/internal/storage"
	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

// TelemetrySource is anything that can produce a telemetry snapshot.
type TelemetrySource interface {
	ReadTelemetry() thruster.Telemetry
}

// Sampler polls a telemetry source, feeding metrics and keeping the samples.
type Sampler struct {
	src      TelemetrySource
	interval time.Duration
	metrics  []metrics.Metric
	samples  []storage.Sample
	start    time.Time
	last     float64
}

// NewSampler returns a sampler polling src every interval. A non-positive interval
// falls back to DefaultSampleEvery.
func NewSampler(src TelemetrySource, interval time.Duration, ms ...metrics.Metric) *Sampler {
	if interval <= 0 {
		interval = seconds(DefaultSampleEvery)
	}
	return &Sampler{
		src:      src,
		interval: interval,
		metrics:  ms,
		start:    time.Now(),
	}
}

// Sample takes one reading now and hands it to the sampler's metrics and any extra ones.
func (s *Sampler) Sample(extra ...metrics.Metric) storage.Sample {
	elapsed := time.Since(s.start).Seconds()
	dt := elapsed - s.last
	s.last = elapsed

	sample := storage.Sample{Time: elapsed, Telemetry: s.src.ReadTelemetry()}
	for _, m := range s.metrics {
		m.Observe(sample.Telemetry, dt)
	}
	for _, m := range extra {
		m.Observe(sample.Telemetry, dt)
	}
	s.samples = append(s.samples, sample)
	return sample
}

// Record samples every interval for d. It returns ctx.Err() if ctx ends first.
func (s *Sampler) Record(ctx context.Context, d time.Duration, extra ...metrics.Metric) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			s.Sample(extra...)
		}
	}
}

func (s *Sampler) Samples() []storage.Sample {
	return s.samples
}

func (s *Sampler) Metrics() map[string]float64 {
	return metrics.Collect(s.metrics)
}
