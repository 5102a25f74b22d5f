// Package automation drives a simulator through scripted operating sequences.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/0xshey/ionthruster-test-automation/internal/metrics"
	"github.com/0xshey/ionthruster-test-automation/internal/storage"
	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultSampleEvery = 0.1

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Scenario is a scripted sequence of thruster settings.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	SampleEvery float64 `yaml:"sample_every"`
	Steps       []Step  `yaml:"steps"`
}

// Step applies a configuration change, optionally toggles output, then holds for Hold seconds.
type Step struct {
	Name   string             `yaml:"name"`
	Config map[string]float64 `yaml:"config"`
	Output *bool              `yaml:"output"`
	Hold   float64            `yaml:"hold"`
}

func (s Step) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step %d", i+1)
}

type StepResult struct {
	Name    string
	Final   thruster.Telemetry
	Samples int
	Metrics map[string]float64
}

type Result struct {
	Scenario string
	Steps    []StepResult
	Samples  []storage.Sample
	Metrics  map[string]float64
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if scenario.SampleEvery == 0 {
		scenario.SampleEvery = DefaultSampleEvery
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// Validate checks the structure of the scenario. Configuration keys are checked by the
// simulator when each step is applied.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	if s.SampleEvery <= 0 {
		return fmt.Errorf("%w: sample_every must be positive", ErrInvalidScenario)
	}
	for i, step := range s.Steps {
		if step.Hold < 0 {
			return fmt.Errorf("%w: %s has negative hold", ErrInvalidScenario, step.label(i))
		}
	}
	return nil
}

// Run starts sim, executes every step and stops sim before returning.
func Run(ctx context.Context, scenario *Scenario, sim *thruster.Simulator, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	sampler := NewSampler(sim, seconds(scenario.SampleEvery), metrics.Defaults()...)
	result := &Result{
		Scenario: scenario.Name,
		Steps:    make([]StepResult, 0, len(scenario.Steps)),
	}

	sim.Start()
	defer sim.Stop()

	for i, step := range scenario.Steps {
		label := step.label(i)
		logger.Info("scenario step", zap.String("scenario", scenario.Name), zap.String("step", label),
			zap.Int("index", i+1), zap.Int("total", len(scenario.Steps)))

		if err := sim.UpdateConfigFields(step.Config); err != nil {
			return result, fmt.Errorf("%s: %w", label, err)
		}
		if step.Output != nil {
			if *step.Output {
				sim.OutputOn()
			} else {
				sim.OutputOff()
			}
		}

		stepMetrics := metrics.Defaults()
		before := len(sampler.Samples())
		if err := sampler.Record(ctx, seconds(step.Hold), stepMetrics...); err != nil {
			return result, fmt.Errorf("%s: %w", label, err)
		}

		result.Steps = append(result.Steps, StepResult{
			Name:    label,
			Final:   sim.ReadTelemetry(),
			Samples: len(sampler.Samples()) - before,
			Metrics: metrics.Collect(stepMetrics),
		})
	}

	result.Samples = sampler.Samples()
	result.Metrics = sampler.Metrics()
	return result, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
