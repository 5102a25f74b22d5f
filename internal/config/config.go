package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTickRate    = 0.1
	DefaultStopTimeout = 2.0
	DefaultCoolingRate = thruster.DefaultCoolingRate
	DefaultLogLevel    = "info"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the on-disk description of a simulator run. Durations are in seconds.
type Config struct {
	TickRate    float64         `yaml:"tick_rate"`
	StopTimeout float64         `yaml:"stop_timeout"`
	CoolingRate float64         `yaml:"cooling_rate"`
	Seed        uint64          `yaml:"seed"`
	LogLevel    string          `yaml:"log_level"`
	Output      bool            `yaml:"output"`
	Thruster    thruster.Config `yaml:"thruster"`
}

func DefaultConfig() *Config {
	return &Config{
		TickRate:    DefaultTickRate,
		StopTimeout: DefaultStopTimeout,
		CoolingRate: DefaultCoolingRate,
		LogLevel:    DefaultLogLevel,
		Output:      true,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: tick_rate must be positive, got %f", ErrInvalidConfig, c.TickRate)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("%w: stop_timeout must be positive, got %f", ErrInvalidConfig, c.StopTimeout)
	}
	if c.CoolingRate < 0 {
		return fmt.Errorf("%w: cooling_rate must not be negative, got %f", ErrInvalidConfig, c.CoolingRate)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) TickDuration() time.Duration { return seconds(c.TickRate) }

// Options translates the file config into simulator options. A zero seed keeps the
// non-deterministic noise source.
func (c *Config) Options(logger *zap.Logger) []thruster.Option {
	opts := []thruster.Option{
		thruster.WithTickRate(seconds(c.TickRate)),
		thruster.WithStopTimeout(seconds(c.StopTimeout)),
		thruster.WithCoolingRate(c.CoolingRate),
		thruster.WithLogger(logger),
	}
	if c.Seed != 0 {
		opts = append(opts, thruster.WithNoise(thruster.SeededNoise(c.Seed)))
	}
	return opts
}

// NewSimulator builds a simulator with the thruster settings already applied.
func (c *Config) NewSimulator(logger *zap.Logger) *thruster.Simulator {
	sim := thruster.New(c.Options(logger)...)
	sim.UpdateConfig(c.Thruster.Update())
	return sim
}
