package thruster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTickRate    = 100 * time.Millisecond
	DefaultStopTimeout = 2 * time.Second
	DefaultCoolingRate = 0.3
)

// Simulator is a discrete-time model of a single ion thruster.
// All configuration and device state live behind one mutex.
type Simulator struct {
	tickRate    time.Duration
	stopTimeout time.Duration
	coolingRate float64
	noise       NoiseFunc
	logger      *zap.Logger

	mu            sync.Mutex
	cfg           Config
	state         deviceState
	outputEnabled bool
	running       bool
	ticks         uint64
	cancel        context.CancelFunc
	done          chan struct{}
}

type Option func(*Simulator)

// WithTickRate sets the delay between the end of one tick and the start of the next.
func WithTickRate(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.tickRate = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the worker to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithCoolingRate sets the temperature drop per tick while output is disabled.
func WithCoolingRate(rate float64) Option {
	return func(s *Simulator) { s.coolingRate = rate }
}

func WithNoise(fn NoiseFunc) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.noise = fn
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		tickRate:    DefaultTickRate,
		stopTimeout: DefaultStopTimeout,
		coolingRate: DefaultCoolingRate,
		noise:       GaussianNoise(),
		logger:      zap.NewNop(),
		state: deviceState{
			chamberTemperature:  InitialChamberTemperature,
			environmentPressure: InitialEnvironmentPressure,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) TickRate() time.Duration { return s.tickRate }

// UpdateConfig overwrites every non-nil field of u.
func (s *Simulator) UpdateConfig(u ConfigUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.apply(&s.cfg)
}

// UpdateConfigFields applies a keyed update. Every key is checked before any value is written,
// so a rejected update leaves the configuration untouched.
func (s *Simulator) UpdateConfigFields(fields map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	for key, value := range fields {
		f := next.field(key)
		if f == nil {
			return &InvalidConfigKeyError{Key: key}
		}
		*f = value
	}
	s.cfg = next
	return nil
}

func (s *Simulator) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start enables output and launches the tick worker. Calling Start on a running
// simulator does nothing.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("start ignored, simulator already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.outputEnabled = true
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("simulator started", zap.Duration("tick_rate", s.tickRate))
}

// Stop halts the tick worker, disables output and waits up to the stop timeout for the
// worker to exit. No tick mutates state after Stop returns.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("stop ignored, simulator not running")
		return
	}
	s.running = false
	s.outputEnabled = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.Info("simulator stopped")
	case <-timer.C:
		s.logger.Warn("tick worker did not exit before timeout, it may leak",
			zap.Duration("timeout", s.stopTimeout))
	}
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) OutputOn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputEnabled = true
}

func (s *Simulator) OutputOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputEnabled = false
}

func (s *Simulator) OutputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputEnabled
}

// Ticks reports how many ticks have completed since construction.
func (s *Simulator) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Simulator) ReadTelemetry() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Telemetry{
		Config:              s.cfg,
		Thrust:              s.state.thrust,
		ChamberTemperature:  s.state.chamberTemperature,
		EnvironmentPressure: s.state.environmentPressure,
		PowerDraw:           s.state.powerDraw,
		IoniserCurrent:      s.state.ioniserCurrent,
		GridCurrent:         s.state.gridCurrent,
		OutputEnabled:       s.outputEnabled,
		Running:             s.running,
		Ticks:               s.ticks,
	}
}

// loop runs with a fixed delay: the timer is re-armed only after a tick completes.
func (s *Simulator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.tickRate)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		fields, err := s.safeTick(ctx)
		if err != nil {
			s.logger.Error("tick failed, worker exiting", zap.Error(err))
			return
		}
		if fields == nil {
			return
		}
		// Logged outside the lock so a slow sink never blocks readers.
		s.logger.Info("tick", fields...)
		timer.Reset(s.tickRate)
	}
}

func (s *Simulator) safeTick(ctx context.Context) (fields []zap.Field, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick %d panicked: %v", s.ticks+1, r)
			s.running = false
			s.outputEnabled = false
			s.cancel()
		}
	}()

	// Stop may have won the lock after the timer fired.
	if ctx.Err() != nil {
		return nil, nil
	}
	return s.tick(), nil
}
