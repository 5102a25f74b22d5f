package thruster

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testTickRate = 10 * time.Millisecond

func workerDone(s *Simulator) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// gatedWriter blocks every tick log line until release is closed.
type gatedWriter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(`"msg":"tick"`)) {
		w.once.Do(func() { close(w.entered) })
		<-w.release
	}
	return len(p), nil
}

var _ = Describe("Simulator", func() {
	var (
		sim  *Simulator
		logs *observer.ObservedLogs
	)

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		sim = New(WithTickRate(testTickRate), WithLogger(zap.New(core)))
	})

	AfterEach(func() {
		sim.Stop()
	})

	Describe("construction", func() {
		It("starts with zeroed configuration and idle lifecycle", func() {
			Expect(sim.Config()).To(Equal(Config{}))
			Expect(sim.Running()).To(BeFalse())
			Expect(sim.OutputEnabled()).To(BeFalse())
			Expect(sim.TickRate()).To(Equal(testTickRate))

			tel := sim.ReadTelemetry()
			Expect(tel.ChamberTemperature).To(Equal(InitialChamberTemperature))
			Expect(tel.EnvironmentPressure).To(Equal(InitialEnvironmentPressure))
			Expect(tel.Thrust).To(BeZero())
			Expect(tel.Ticks).To(BeZero())
		})

		It("uses the documented defaults", func() {
			s := New()
			Expect(s.TickRate()).To(Equal(DefaultTickRate))
			Expect(s.stopTimeout).To(Equal(DefaultStopTimeout))
			Expect(s.coolingRate).To(Equal(DefaultCoolingRate))
		})
	})

	Describe("configuration", func() {
		It("overwrites only the supplied fields", func() {
			sim.UpdateConfig(ConfigUpdate{IoniserVoltage: Float(50)})
			Expect(sim.Config()).To(Equal(Config{IoniserVoltage: 50}))

			Expect(sim.UpdateConfigFields(map[string]float64{KeyPropellantFlowRate: 3})).To(Succeed())
			Expect(sim.Config()).To(Equal(Config{IoniserVoltage: 50, PropellantFlowRate: 3}))
		})

		It("rejects unknown keys with the offending key", func() {
			err := sim.UpdateConfigFields(map[string]float64{"bogus_key": 1})
			Expect(errors.Is(err, ErrInvalidConfigKey)).To(BeTrue())

			var keyErr *InvalidConfigKeyError
			Expect(errors.As(err, &keyErr)).To(BeTrue())
			Expect(keyErr.Key).To(Equal("bogus_key"))
			Expect(err.Error()).To(ContainSubstring("bogus_key"))
			Expect(sim.Config()).To(Equal(Config{}))
		})

		It("applies nothing when any key is unknown", func() {
			err := sim.UpdateConfigFields(map[string]float64{
				KeyIoniserVoltage:   100,
				KeyGridAnodeVoltage: 80,
				"thrust":            9,
			})
			Expect(err).To(MatchError(ErrInvalidConfigKey))
			Expect(sim.Config()).To(Equal(Config{}))
		})
	})

	Describe("lifecycle", func() {
		It("ticks in the background after start", func() {
			sim.Start()
			Expect(sim.Running()).To(BeTrue())
			Expect(sim.OutputEnabled()).To(BeTrue())

			Eventually(sim.Ticks).WithTimeout(time.Second).Should(BeNumerically(">=", 1))
			Eventually(func() float64 {
				return sim.ReadTelemetry().ChamberTemperature
			}).WithTimeout(time.Second).ShouldNot(Equal(InitialChamberTemperature))
			Expect(logs.FilterMessage("tick").Len()).To(BeNumerically(">=", 1))
		})

		It("does not launch a second worker when already running", func() {
			sim.Start()
			first := workerDone(sim)

			sim.Start()
			Expect(workerDone(sim)).To(BeIdenticalTo(first))
			Expect(sim.Running()).To(BeTrue())
			Expect(logs.FilterMessage("start ignored, simulator already running").Len()).To(Equal(1))

			before := sim.Ticks()
			began := time.Now()
			time.Sleep(20 * testTickRate)
			elapsed := time.Since(began)
			ticked := sim.Ticks() - before

			// One fixed-delay worker cannot complete more than one tick per period.
			Expect(ticked).To(BeNumerically("<=", uint64(elapsed/testTickRate)+1))
		})

		It("halts ticking once stop returns", func() {
			sim.Start()
			Eventually(sim.Ticks).WithTimeout(time.Second).Should(BeNumerically(">=", 2))

			sim.Stop()
			Expect(sim.Running()).To(BeFalse())
			Expect(sim.OutputEnabled()).To(BeFalse())
			Expect(workerDone(sim)).To(BeClosed())

			snapshot := sim.ReadTelemetry()
			Consistently(sim.ReadTelemetry).
				WithTimeout(5 * testTickRate).
				WithPolling(testTickRate).
				Should(Equal(snapshot))
		})

		It("treats stop on an idle simulator as a no-op", func() {
			Expect(sim.Stop).NotTo(Panic())
			sim.Stop()
			Expect(sim.Running()).To(BeFalse())
			Expect(logs.FilterMessage("stop ignored, simulator not running").Len()).To(Equal(2))
		})

		It("can be restarted after a stop", func() {
			sim.Start()
			Eventually(sim.Ticks).WithTimeout(time.Second).Should(BeNumerically(">=", 1))
			sim.Stop()
			stopped := sim.Ticks()

			sim.Start()
			Expect(sim.Running()).To(BeTrue())
			Eventually(sim.Ticks).WithTimeout(time.Second).Should(BeNumerically(">", stopped))
		})
	})

	Describe("output gate", func() {
		It("toggles independently of the lifecycle", func() {
			sim.OutputOn()
			Expect(sim.OutputEnabled()).To(BeTrue())
			Expect(sim.Running()).To(BeFalse())

			sim.OutputOff()
			Expect(sim.OutputEnabled()).To(BeFalse())

			sim.Start()
			sim.OutputOff()
			Expect(sim.Running()).To(BeTrue())
			Expect(sim.OutputEnabled()).To(BeFalse())
		})

		It("produces thrust with a nominal configuration", func() {
			sim.UpdateConfig(nominalConfig())
			sim.Start()

			Eventually(func() float64 {
				return sim.ReadTelemetry().Thrust
			}).WithTimeout(time.Second).Should(BeNumerically(">", 0))
		})

		It("cuts thrust when output is switched off", func() {
			sim.UpdateConfig(nominalConfig())
			sim.Start()
			Eventually(func() float64 { return sim.ReadTelemetry().Thrust }).
				WithTimeout(time.Second).Should(BeNumerically(">", 0))

			sim.OutputOff()
			Eventually(func() float64 { return sim.ReadTelemetry().Thrust }).
				WithTimeout(time.Second).Should(BeZero())
		})
	})

	Describe("telemetry", func() {
		It("hands out copies", func() {
			sim.UpdateConfig(nominalConfig())
			sim.Start()
			Eventually(sim.Ticks).WithTimeout(time.Second).Should(BeNumerically(">=", 1))
			sim.Stop()

			tel := sim.ReadTelemetry()
			cfg := tel.ConfigMap()
			power := tel.PowerDrawMap()
			Expect(power).To(HaveLen(3))
			Expect(power).To(HaveKeyWithValue("controller", ControllerPowerDraw))

			cfg[KeyIoniserVoltage] = -1
			power["controller"] = 999
			tel.Config.GridAnodeVoltage = -1

			again := sim.ReadTelemetry()
			Expect(again.ConfigMap()).To(HaveKeyWithValue(KeyIoniserVoltage, 100.0))
			Expect(again.Config.GridAnodeVoltage).To(Equal(80.0))
			Expect(again.PowerDrawMap()).To(HaveKeyWithValue("controller", ControllerPowerDraw))
		})

		It("stays consistent under concurrent access", func() {
			sim.Start()

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(v float64) {
					defer GinkgoRecover()
					defer wg.Done()
					for j := 0; j < 50; j++ {
						sim.UpdateConfig(ConfigUpdate{IoniserVoltage: Float(v), GridAnodeVoltage: Float(v)})
						tel := sim.ReadTelemetry()
						Expect(tel.Config.IoniserVoltage).To(Equal(tel.Config.GridAnodeVoltage))
					}
				}(float64(i))
			}
			wg.Wait()
		})
	})

	Describe("failure handling", func() {
		It("marks the simulator stopped when a tick panics", func() {
			var calls atomic.Int32
			noise := func(mean, sd float64) float64 {
				if calls.Add(1) > 6 {
					panic("noise source failed")
				}
				return mean
			}
			core, failLogs := observer.New(zapcore.DebugLevel)
			s := New(WithTickRate(testTickRate), WithNoise(noise), WithLogger(zap.New(core)))
			s.Start()

			Eventually(s.Running).WithTimeout(time.Second).Should(BeFalse())
			Eventually(workerDone(s)).WithTimeout(time.Second).Should(BeClosed())
			Expect(s.OutputEnabled()).To(BeFalse())
			Expect(s.ReadTelemetry().OutputEnabled).To(BeFalse())
			Expect(s.Ticks()).To(Equal(uint64(2)))
			Expect(failLogs.FilterMessage("tick failed, worker exiting").Len()).To(Equal(1))

			s.Stop()
			Expect(s.Running()).To(BeFalse())
		})

		It("returns from stop and warns when the worker is stuck", func() {
			w := newGatedWriter()
			core, warnLogs := observer.New(zapcore.WarnLevel)
			sink := zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(w),
				zapcore.InfoLevel,
			)
			s := New(
				WithTickRate(testTickRate),
				WithStopTimeout(50*time.Millisecond),
				WithNoise(NoNoise()),
				WithLogger(zap.New(zapcore.NewTee(core, sink))),
			)
			s.Start()
			Eventually(w.entered).WithTimeout(time.Second).Should(BeClosed())
			ticks := s.Ticks()

			began := time.Now()
			s.Stop()
			Expect(time.Since(began)).To(BeNumerically("<", time.Second))
			Expect(s.Running()).To(BeFalse())
			Expect(warnLogs.FilterMessageSnippet("did not exit").Len()).To(Equal(1))

			close(w.release)
			Eventually(workerDone(s)).WithTimeout(time.Second).Should(BeClosed())
			Expect(s.Ticks()).To(Equal(ticks))
		})
	})
})
