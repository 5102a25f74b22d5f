package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100*time.Millisecond, cfg.TickDuration())
	assert.Equal(t, thruster.DefaultCoolingRate, cfg.CoolingRate)
	assert.True(t, cfg.Output)
	assert.Equal(t, thruster.Config{}, cfg.Thruster)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	data := []byte(`tick_rate: 0.05
seed: 7
thruster:
  ioniser_voltage: 120
  grid_anode_voltage: 90
  grid_cathode_voltage: 10
  propellant_flow_rate: 4
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.TickDuration())
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, DefaultStopTimeout, cfg.StopTimeout, "unset fields keep defaults")
	assert.Equal(t, 120.0, cfg.Thruster.IoniserVoltage)
	assert.Equal(t, 80.0, cfg.Thruster.GridVoltage())
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tick_rate: -1\n"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("thruster: [1, 2"), 0644))
	_, err = Load(garbled)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("nominal")
	require.NotNil(t, cfg)
	cfg.Seed = 99

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("nominal")
	require.NotNil(t, cfg)
	assert.Equal(t, 100.0, cfg.Thruster.IoniserVoltage)
	assert.Equal(t, 5.0, cfg.Thruster.PropellantFlowRate)

	assert.Nil(t, GetPreset("nonexistent"))
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	assert.Len(t, presets, len(Presets))
	assert.IsIncreasing(t, presets)
	assert.Contains(t, presets, "idle")
}

func TestNewSimulator(t *testing.T) {
	cfg := GetPreset("high_power")
	cfg.Seed = 3
	sim := cfg.NewSimulator(zap.NewNop())

	assert.Equal(t, cfg.Thruster, sim.Config())
	assert.Equal(t, cfg.TickDuration(), sim.TickRate())
	assert.False(t, sim.Running())
}
