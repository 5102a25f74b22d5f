package config

import (
	"sort"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

var Presets = map[string]thruster.Config{
	"idle": {},
	"nominal": {
		IoniserVoltage: 100, GridAnodeVoltage: 80, GridCathodeVoltage: 20, PropellantFlowRate: 5,
	},
	"high_power": {
		IoniserVoltage: 300, GridAnodeVoltage: 250, GridCathodeVoltage: 30, PropellantFlowRate: 12,
	},
	"reverse_grid": {
		IoniserVoltage: 100, GridAnodeVoltage: 20, GridCathodeVoltage: 80, PropellantFlowRate: 5,
	},
	"starved": {
		IoniserVoltage: 100, GridAnodeVoltage: 80, GridCathodeVoltage: 20, PropellantFlowRate: 0,
	},
}

// GetPreset returns a config carrying the named thruster settings, or nil if there is none.
func GetPreset(name string) *Config {
	t, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Thruster = t
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
