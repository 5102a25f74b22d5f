package thruster

import "sort"

// Configuration keys accepted by UpdateConfigFields.
const (
	KeyIoniserVoltage     = "ioniser_voltage"
	KeyGridAnodeVoltage   = "grid_anode_voltage"
	KeyGridCathodeVoltage = "grid_cathode_voltage"
	KeyPropellantFlowRate = "propellant_flow_rate"
)

const (
	InitialChamberTemperature  = 20.0
	InitialEnvironmentPressure = 101.3
	ControllerPowerDraw        = 2.0
)

// Config holds the operator-settable inputs of the thruster.
type Config struct {
	IoniserVoltage     float64 `yaml:"ioniser_voltage" json:"ioniser_voltage"`
	GridAnodeVoltage   float64 `yaml:"grid_anode_voltage" json:"grid_anode_voltage"`
	GridCathodeVoltage float64 `yaml:"grid_cathode_voltage" json:"grid_cathode_voltage"`
	PropellantFlowRate float64 `yaml:"propellant_flow_rate" json:"propellant_flow_rate"`
}

// GridVoltage is the anode voltage minus the cathode voltage.
func (c Config) GridVoltage() float64 {
	return c.GridAnodeVoltage - c.GridCathodeVoltage
}

func (c Config) AsMap() map[string]float64 {
	return map[string]float64{
		KeyIoniserVoltage:     c.IoniserVoltage,
		KeyGridAnodeVoltage:   c.GridAnodeVoltage,
		KeyGridCathodeVoltage: c.GridCathodeVoltage,
		KeyPropellantFlowRate: c.PropellantFlowRate,
	}
}

// Update returns a ConfigUpdate that overwrites every field with c's values.
func (c Config) Update() ConfigUpdate {
	return ConfigUpdate{
		IoniserVoltage:     Float(c.IoniserVoltage),
		GridAnodeVoltage:   Float(c.GridAnodeVoltage),
		GridCathodeVoltage: Float(c.GridCathodeVoltage),
		PropellantFlowRate: Float(c.PropellantFlowRate),
	}
}

// field returns a pointer to the named field, or nil if the key is unknown.
func (c *Config) field(key string) *float64 {
	switch key {
	case KeyIoniserVoltage:
		return &c.IoniserVoltage
	case KeyGridAnodeVoltage:
		return &c.GridAnodeVoltage
	case KeyGridCathodeVoltage:
		return &c.GridCathodeVoltage
	case KeyPropellantFlowRate:
		return &c.PropellantFlowRate
	}
	return nil
}

// ConfigKeys lists the recognized configuration keys in sorted order.
func ConfigKeys() []string {
	keys := []string{KeyIoniserVoltage, KeyGridAnodeVoltage, KeyGridCathodeVoltage, KeyPropellantFlowRate}
	sort.Strings(keys)
	return keys
}

// ConfigUpdate is a partial configuration change. Nil fields are left untouched.
type ConfigUpdate struct {
	IoniserVoltage     *float64
	GridAnodeVoltage   *float64
	GridCathodeVoltage *float64
	PropellantFlowRate *float64
}

func (u ConfigUpdate) apply(c *Config) {
	if u.IoniserVoltage != nil {
		c.IoniserVoltage = *u.IoniserVoltage
	}
	if u.GridAnodeVoltage != nil {
		c.GridAnodeVoltage = *u.GridAnodeVoltage
	}
	if u.GridCathodeVoltage != nil {
		c.GridCathodeVoltage = *u.GridCathodeVoltage
	}
	if u.PropellantFlowRate != nil {
		c.PropellantFlowRate = *u.PropellantFlowRate
	}
}

// Float is a helper for building ConfigUpdate literals.
func Float(v float64) *float64 { return &v }

// PowerDraw is the per-component electrical power in watts.
type PowerDraw struct {
	Ioniser         float64 `json:"ioniser"`
	AcceleratorGrid float64 `json:"accelerator_grid"`
	Controller      float64 `json:"controller"`
}

func (p PowerDraw) Total() float64 {
	return p.Ioniser + p.AcceleratorGrid + p.Controller
}

func (p PowerDraw) AsMap() map[string]float64 {
	return map[string]float64{
		"ioniser":          p.Ioniser,
		"accelerator_grid": p.AcceleratorGrid,
		"controller":       p.Controller,
	}
}

// Telemetry is a point-in-time snapshot of the simulator. It shares no memory with the simulator.
type Telemetry struct {
	Config              Config    `json:"config"`
	Thrust              float64   `json:"thrust"`
	ChamberTemperature  float64   `json:"chamber_temperature"`
	EnvironmentPressure float64   `json:"environment_pressure"`
	PowerDraw           PowerDraw `json:"power_draw"`
	IoniserCurrent      float64   `json:"ioniser_current"`
	GridCurrent         float64   `json:"grid_current"`
	OutputEnabled       bool      `json:"output_enabled"`
	Running             bool      `json:"running"`
	Ticks               uint64    `json:"ticks"`
}

func (t Telemetry) ConfigMap() map[string]float64    { return t.Config.AsMap() }
func (t Telemetry) PowerDrawMap() map[string]float64 { return t.PowerDraw.AsMap() }

type deviceState struct {
	ioniserCurrent      float64
	gridCurrent         float64
	powerDraw           PowerDraw
	thrust              float64
	chamberTemperature  float64
	environmentPressure float64
}
