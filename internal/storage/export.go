package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Samples []Sample    `json:"samples"`
}

// ExportJSON writes a run and its samples as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, samples []Sample) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Samples: samples})
}

// Series extracts one named column from a run for plotting.
func Series(samples []Sample, field string) ([]float64, bool) {
	pick, ok := seriesFields[field]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out, true
}

var seriesFields = map[string]func(Sample) float64{
	"thrust":               func(s Sample) float64 { return s.Telemetry.Thrust },
	"chamber_temperature":  func(s Sample) float64 { return s.Telemetry.ChamberTemperature },
	"environment_pressure": func(s Sample) float64 { return s.Telemetry.EnvironmentPressure },
	"ioniser_current":      func(s Sample) float64 { return s.Telemetry.IoniserCurrent },
	"grid_current":         func(s Sample) float64 { return s.Telemetry.GridCurrent },
	"power_total":          func(s Sample) float64 { return s.Telemetry.PowerDraw.Total() },
}

// SeriesNames lists the columns Series understands, in plotting order.
func SeriesNames() []string {
	return []string{"thrust", "chamber_temperature", "power_total", "ioniser_current", "grid_current", "environment_pressure"}
}
