package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/0xshey/ionthruster-test-automation/internal/thruster"
)

const (
	metadataFile  = "metadata.json"
	telemetryFile = "telemetry.csv"
)

var ErrMalformedRecord = errors.New("storage: malformed telemetry record")

var csvHeader = []string{
	"time",
	thruster.KeyIoniserVoltage,
	thruster.KeyGridAnodeVoltage,
	thruster.KeyGridCathodeVoltage,
	thruster.KeyPropellantFlowRate,
	"output_enabled",
	"ioniser_current",
	"grid_current",
	"power_ioniser",
	"power_accelerator_grid",
	"power_controller",
	"thrust",
	"chamber_temperature",
	"environment_pressure",
}

// Sample is one telemetry reading taken Time seconds after recording began.
type Sample struct {
	Time      float64            `json:"time"`
	Telemetry thruster.Telemetry `json:"telemetry"`
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        uint64             `json:"seed"`
	TickRate    float64            `json:"tick_rate"`
	Duration    float64            `json:"duration"`
	CoolingRate float64            `json:"cooling_rate"`
	Thruster    thruster.Config    `json:"thruster"`
	Samples     int                `json:"samples"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes the run into its own directory and returns the generated run id.
func (s *Store) Save(meta RunMetadata, samples []Sample) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, now.UnixNano())
	meta.Timestamp = now
	meta.Samples = len(samples)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, telemetryFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, sample := range samples {
		if err := w.Write(encodeSample(sample)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func encodeSample(s Sample) []string {
	t := s.Telemetry
	return []string{
		formatFloat(s.Time),
		formatFloat(t.Config.IoniserVoltage),
		formatFloat(t.Config.GridAnodeVoltage),
		formatFloat(t.Config.GridCathodeVoltage),
		formatFloat(t.Config.PropellantFlowRate),
		strconv.FormatBool(t.OutputEnabled),
		formatFloat(t.IoniserCurrent),
		formatFloat(t.GridCurrent),
		formatFloat(t.PowerDraw.Ioniser),
		formatFloat(t.PowerDraw.AcceleratorGrid),
		formatFloat(t.PowerDraw.Controller),
		formatFloat(t.Thrust),
		formatFloat(t.ChamberTemperature),
		formatFloat(t.EnvironmentPressure),
	}
}

func decodeSample(record []string) (Sample, error) {
	if len(record) != len(csvHeader) {
		return Sample{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, len(csvHeader), len(record))
	}

	vals := make([]float64, len(record))
	for i, field := range record {
		if i == 5 {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, csvHeader[i], err)
		}
		vals[i] = v
	}
	output, err := strconv.ParseBool(record[5])
	if err != nil {
		return Sample{}, fmt.Errorf("%w: output_enabled: %v", ErrMalformedRecord, err)
	}

	return Sample{
		Time: vals[0],
		Telemetry: thruster.Telemetry{
			Config: thruster.Config{
				IoniserVoltage:     vals[1],
				GridAnodeVoltage:   vals[2],
				GridCathodeVoltage: vals[3],
				PropellantFlowRate: vals[4],
			},
			OutputEnabled:  output,
			IoniserCurrent: vals[6],
			GridCurrent:    vals[7],
			PowerDraw: thruster.PowerDraw{
				Ioniser:         vals[8],
				AcceleratorGrid: vals[9],
				Controller:      vals[10],
			},
			Thrust:              vals[11],
			ChamberTemperature:  vals[12],
			EnvironmentPressure: vals[13],
		},
	}, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, telemetryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return []Sample{}, nil
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		sample, err := decodeSample(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		samples = append(samples, sample)
	}

	return samples, nil
}
