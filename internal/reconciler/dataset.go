package reconciler

import (
	"fmt"

	"github.com/chrissnell/pvreconcile/internal/align"
	"github.com/chrissnell/pvreconcile/internal/ingest"
	"github.com/chrissnell/pvreconcile/internal/metrics"
	"github.com/chrissnell/pvreconcile/internal/storage"
	"github.com/chrissnell/pvreconcile/pkg/config"
)

// Dataset is the per-dataset state shared by its site runs: the raw file
// reader, the loaded weather table and the aligner.
type Dataset struct {
	Config  config.DatasetData
	Power   *ingest.PowerReader
	Weather *ingest.WeatherTable
	Aligner *align.Aligner
}

// PrepareDataset loads the weather table and builds the readers of ds.
func PrepareDataset(ds config.DatasetData) (*Dataset, error) {
	power, err := ingest.NewPowerReader(ds.Input)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}
	weather, err := ingest.LoadWeather(ds.Weather)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	aligner := align.New(align.Options{
		Mode:             ds.Input.AlignMode,
		Sources:          ds.Sources,
		Blocklist:        ds.Blocklist,
		DefaultStationID: ds.Weather.DefaultStationID,
		MaxFillHours:     ds.Weather.MaxFillHours,
		RequireWeather:   ds.Weather.Path != "",
	})
	return &Dataset{Config: ds, Power: power, Weather: weather, Aligner: aligner}, nil
}

// Outputs are the run-wide destinations every site writes to.
type Outputs struct {
	Config  config.OutputData
	RunID   string
	Sinks   []storage.Sink
	Audit   *storage.AuditStore
	Metrics *metrics.Metrics
}
