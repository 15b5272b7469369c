package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/config"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataYAML = `
models: [modelA]
targets: ["1 wk ahead inc death"]
locations:
  - {code: US, name: United States, population: 332875137, geo_type: nation, geo_value: us}
`

const submission = `forecast_date,target,target_end_date,location,type,quantile,value
2021-01-11,1 wk ahead inc death,2021-01-16,US,point,NA,21000
`

const truthTable = `date,location,location_name,value
2021-01-16,US,United States,21500
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestNew_LocalWiring(t *testing.T) {
	dir := t.TempDir()
	hub := filepath.Join(dir, "data-processed")
	writeFile(t, filepath.Join(dir, "metadata.yaml"), metadataYAML)
	writeFile(t, filepath.Join(hub, "modelA", "2021-01-11-modelA.csv"), submission)
	writeFile(t, filepath.Join(dir, "data-truth", "truth-Incident Deaths.csv"), truthTable)

	cfg := &config.Config{
		RootDir:         hub,
		FileExt:         "csv",
		WindowDays:      6,
		LoadConcurrency: 2,
		MetadataFile:    filepath.Join(dir, "metadata.yaml"),
		TruthDir:        dir,
		TruthTimeout:    time.Second,
	}
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Service.Plot(context.Background(), pipeline.PlotQuery{
		ForecastQuery:  pipeline.ForecastQuery{LastForecastDate: time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)},
		TargetVariable: domain.IncidentDeaths,
		IncludeTruth:   true,
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, domain.PlotPoint, res.Rows[0].Type)
	assert.Equal(t, "Observed Data (JHU)", res.Rows[1].Label)
	assert.Empty(t, res.Intervals)
}

func TestNew_MissingMetadataFile(t *testing.T) {
	cfg := &config.Config{MetadataFile: filepath.Join(t.TempDir(), "absent.yaml")}

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestNew_NoTruthSource(t *testing.T) {
	cfg := &config.Config{MetadataURL: "http://127.0.0.1:1", MetadataCacheTTL: time.Minute}
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)

	assert.Nil(t, newTruthProvider(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting()))
	assert.NoError(t, a.Close())
}
