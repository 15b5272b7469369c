package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testMetaURL   = "https://zoltardata.com"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("METADATA_URL", testMetaURL)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data-processed", cfg.RootDir)
	assert.Equal(t, "csv", cfg.FileExt)
	assert.Equal(t, 6, cfg.WindowDays)
	assert.Equal(t, 4, cfg.LoadConcurrency)
	assert.InDelta(t, 0.5, cfg.FillTransparency, 0)
	assert.Equal(t, "COVID-19 Forecasts", cfg.MetadataProject)
	assert.Equal(t, 10*time.Second, cfg.MetadataTimeout)
	assert.Equal(t, time.Hour, cfg.MetadataCacheTTL)
	assert.InDelta(t, 5, cfg.MetadataRateLimit, 0)
	assert.Equal(t, 30*time.Second, cfg.TruthTimeout)
	assert.Equal(t, time.Hour, cfg.TruthCacheTTL)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "forecast-plot-data", cfg.KafkaSinkTopic)
	assert.False(t, cfg.KafkaPublishEnabled)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FORECAST_ROOT_DIR", "/srv/hub/data-processed")
	t.Setenv("FORECAST_FILE_EXT", "csv.gz")
	t.Setenv("FORECAST_WINDOW_DAYS", "13")
	t.Setenv("LOAD_CONCURRENCY", "16")
	t.Setenv("FILL_TRANSPARENCY", "0.3")
	t.Setenv("METADATA_FILE", "/etc/hub/metadata.yaml")
	t.Setenv("METADATA_TOKEN", "jwt")
	t.Setenv("METADATA_CACHE_TTL", "15m")
	t.Setenv("TRUTH_DIR", "/srv/hub")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_PUBLISH_ENABLED", "true")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/hub/data-processed", cfg.RootDir)
	assert.Equal(t, "csv.gz", cfg.FileExt)
	assert.Equal(t, 13, cfg.WindowDays)
	assert.Equal(t, 16, cfg.LoadConcurrency)
	assert.InDelta(t, 0.3, cfg.FillTransparency, 1e-9)
	assert.Equal(t, "/etc/hub/metadata.yaml", cfg.MetadataFile)
	assert.Equal(t, "jwt", cfg.MetadataToken)
	assert.Equal(t, 15*time.Minute, cfg.MetadataCacheTTL)
	assert.Equal(t, "/srv/hub", cfg.TruthDir)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.True(t, cfg.KafkaPublishEnabled)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "no metadata source", env: map[string]string{"METADATA_URL": ""}, wantErr: "METADATA_URL or METADATA_FILE"},
		{name: "both metadata sources", env: map[string]string{"METADATA_FILE": "m.yaml"}, wantErr: "mutually exclusive"},
		{name: "both truth sources", env: map[string]string{"TRUTH_DIR": "/hub", "TRUTH_BASE_URL": "https://raw.example"}, wantErr: "TRUTH_BASE_URL"},
		{name: "bad shutdown timeout", env: map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, wantErr: "SHUTDOWN_TIMEOUT"},
		{name: "negative window", env: map[string]string{"FORECAST_WINDOW_DAYS": "-1"}, wantErr: "FORECAST_WINDOW_DAYS"},
		{name: "zero concurrency", env: map[string]string{"LOAD_CONCURRENCY": "0"}, wantErr: "LOAD_CONCURRENCY"},
		{name: "transparency out of range", env: map[string]string{"FILL_TRANSPARENCY": "1.5"}, wantErr: "FILL_TRANSPARENCY"},
		{name: "bad metadata timeout", env: map[string]string{"METADATA_TIMEOUT": "soon"}, wantErr: "METADATA_TIMEOUT"},
		{name: "bad publish flag", env: map[string]string{"KAFKA_PUBLISH_ENABLED": "maybe"}, wantErr: "KAFKA_PUBLISH_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("METADATA_URL", testMetaURL)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_FlagsBeforeValidate(t *testing.T) {
	t.Setenv("METADATA_URL", "")
	t.Setenv("METADATA_FILE", "")

	cfg, err := Parse()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.MetadataFile = "metadata.yaml"
	assert.NoError(t, cfg.Validate())
}
