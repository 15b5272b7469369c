//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-hub-etl/internal/app"
	"github.com/couchcryptid/forecast-hub-etl/internal/config"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-plot-data"

const metadataYAML = `
models: [modelA, modelB]
targets: ["1 wk ahead inc death"]
locations:
  - {code: US, name: United States, population: 332875137, geo_type: nation, geo_value: us}
  - {code: "06", name: California, population: 39512223, geo_type: state, geo_value: ca, abbreviation: CA}
`

const submissionA = `forecast_date,target,target_end_date,location,type,quantile,value
2021-01-11,1 wk ahead inc death,2021-01-16,US,point,NA,21000
2021-01-11,1 wk ahead inc death,2021-01-16,US,quantile,0.025,19000
2021-01-11,1 wk ahead inc death,2021-01-16,US,quantile,0.975,23000
2021-01-11,1 wk ahead inc death,2021-01-16,06,point,NA,3000
`

const submissionB = `forecast_date,target,target_end_date,location,type,quantile,value
2021-01-10,1 wk ahead inc death,2021-01-16,US,point,NA,20000
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("forecast-hub-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

func writeHub(t *testing.T) (root, metadataFile string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "data-processed")
	files := map[string]string{
		filepath.Join(root, "modelA", "2021-01-11-modelA.csv"): submissionA,
		filepath.Join(root, "modelB", "2021-01-10-modelB.csv"): submissionB,
		filepath.Join(dir, "metadata.yaml"):                    metadataYAML,
	}
	for path, body := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return root, filepath.Join(dir, "metadata.yaml")
}

// TestPlotPublishEndToEnd assembles plot data from a local hub and reads the
// published rows back from the sink topic.
func TestPlotPublishEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	root, metadataFile := writeHub(t)
	cfg := &config.Config{
		RootDir:             root,
		FileExt:             "csv",
		WindowDays:          6,
		LoadConcurrency:     2,
		FillTransparency:    0.5,
		MetadataFile:        metadataFile,
		KafkaBrokers:        []string{broker},
		KafkaSinkTopic:      testSinkTopic,
		KafkaPublishEnabled: true,
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Service.Plot(ctx, pipeline.PlotQuery{
		ForecastQuery:  pipeline.ForecastQuery{LastForecastDate: time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)},
		TargetVariable: domain.IncidentDeaths,
		Intervals:      []float64{0.95},
		Publish:        true,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 4, "modelA point+band for US, point for 06, modelB point for US")

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     "test-consumer-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byKey := map[string][]domain.PlotRow{}
	for range res.Rows {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, string(domain.IncidentDeaths), headers["target_variable"])
		assert.NotEmpty(t, headers["assembled_at"])

		var row domain.PlotRow
		require.NoError(t, json.Unmarshal(msg.Value, &row))
		assert.Equal(t, string(row.Type), headers["row_type"])
		byKey[string(msg.Key)] = append(byKey[string(msg.Key)], row)
	}

	require.Len(t, byKey["modelA|US"], 2)
	assert.Equal(t, domain.PlotPoint, byKey["modelA|US"][0].Type, "series order is kept within a partition")
	assert.Equal(t, domain.PlotQuantile, byKey["modelA|US"][1].Type)
	assert.Len(t, byKey["modelA|06"], 1)
	assert.Len(t, byKey["modelB|US"], 1)
}

// TestWriter_RoundTrip checks the writer in isolation against a real broker.
func TestWriter_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	w := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}, discardLogger())
	t.Cleanup(func() { _ = w.Close() })

	point := 42.0
	fd := time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.PublishRows(ctx, domain.CumulativeDeaths, []domain.PlotRow{{
		Label: "modelA", ForecastDate: &fd, TargetEndDate: fd.AddDate(0, 0, 5),
		Location: "US", Type: domain.PlotPoint, Point: &point,
	}}))

	// With a single message and three partitions, look across all of them.
	var found bool
	for p := 0; p < 3 && !found; p++ {
		r := kafkago.NewReader(kafkago.ReaderConfig{Brokers: []string{broker}, Topic: testSinkTopic, Partition: p, MaxWait: 500 * time.Millisecond})
		readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
		msg, err := r.ReadMessage(readCtx)
		readCancel()
		_ = r.Close()
		if err != nil {
			continue
		}
		found = true
		assert.Equal(t, "modelA|US", string(msg.Key))
	}
	assert.True(t, found, "published message not found on any partition")
}
