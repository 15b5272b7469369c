package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/config"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes assembled plot rows to a Kafka topic for the
// presentation layer. It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishRows serializes rows and writes them in a single WriteMessages call.
// Rows sharing a key land on the same partition, so a series stays ordered.
func (w *Writer) PublishRows(ctx context.Context, target domain.TargetVariable, rows []domain.PlotRow) error {
	if len(rows) == 0 {
		return nil
	}
	assembledAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], target, assembledAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish plot rows: %w", err)
	}
	w.logger.Debug("plot rows published", "target_variable", target, "rows", len(rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PlotRow into a Kafka message keyed by series.
func serializeToMessage(row domain.PlotRow, target domain.TargetVariable, assembledAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize plot row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Label + "|" + row.Location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "row_type", Value: []byte(row.Type)},
			{Key: "target_variable", Value: []byte(target)},
			{Key: "assembled_at", Value: []byte(assembledAt.Format(time.RFC3339))},
		},
	}, nil
}
