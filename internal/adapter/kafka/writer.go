package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used by AlertWriter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// AlertWriter publishes earthquake alerts to a Kafka topic.
// It implements pipeline.AlertPublisher.
type AlertWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// Publish writes a single alert keyed by earthquake id, so repeated alerts
// for the same event land on one partition.
func (w *AlertWriter) Publish(ctx context.Context, alert domain.Alert) error {
	msg, err := serializeAlert(alert)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.EarthquakeID, err)
	}
	w.logger.Info("alert published", "earthquake_id", alert.EarthquakeID, "severity", alert.Severity, "magnitude", alert.Magnitude)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals an Alert into a Kafka message.
func serializeAlert(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.EarthquakeID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "magnitude", Value: []byte(strconv.FormatFloat(alert.Magnitude, 'f', 1, 64))},
			{Key: "issued_at", Value: []byte(time.UnixMilli(alert.IssuedAt).UTC().Format(time.RFC3339))},
		},
	}, nil
}
