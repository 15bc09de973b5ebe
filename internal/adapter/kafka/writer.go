package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/radar-feed/internal/config"
	"github.com/couchcryptid/radar-feed/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes new-scan events to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured scan topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaScanTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one scan event. Events for the same station share a key so
// they land on one partition in detection order.
func (w *Writer) Publish(ctx context.Context, event domain.ScanEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish scan event: %w", err)
	}
	w.logger.Debug("scan event published", "station", event.Station, "scan_time", event.ScanTime)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ScanEvent into a Kafka message.
func serializeToMessage(event domain.ScanEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize scan event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(event.Station)},
			{Key: "sweep", Value: []byte(strconv.Itoa(event.Sweep))},
			{Key: "scan_time", Value: []byte(event.ScanTime.Format(time.RFC3339))},
		},
	}, nil
}
