// Package bus mirrors persisted samples onto a Kafka telemetry topic so
// other systems (dashboards, long-term archival) can consume the weather
// stream without touching the device.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Config selects the brokers and topic. Publishing is optional; a zero
// config disables it.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Publisher writes samples to Kafka, keyed by the device serial number so
// one unit's readings stay in one partition.
type Publisher struct {
	writer *kafka.Writer
}

// New creates a publisher for the configured topic.
func New(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish sends one sample as JSON.
func (p *Publisher) Publish(ctx context.Context, s weather.Sample) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(s.SerialNumber),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
