// Package kafka provides an eventstream publisher backed by a Kafka topic,
// for deployments where gap listeners live outside the gleaner process.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/gleanerhq/gleaner/pkg/eventstream"
)

// Config holds the Kafka publisher settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes gap events to a Kafka topic keyed by agent scope, so one
// agent's events land in order on a single partition.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafkago.Hash{},
		},
	}
}

// PublishGaps serializes the event as JSON and writes it to the topic.
func (p *Publisher) PublishGaps(ctx context.Context, event *eventstream.GapSurfacedEvent) error {
	if event == nil {
		return eventstream.ErrNilGapEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling gap event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.AgentID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing gap event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
