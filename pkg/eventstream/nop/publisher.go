// Package nop provides a no-op eventstream publisher used for tests and for
// deployments with gap emission disabled.
package nop

import (
	"context"

	"github.com/gleanerhq/gleaner/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishGaps validates input and otherwise does nothing.
func (p *Publisher) PublishGaps(_ context.Context, event *eventstream.GapSurfacedEvent) error {
	if event == nil {
		return eventstream.ErrNilGapEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
