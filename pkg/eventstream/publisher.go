package eventstream

import "context"

// Publisher publishes gap events to an event stream backend.
type Publisher interface {
	PublishGaps(ctx context.Context, event *GapSurfacedEvent) error
	Close() error
}
