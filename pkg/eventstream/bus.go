package eventstream

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Listener handles one gap event. Listener errors are logged and isolated;
// one failing listener never affects the others or the publishing pipeline.
type Listener func(ctx context.Context, event *GapSurfacedEvent) error

// Bus is an in-process publisher that dispatches gap events synchronously to
// registered listeners. It replaces any notion of a shared global listener
// list: the bus is constructed once and injected into both the scheduler and
// every consumer.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a listener. Safe for concurrent use.
func (b *Bus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// PublishGaps invokes every registered listener in subscription order.
// A listener panic is recovered and logged so the remaining listeners and
// the caller are unaffected.
func (b *Bus) PublishGaps(ctx context.Context, event *GapSurfacedEvent) error {
	if event == nil {
		return ErrNilGapEvent
	}

	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for i, listener := range listeners {
		b.dispatch(ctx, i, listener, event)
	}

	return nil
}

func (b *Bus) dispatch(ctx context.Context, index int, listener Listener, event *GapSurfacedEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("gap listener panicked",
				zap.Int("listener", index),
				zap.Any("panic", r),
			)
		}
	}()

	if err := listener(ctx, event); err != nil {
		b.logger.Warn("gap listener failed",
			zap.Int("listener", index),
			zap.String("agent", event.AgentID),
			zap.Error(err),
		)
	}
}

// Close is a no-op; the bus holds no external resources.
func (b *Bus) Close() error {
	return nil
}
