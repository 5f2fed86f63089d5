package eventstream

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

var _ = Describe("Bus", func() {
	var bus *Bus

	BeforeEach(func() {
		bus = NewBus(zap.NewNop())
	})

	event := func() *GapSurfacedEvent {
		return NewGapSurfacedEvent("agent-1", []candidate.KnowledgeGap{
			{Question: "Which region does the service run in?", SourceID: "cand-1"},
		})
	}

	It("rejects nil events", func() {
		Expect(bus.PublishGaps(context.Background(), nil)).To(MatchError(ErrNilGapEvent))
	})

	It("delivers events to every listener in subscription order", func() {
		var order []string
		bus.Subscribe(func(_ context.Context, ev *GapSurfacedEvent) error {
			order = append(order, "first:"+ev.AgentID)
			return nil
		})
		bus.Subscribe(func(_ context.Context, ev *GapSurfacedEvent) error {
			order = append(order, "second:"+ev.AgentID)
			return nil
		})

		Expect(bus.PublishGaps(context.Background(), event())).To(Succeed())
		Expect(order).To(Equal([]string{"first:agent-1", "second:agent-1"}))
	})

	It("isolates a failing listener from the others", func() {
		delivered := false
		bus.Subscribe(func(_ context.Context, _ *GapSurfacedEvent) error {
			return errors.New("sink down")
		})
		bus.Subscribe(func(_ context.Context, _ *GapSurfacedEvent) error {
			delivered = true
			return nil
		})

		Expect(bus.PublishGaps(context.Background(), event())).To(Succeed())
		Expect(delivered).To(BeTrue())
	})

	It("recovers a panicking listener", func() {
		delivered := false
		bus.Subscribe(func(_ context.Context, _ *GapSurfacedEvent) error {
			panic("listener blew up")
		})
		bus.Subscribe(func(_ context.Context, _ *GapSurfacedEvent) error {
			delivered = true
			return nil
		})

		Expect(bus.PublishGaps(context.Background(), event())).To(Succeed())
		Expect(delivered).To(BeTrue())
	})
})

var _ = Describe("NewGapSurfacedEvent", func() {
	It("stamps the v1 envelope", func() {
		ev := NewGapSurfacedEvent("agent-1", nil)
		Expect(ev.SchemaVersion).To(Equal(SchemaVersionV1))
		Expect(ev.EventType).To(Equal(EventTypeGapSurfaced))
		Expect(ev.EventID).NotTo(BeEmpty())
		Expect(ev.EmittedAt).NotTo(BeZero())
	})
})
