// Package eventstream defines the transport-neutral knowledge-gap event and
// the publisher boundary between the extraction pipeline and downstream
// listeners. Producers and consumers never share state directly; they are
// both handed an explicitly constructed Bus (or another Publisher) at startup.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGapSurfaced is emitted when extraction surfaces knowledge gaps.
	EventTypeGapSurfaced = "gleaner.gap.surfaced"
)

// GapSurfacedEvent carries the knowledge gaps surfaced for one agent scope.
type GapSurfacedEvent struct {
	SchemaVersion int                      `json:"schema_version"`
	EventType     string                   `json:"event_type"`
	EventID       string                   `json:"event_id"`
	EmittedAt     time.Time                `json:"emitted_at"`
	AgentID       string                   `json:"agent_id"`
	Gaps          []candidate.KnowledgeGap `json:"gaps"`
}

// NewGapSurfacedEvent builds a v1 event envelope for the given agent scope.
func NewGapSurfacedEvent(agentID string, gaps []candidate.KnowledgeGap) *GapSurfacedEvent {
	return &GapSurfacedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGapSurfaced,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now(),
		AgentID:       agentID,
		Gaps:          gaps,
	}
}
