// Package candidate defines the data model shared by the queue, the
// extraction engine, and the scheduler: raw conversation material awaiting
// extraction and the knowledge artifacts derived from it.
package candidate

import "time"

const (
	// MaxMessages is the number of trailing messages retained per candidate.
	MaxMessages = 10

	// MaxMessageChars caps the stored text of a single message.
	MaxMessageChars = 500
)

// Message is a single role-tagged utterance from a conversation excerpt.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Meta holds free-form context recorded at admission time.
type Meta struct {
	ExchangeLen int    `json:"exchange_len"`
	SessionID   string `json:"session_id,omitempty"`
}

// Candidate is a unit of raw conversational material awaiting extraction.
// The message sequence is immutable once written; Score is used only for
// dequeue ordering and never mutated after persistence.
type Candidate struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	Score     float64   `json:"score"`
	Messages  []Message `json:"messages"`
	Meta      Meta      `json:"meta"`

	// WrittenAt is the wall-clock time at persistence, set by the queue.
	WrittenAt time.Time `json:"written_at"`

	// ResultSummary is attached best-effort when the candidate is archived.
	ResultSummary string `json:"result_summary,omitempty"`
}

// New builds a Candidate from a conversation excerpt, keeping the last
// MaxMessages messages and capping each message's text at MaxMessageChars.
// The ID and WrittenAt are assigned by the queue on enqueue.
func New(userID string, score float64, messages []Message, sessionID string) *Candidate {
	exchangeLen := len(messages)
	if len(messages) > MaxMessages {
		messages = messages[len(messages)-MaxMessages:]
	}

	kept := make([]Message, len(messages))
	for i, msg := range messages {
		text := msg.Text
		if len(text) > MaxMessageChars {
			text = text[:MaxMessageChars]
		}
		kept[i] = Message{Role: msg.Role, Text: text}
	}

	return &Candidate{
		CreatedAt: time.Now(),
		UserID:    userID,
		Score:     score,
		Messages:  kept,
		Meta: Meta{
			ExchangeLen: exchangeLen,
			SessionID:   sessionID,
		},
	}
}

// Growth vector types, first keyword-family match wins during classification.
const (
	VectorTypeUserCorrection     = "user_correction"
	VectorTypeProcedural         = "procedural"
	VectorTypePatternRecognition = "pattern_recognition"
	VectorTypePreferenceLearning = "preference_learning"
	VectorTypeInsight            = "insight"
)

// VectorStatusCandidate is the only status this pipeline ever assigns.
// Validation is owned by the downstream consumer of the vector collection.
const VectorStatusCandidate = "candidate"

// GrowthVector is a promoted implication flagged as a candidate permanent
// behavioral trait. Appended (never mutated) to the vector collection.
type GrowthVector struct {
	ID          string    `json:"id"`
	Implication string    `json:"implication"`
	Type        string    `json:"type"`
	SourceID    string    `json:"source_id"`
	Score       float64   `json:"score"`
	Weight      float64   `json:"weight"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// KnowledgeGap is an unresolved question surfaced from extracted implications.
type KnowledgeGap struct {
	Question  string    `json:"question"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExtractionResult is the per-candidate output of the extraction engine.
// Derived, not persisted independently; the implication count is attached to
// the archived candidate and the vectors/gaps fan out to external sinks.
type ExtractionResult struct {
	CandidateID   string         `json:"candidate_id"`
	Implications  []string       `json:"implications"`
	GrowthVectors []GrowthVector `json:"growth_vectors,omitempty"`
	Gaps          []KnowledgeGap `json:"gaps,omitempty"`
}
