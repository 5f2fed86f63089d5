// Package extract turns queued candidates into structured knowledge: it
// renders a bounded conversation excerpt, asks the external generation
// service for implications, then filters and classifies the response into
// growth vectors and knowledge gaps.
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
	"github.com/gleanerhq/gleaner/pkg/llm"
)

// minExcerptChars is the floor below which a formatted excerpt carries too
// little material to extract from; such candidates yield an empty result.
const minExcerptChars = 60

// Options controls response filtering and aggregation.
type Options struct {
	// MinCount is the number of implications a candidate must yield to count
	// as processed. Defaults to 1.
	MinCount int

	// MaxCount caps the filtered implication list. Defaults to 5.
	MaxCount int

	// MinLength drops response lines shorter than this many characters.
	// Defaults to 20.
	MinLength int

	// FilterPatterns drops response lines whose lowercase form starts with
	// any of these prefixes (meta-text markers such as headers).
	FilterPatterns []string
}

func (o *Options) applyDefaults() {
	if o.MinCount <= 0 {
		o.MinCount = 1
	}
	if o.MaxCount <= 0 {
		o.MaxCount = 5
	}
	if o.MinLength <= 0 {
		o.MinLength = 20
	}
	if o.FilterPatterns == nil {
		o.FilterPatterns = DefaultFilterPatterns()
	}
}

// DefaultFilterPatterns returns the stock meta-text prefixes stripped from
// generation responses.
func DefaultFilterPatterns() []string {
	return []string{
		"here are",
		"here is",
		"implications:",
		"based on",
		"the following",
		"in summary",
		"i cannot",
		"as an ai",
	}
}

// BatchResult aggregates the per-candidate outcomes of one batch.
type BatchResult struct {
	// Results holds one entry per candidate whose generation call succeeded,
	// in input order. Candidates whose call failed are absent and stay
	// pending for a later cycle.
	Results []*candidate.ExtractionResult

	// Processed lists the IDs of candidates that yielded at least MinCount
	// implications.
	Processed []string
}

// Engine is the extraction engine. It holds the generation caller and the
// deterministic filtering rules; it never mutates candidates.
type Engine struct {
	call   llm.CallFunc
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an Engine. Zero-value option fields pick up defaults.
func NewEngine(call llm.CallFunc, opts Options, logger *zap.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{
		call:   call,
		opts:   opts,
		logger: logger,
	}
}

// ProcessOne extracts knowledge from a single candidate. Candidates whose
// formatted excerpt is below the minimum floor yield an empty result without
// a generation call. Generation failures propagate; the batch loop is the
// boundary that catches them.
func (e *Engine) ProcessOne(ctx context.Context, c *candidate.Candidate) (*candidate.ExtractionResult, error) {
	result := &candidate.ExtractionResult{CandidateID: c.ID}

	excerpt := formatExcerpt(c.Messages)
	if len(excerpt) < minExcerptChars {
		return result, nil
	}

	prompt := buildPrompt(excerpt, c.Score, e.opts.MaxCount)

	response, err := e.call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation call: %w", err)
	}

	result.Implications = parseImplications(response, e.opts)
	if len(result.Implications) == 0 {
		return result, nil
	}

	if vec := classifyTopImplication(result.Implications[0], c); vec != nil {
		result.GrowthVectors = append(result.GrowthVectors, *vec)
	}
	result.Gaps = extractGaps(result.Implications, c.ID)

	return result, nil
}

// ProcessBatch runs ProcessOne for each candidate in input order, one
// generation request per candidate. Per-item failures are logged and skipped;
// partial success is success.
func (e *Engine) ProcessBatch(ctx context.Context, batch []*candidate.Candidate) *BatchResult {
	out := &BatchResult{}

	for _, c := range batch {
		result, err := e.ProcessOne(ctx, c)
		if err != nil {
			e.logger.Warn("extraction failed, candidate stays pending",
				zap.String("candidate", c.ID),
				zap.Error(err),
			)
			continue
		}

		out.Results = append(out.Results, result)
		if len(result.Implications) >= e.opts.MinCount {
			out.Processed = append(out.Processed, c.ID)
		}
	}

	return out
}

// formatExcerpt renders the candidate's trailing messages as "ROLE: text"
// lines. Candidates store at most the last ten messages already; the slice
// here guards records written by older layouts.
func formatExcerpt(messages []candidate.Message) string {
	if len(messages) > candidate.MaxMessages {
		messages = messages[len(messages)-candidate.MaxMessages:]
	}

	var b strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// significance bands for the contextual hint embedded in the prompt
const (
	hintHigh   = "This exchange was flagged as highly significant; look for durable lessons about the user or the task."
	hintMedium = "This exchange carried moderate significance; extract only what seems durable."
	hintLow    = "This exchange carried low significance; extract sparingly, if at all."
)

func significanceHint(score float64) string {
	switch {
	case score >= 0.7:
		return hintHigh
	case score >= 0.4:
		return hintMedium
	default:
		return hintLow
	}
}

func buildPrompt(excerpt string, score float64, maxCount int) string {
	return fmt.Sprintf(`You are reviewing an excerpt from a conversation between a user and an assistant.

%s

List up to %d implications worth remembering: lessons about the user, corrections to behavior, preferences, recurring patterns, or open questions. Write one implication per line as a plain sentence. No numbering, no headers, no commentary.

Excerpt:
%s`, significanceHint(score), maxCount, excerpt)
}
