// Package scheduler owns per-agent runtime state and the two execution paths
// of the pipeline: the synchronous admission fast path evaluated on every
// conversational turn, and the cycle-driven slow path that drains each
// agent's queue through the extraction engine.
//
// Exclusion discipline: a single process-wide flag serializes cycle-driven
// runs across all agents, and a per-agent flag keeps the manual trigger from
// colliding with a cycle run for the same agent. Both are in-memory only;
// exactly one process instance owns all agent state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
	"github.com/gleanerhq/gleaner/pkg/eventstream"
	"github.com/gleanerhq/gleaner/pkg/extract"
	"github.com/gleanerhq/gleaner/pkg/llm"
	"github.com/gleanerhq/gleaner/pkg/queue"
	"github.com/gleanerhq/gleaner/pkg/vectorstore"
)

// ErrBusy is returned by TriggerAgent when the agent is already mid-processing.
var ErrBusy = errors.New("agent is already processing")

// Config holds scheduler policy.
type Config struct {
	// DataDir is the root of the per-agent candidate subtrees.
	DataDir string

	// VectorPath, when set, is a single shared growth-vector collection.
	// When empty each agent gets its own collection under its subtree.
	VectorPath string

	// EntropyMinimum is the significance threshold for admission.
	EntropyMinimum float64

	// ExchangeMinimum admits turns with at least this many messages
	// regardless of significance.
	ExchangeMinimum int

	// ExplicitMarkers admit a turn when the last user utterance contains any
	// of them, case-insensitively.
	ExplicitMarkers []string

	// CooldownMinutes is the per-user admission cooldown.
	CooldownMinutes int

	// BatchSize is the dequeue batch for cycle-driven processing.
	BatchSize int

	// MaxPending is the pending-partition ceiling per agent queue.
	MaxPending int

	// RetentionDays bounds how long archived candidates are kept.
	RetentionDays int

	// WriteVectors enables the growth-vector sink.
	WriteVectors bool

	// EmitGaps enables knowledge-gap publication.
	EmitGaps bool
}

// Turn is the turn-completed signal consumed by the admission path.
type Turn struct {
	AgentID   string
	UserID    string
	SessionID string
	Messages  []candidate.Message

	// Score is the externally sourced significance signal; nil means
	// estimate conservatively from the message count.
	Score *float64

	// Internal flags turns originating from scheduling machinery rather than
	// a genuine user exchange. Such turns are skipped before any other
	// evaluation to prevent self-referential feedback loops.
	Internal bool
}

// TriggerResult reports the outcome of one processing pass for one agent.
type TriggerResult struct {
	Processed     int `json:"processed"`
	Implications  int `json:"implications"`
	GrowthVectors int `json:"growth_vectors"`
	Gaps          int `json:"gaps"`
}

// Status is the per-agent state snapshot served by the query entry point.
type Status struct {
	AgentID    string `json:"agent_id"`
	Pending    int    `json:"pending"`
	Processed  int    `json:"processed"`
	Busy       bool   `json:"busy"`
	Cooldowns  int    `json:"cooldowns"`
	VectorPath string `json:"vector_path"`
}

// CandidateInfo is the trimmed pending-candidate view: no raw message text.
type CandidateInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Score        float64   `json:"score"`
	MessageCount int       `json:"message_count"`
}

// agentState is the per-agent runtime context. Cooldowns are in-memory and
// reset on restart; that is documented behavior, not a defect.
type agentState struct {
	id      string
	queue   *queue.Store
	engine  *extract.Engine
	vectors *vectorstore.Store

	busy atomic.Bool

	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time
}

// Scheduler orchestrates admission and extraction across agent scopes.
type Scheduler struct {
	cfg         Config
	call        llm.CallFunc
	extractOpts extract.Options
	publisher   eventstream.Publisher
	logger      *zap.Logger

	mu     sync.Mutex
	agents map[string]*agentState

	cycleBusy atomic.Bool
}

// New creates a Scheduler. The publisher receives gap events when EmitGaps is
// enabled; pass a nop publisher otherwise.
func New(cfg Config, call llm.CallFunc, extractOpts extract.Options, publisher eventstream.Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		call:        call,
		extractOpts: extractOpts,
		publisher:   publisher,
		logger:      logger,
		agents:      make(map[string]*agentState),
	}
}

// ObserveTurn is the admission fast path. It never suspends beyond one local
// durable write: persistence failures propagate, everything else is a quick
// in-memory evaluation. Returns the enqueued candidate id when admitted.
func (s *Scheduler) ObserveTurn(_ context.Context, turn Turn) (string, bool, error) {
	if turn.Internal {
		return "", false, nil
	}

	st, err := s.agent(turn.AgentID)
	if err != nil {
		return "", false, err
	}

	score := estimateScore(turn)

	if !s.admits(turn, score) {
		return "", false, nil
	}

	if st.inCooldown(turn.UserID, s.cooldownWindow()) {
		return "", false, nil
	}

	c := candidate.New(turn.UserID, score, turn.Messages, turn.SessionID)
	id, err := st.queue.Enqueue(c)
	if err != nil {
		return "", false, fmt.Errorf("admitting candidate: %w", err)
	}

	st.refreshCooldown(turn.UserID)

	s.logger.Debug("candidate admitted",
		zap.String("agent", turn.AgentID),
		zap.String("candidate", id),
		zap.Float64("score", score),
	)

	return id, true, nil
}

// RunCycle is the slow path, invoked on each external tick. If a previous
// cycle is still running the tick is skipped outright, never queued. Agent
// scopes are discovered from both the in-memory registry and on-disk
// presence, so queues written by an earlier process incarnation still drain.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.cycleBusy.CompareAndSwap(false, true) {
		s.logger.Debug("cycle skipped, previous cycle still running")
		return
	}
	defer s.cycleBusy.Store(false)

	for _, agentID := range s.discoverScopes() {
		st, err := s.agent(agentID)
		if err != nil {
			s.logger.Warn("skipping agent scope", zap.String("agent", agentID), zap.Error(err))
			continue
		}

		result, err := s.processAgent(ctx, st, s.cfg.BatchSize)
		switch {
		case errors.Is(err, ErrBusy):
			s.logger.Debug("agent busy, skipping this cycle", zap.String("agent", agentID))
		case err != nil:
			s.logger.Error("cycle processing failed", zap.String("agent", agentID), zap.Error(err))
		case result.Processed > 0:
			s.logger.Info("cycle processed batch",
				zap.String("agent", agentID),
				zap.Int("processed", result.Processed),
				zap.Int("implications", result.Implications),
				zap.Int("growth_vectors", result.GrowthVectors),
				zap.Int("gaps", result.Gaps),
			)
		}
	}
}

// TriggerAgent runs one processing pass for a single agent outside the cycle.
// Fails immediately with ErrBusy when the agent is mid-processing; an empty
// queue is a success with zero counts, not an error.
func (s *Scheduler) TriggerAgent(ctx context.Context, agentID string, batchSize int) (*TriggerResult, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	st, err := s.agent(agentID)
	if err != nil {
		return nil, err
	}

	return s.processAgent(ctx, st, batchSize)
}

// RunRetention sweeps every known agent's archive partition. Best-effort:
// failures stay inside the queue layer.
func (s *Scheduler) RunRetention() int {
	if s.cfg.RetentionDays <= 0 {
		return 0
	}

	removed := 0
	for _, agentID := range s.discoverScopes() {
		st, err := s.agent(agentID)
		if err != nil {
			continue
		}
		removed += st.queue.PruneRetention(s.cfg.RetentionDays)
	}

	if removed > 0 {
		s.logger.Info("retention sweep removed archived candidates", zap.Int("removed", removed))
	}

	return removed
}

// AgentStatus snapshots one agent's state for the query entry point.
func (s *Scheduler) AgentStatus(agentID string) (*Status, error) {
	st, err := s.agent(agentID)
	if err != nil {
		return nil, err
	}

	stats := st.queue.Stats()

	st.cooldownMu.Lock()
	cooldowns := len(st.cooldowns)
	st.cooldownMu.Unlock()

	return &Status{
		AgentID:    agentID,
		Pending:    stats.Pending,
		Processed:  stats.Processed,
		Busy:       st.busy.Load(),
		Cooldowns:  cooldowns,
		VectorPath: st.vectors.Path(),
	}, nil
}

// PendingCandidates lists up to limit pending candidates in dequeue order,
// stripped down to identifier, timestamp, score, and message count.
func (s *Scheduler) PendingCandidates(agentID string, limit int) ([]CandidateInfo, error) {
	st, err := s.agent(agentID)
	if err != nil {
		return nil, err
	}

	pending, err := st.queue.DequeuePeek(limit)
	if err != nil {
		return nil, err
	}

	infos := make([]CandidateInfo, len(pending))
	for i, c := range pending {
		infos[i] = CandidateInfo{
			ID:           c.ID,
			CreatedAt:    c.CreatedAt,
			Score:        c.Score,
			MessageCount: len(c.Messages),
		}
	}

	return infos, nil
}

// Deregister drops an agent's in-memory state. On-disk records survive and
// the scope is rediscovered on the next cycle if its subtree still exists.
func (s *Scheduler) Deregister(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
}

// processAgent runs one batch for one agent under its per-agent flag. The
// flag is released unconditionally regardless of extraction outcome.
func (s *Scheduler) processAgent(ctx context.Context, st *agentState, batchSize int) (*TriggerResult, error) {
	if !st.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer st.busy.Store(false)

	batch, err := st.queue.DequeuePeek(batchSize)
	if err != nil {
		return nil, fmt.Errorf("dequeuing batch: %w", err)
	}
	if len(batch) == 0 {
		return &TriggerResult{}, nil
	}

	br := st.engine.ProcessBatch(ctx, batch)

	result := s.fanOut(ctx, st, br)

	// Archive every candidate whose generation call completed. Candidates
	// whose call failed are absent from br.Results and stay pending for a
	// later cycle.
	counts := make(map[string]int, len(br.Results))
	for _, r := range br.Results {
		counts[r.CandidateID] = len(r.Implications)
	}

	for _, c := range batch {
		n, ok := counts[c.ID]
		if !ok {
			continue
		}
		summary := fmt.Sprintf("implications=%d", n)
		if err := st.queue.MarkComplete(c.ID, summary); err != nil {
			s.logger.Warn("archiving candidate failed",
				zap.String("agent", st.id),
				zap.String("candidate", c.ID),
				zap.Error(err),
			)
		}
	}

	result.Processed = len(br.Processed)
	return result, nil
}

// fanOut delivers batch output to the two external sinks. Sink failures are
// logged and isolated; they never roll back a candidate's completion.
func (s *Scheduler) fanOut(ctx context.Context, st *agentState, br *extract.BatchResult) *TriggerResult {
	result := &TriggerResult{}

	var vectors []candidate.GrowthVector
	var gaps []candidate.KnowledgeGap
	for _, r := range br.Results {
		result.Implications += len(r.Implications)
		vectors = append(vectors, r.GrowthVectors...)
		gaps = append(gaps, r.Gaps...)
	}

	result.GrowthVectors = len(vectors)
	result.Gaps = len(gaps)

	if s.cfg.WriteVectors && len(vectors) > 0 {
		if err := st.vectors.Append(vectors); err != nil {
			s.logger.Warn("growth-vector write failed",
				zap.String("agent", st.id),
				zap.Int("vectors", len(vectors)),
				zap.Error(err),
			)
		}
	}

	if s.cfg.EmitGaps && len(gaps) > 0 {
		event := eventstream.NewGapSurfacedEvent(st.id, gaps)
		if err := s.publisher.PublishGaps(ctx, event); err != nil {
			s.logger.Warn("gap publication failed",
				zap.String("agent", st.id),
				zap.Int("gaps", len(gaps)),
				zap.Error(err),
			)
		}
	}

	return result
}

// agent returns the lazily created state for an agent scope.
func (s *Scheduler) agent(agentID string) (*agentState, error) {
	if agentID == "" || strings.ContainsAny(agentID, `/\`) || agentID == "." || agentID == ".." {
		return nil, fmt.Errorf("invalid agent scope: %q", agentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.agents[agentID]; ok {
		return st, nil
	}

	root := filepath.Join(s.cfg.DataDir, agentID)

	q, err := queue.NewStore(root, s.cfg.MaxPending, s.logger)
	if err != nil {
		return nil, fmt.Errorf("creating queue for agent %s: %w", agentID, err)
	}

	vectorPath := s.cfg.VectorPath
	if vectorPath == "" {
		vectorPath = filepath.Join(root, "growth_vectors.json")
	}

	st := &agentState{
		id:        agentID,
		queue:     q,
		engine:    extract.NewEngine(s.call, s.extractOpts, s.logger),
		vectors:   vectorstore.NewStore(vectorPath),
		cooldowns: make(map[string]time.Time),
	}
	s.agents[agentID] = st

	return st, nil
}

// discoverScopes returns the union of registered agents and agent subtrees
// present on disk, sorted for deterministic cycle order.
func (s *Scheduler) discoverScopes() []string {
	scopes := make(map[string]struct{})

	s.mu.Lock()
	for agentID := range s.agents {
		scopes[agentID] = struct{}{}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.DataDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				scopes[entry.Name()] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(scopes))
	for agentID := range scopes {
		out = append(out, agentID)
	}
	sort.Strings(out)

	return out
}

// admits evaluates the admission criteria, cooldowns excluded.
func (s *Scheduler) admits(turn Turn, score float64) bool {
	if score >= s.cfg.EntropyMinimum {
		return true
	}
	if s.cfg.ExchangeMinimum > 0 && len(turn.Messages) >= s.cfg.ExchangeMinimum {
		return true
	}
	return s.matchesMarker(lastUserUtterance(turn.Messages))
}

func (s *Scheduler) matchesMarker(utterance string) bool {
	if utterance == "" {
		return false
	}
	lower := strings.ToLower(utterance)
	for _, marker := range s.cfg.ExplicitMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (s *Scheduler) cooldownWindow() time.Duration {
	return time.Duration(s.cfg.CooldownMinutes) * time.Minute
}

// estimateScore uses the external significance signal when present, and
// otherwise estimates conservatively from the message count.
func estimateScore(turn Turn) float64 {
	if turn.Score != nil {
		return *turn.Score
	}

	switch n := len(turn.Messages); {
	case n > 10:
		return 0.5
	case n > 5:
		return 0.3
	default:
		return 0.1
	}
}

func lastUserUtterance(messages []candidate.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}

func (st *agentState) inCooldown(userID string, window time.Duration) bool {
	if window <= 0 {
		return false
	}

	st.cooldownMu.Lock()
	defer st.cooldownMu.Unlock()

	last, ok := st.cooldowns[userID]
	return ok && time.Since(last) < window
}

func (st *agentState) refreshCooldown(userID string) {
	st.cooldownMu.Lock()
	defer st.cooldownMu.Unlock()
	st.cooldowns[userID] = time.Now()
}
