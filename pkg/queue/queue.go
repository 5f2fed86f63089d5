// Package queue provides the durable candidate queue: file-per-candidate JSON
// records in a pending/ directory, with completed candidates relocated to a
// processed/ directory for retention-bounded archival.
//
// Enqueue is the only operation on the admission hot path; it performs exactly
// one synchronous local write plus a pruning check and never touches the
// network. Dequeue is a non-destructive peek; exclusivity across concurrent
// readers is the scheduler's responsibility, not the queue's.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

const (
	pendingDirName   = "pending"
	processedDirName = "processed"

	recordExt = ".json"
)

// Stats reports the size of each storage partition.
type Stats struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
}

// Store is a durable candidate queue rooted at a per-agent directory.
type Store struct {
	pendingDir   string
	processedDir string
	maxPending   int
	logger       *zap.Logger
}

// NewStore creates the pending/ and processed/ directories under root and
// returns a Store. maxPending is the pending-partition ceiling enforced after
// every enqueue; zero or negative disables pruning.
func NewStore(root string, maxPending int, logger *zap.Logger) (*Store, error) {
	s := &Store{
		pendingDir:   filepath.Join(root, pendingDirName),
		processedDir: filepath.Join(root, processedDirName),
		maxPending:   maxPending,
		logger:       logger,
	}

	for _, dir := range []string{s.pendingDir, s.processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating queue directory %s: %w", dir, err)
		}
	}

	return s, nil
}

// Enqueue assigns a fresh ULID, persists the candidate synchronously, then
// runs the pruning check. Persistence failures propagate to the caller; the
// admission path has no fallback and must see them. Pruning failures do not.
func (s *Store) Enqueue(c *candidate.Candidate) (string, error) {
	c.ID = ulid.Make().String()
	c.WrittenAt = time.Now()

	if err := writeRecord(filepath.Join(s.pendingDir, c.ID+recordExt), c); err != nil {
		return "", fmt.Errorf("persisting candidate: %w", err)
	}

	s.prune()

	return c.ID, nil
}

// DequeuePeek returns up to limit pending candidates ordered by significance
// score descending. Tie order is unspecified. The read is non-destructive:
// returned candidates stay pending and a concurrent call may overlap.
func (s *Store) DequeuePeek(limit int) ([]*candidate.Candidate, error) {
	pending, err := s.readPending()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Score > pending[j].Score
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

// MarkComplete attaches resultSummary to the stored candidate best-effort and
// relocates it from pending to processed. A missing source is a no-op, which
// makes the operation idempotent. When the annotated rewrite cannot be
// performed the record is moved as-is; when rename fails (e.g. crossing
// filesystems) it falls back to copy-then-delete.
func (s *Store) MarkComplete(id, resultSummary string) error {
	src := filepath.Join(s.pendingDir, id+recordExt)
	dst := filepath.Join(s.processedDir, id+recordExt)

	c, err := readRecord(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err == nil {
		c.ResultSummary = resultSummary
		if werr := writeRecord(dst, c); werr == nil {
			if rerr := os.Remove(src); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				s.logger.Warn("removing archived candidate source", zap.String("id", id), zap.Error(rerr))
			}
			return nil
		}
	}

	// Annotation failed; relocate the record unmodified.
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return s.copyThenDelete(src, dst)
	}

	return nil
}

// Discard permanently removes a pending candidate without archival.
// Idempotent on a missing id.
func (s *Store) Discard(id string) error {
	err := os.Remove(filepath.Join(s.pendingDir, id+recordExt))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discarding candidate %s: %w", id, err)
	}
	return nil
}

// Stats counts the records in each storage partition.
func (s *Store) Stats() Stats {
	return Stats{
		Pending:   countRecords(s.pendingDir),
		Processed: countRecords(s.processedDir),
	}
}

// PruneRetention removes archived candidates older than maxAgeDays, judged by
// file modification time. Best-effort per item: a single failure is logged and
// does not abort the rest. Returns the number removed.
func (s *Store) PruneRetention(maxAgeDays int) int {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	removed := 0

	entries, err := os.ReadDir(s.processedDir)
	if err != nil {
		s.logger.Warn("reading processed directory", zap.Error(err))
		return 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.processedDir, entry.Name())); err != nil {
			s.logger.Warn("removing expired archive record", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	return removed
}

// prune enforces the pending-partition ceiling after an enqueue. Eviction is
// by write recency, not significance: the newest maxPending records (by file
// modification time) are retained and everything older is deleted. Failures
// are swallowed per item; maintenance must not block the admission path.
func (s *Store) prune() {
	if s.maxPending <= 0 {
		return
	}

	entries, err := os.ReadDir(s.pendingDir)
	if err != nil {
		s.logger.Warn("pruning: reading pending directory", zap.Error(err))
		return
	}

	type aged struct {
		name    string
		modTime time.Time
	}

	records := make([]aged, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, aged{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(records) <= s.maxPending {
		return
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].modTime.After(records[j].modTime)
	})

	for _, record := range records[s.maxPending:] {
		if err := os.Remove(filepath.Join(s.pendingDir, record.name)); err != nil {
			s.logger.Warn("pruning: removing pending record", zap.String("name", record.name), zap.Error(err))
			continue
		}
		s.logger.Debug("pruned pending candidate", zap.String("name", record.name))
	}
}

func (s *Store) readPending() ([]*candidate.Candidate, error) {
	entries, err := os.ReadDir(s.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("reading pending directory: %w", err)
	}

	pending := make([]*candidate.Candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		c, err := readRecord(filepath.Join(s.pendingDir, entry.Name()))
		if err != nil {
			// A torn or foreign file must not block the batch.
			s.logger.Warn("skipping unreadable candidate record", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		pending = append(pending, c)
	}

	return pending, nil
}

func (s *Store) copyThenDelete(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading candidate for relocation: %w", err)
	}

	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copying candidate to archive: %w", err)
	}

	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing relocated candidate: %w", err)
	}

	return nil
}

// writeRecord persists a candidate atomically: write to a temp file in the
// same directory, then rename into place.
func writeRecord(path string, c *candidate.Candidate) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling candidate: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing candidate record: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing candidate record: %w", err)
	}

	return nil
}

func readRecord(path string) (*candidate.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c candidate.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling candidate record: %w", err)
	}

	return &c, nil
}

func countRecords(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), recordExt) {
			count++
		}
	}
	return count
}
