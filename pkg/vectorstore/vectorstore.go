// Package vectorstore persists the append-only growth-vector collection: a
// JSON document with a "candidates" list, shared with the downstream
// validation component that promotes vectors out of candidate status.
//
// Appends are read-modify-write over the whole document with no optimistic
// concurrency check. A single process owns all writes; the external consumer
// only reads.
package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

// document is the on-disk shape of the collection.
type document struct {
	Candidates []candidate.GrowthVector `json:"candidates"`
}

// Store is a growth-vector collection at a fixed path.
type Store struct {
	path string
}

// NewStore returns a Store for the given path. The file is created lazily on
// first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the resolved collection path.
func (s *Store) Path() string {
	return s.path
}

// Append adds vectors to the collection. Vectors are never mutated or removed
// by this process; validation status changes belong to the downstream reader.
func (s *Store) Append(vectors []candidate.GrowthVector) error {
	if len(vectors) == 0 {
		return nil
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	doc.Candidates = append(doc.Candidates, vectors...)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling vector collection: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating vector collection directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing vector collection: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalizing vector collection: %w", err)
	}

	return nil
}

// Load returns every vector currently in the collection. A missing file is an
// empty collection, not an error.
func (s *Store) Load() ([]candidate.GrowthVector, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Candidates, nil
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("reading vector collection: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling vector collection: %w", err)
	}

	return &doc, nil
}
