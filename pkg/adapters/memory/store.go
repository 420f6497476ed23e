package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/beamline/pkg/domain"
)

// Store implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Store struct {
	runs map[string][]domain.Record
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string][]domain.Record),
	}
}

// Append serializes doc so later mutations by the caller cannot leak into the store.
func (s *Store) Append(ctx context.Context, runUID string, doc domain.Document) error {
	rec, err := domain.NewRecord(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runUID] = append(s.runs[runUID], rec)
	return nil
}

// Load returns a copy of the run's records.
func (s *Store) Load(ctx context.Context, runUID string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.runs[runUID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return append([]domain.Record(nil), recs...), nil
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, runUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runUID)
	return nil
}

// List returns the recorded runs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.runs))
	for id := range s.runs {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}
