package store

import (
	"context"
	"sync"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgerror"
	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

// DefaultMaxRuns bounds the ledger when no limit is configured.
const DefaultMaxRuns = 10000

// InMemoryStore keeps the run ledger. Once maxRuns entries exist the oldest
// run is evicted on insert.
type InMemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*runRecord
	order   []string
	maxRuns int
}

type runRecord struct {
	mu   sync.RWMutex
	meta entity.RunMeta
}

func NewInMemoryStore(maxRuns int) *InMemoryStore {
	if maxRuns < 1 {
		maxRuns = DefaultMaxRuns
	}

	return &InMemoryStore{
		runs:    make(map[string]*runRecord),
		maxRuns: maxRuns,
	}
}

func (s *InMemoryStore) CreateRun(ctx context.Context, meta entity.RunMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[meta.ID]; exists {
		return pkgerror.NewBusiness("run already exists", pkgerror.CodeConflict)
	}

	for len(s.order) >= s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}

	s.runs[meta.ID] = &runRecord{meta: meta}
	s.order = append(s.order, meta.ID)

	return nil
}

func (s *InMemoryStore) UpdateRun(ctx context.Context, runID string, fn func(meta *entity.RunMeta)) error {
	rec, err := s.get(runID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.meta)

	return nil
}

func (s *InMemoryStore) GetRun(ctx context.Context, runID string) (entity.RunMeta, error) {
	rec, err := s.get(runID)
	if err != nil {
		return entity.RunMeta{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.meta, nil
}

// Len reports how many runs are held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.runs)
}

func (s *InMemoryStore) get(runID string) (*runRecord, error) {
	s.mu.RLock()
	rec, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
