// Package history caches fetched consultations by id and owns the refetch
// cadence for in-flight ones.
package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
)

// DefaultPollInterval is the refresh cadence while the backend pipeline is
// still processing a consultation.
const DefaultPollInterval = 5 * time.Second

// Fetcher is the read side of the backend the store wraps.
type Fetcher interface {
	GetConsultation(ctx context.Context, id int) (*api.Consultation, error)
	ListConsultations(ctx context.Context, params api.ListParams) ([]api.Consultation, error)
}

type entry struct {
	consultation *api.Consultation
	fetchedAt    time.Time
}

// Store is a read-through cache keyed by consultation id. Entries are
// independent: refreshing or invalidating one id never touches another.
// Responses are applied in request-issuance order, so a slow stale response
// can never overwrite a newer one.
type Store struct {
	mu      sync.Mutex
	fetcher Fetcher
	logger  *zap.Logger

	byID    map[int]*entry
	issued  map[int]uint64
	applied map[int]uint64

	list      []api.Consultation
	listValid bool
}

func NewStore(fetcher Fetcher, logger *zap.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		byID:    make(map[int]*entry),
		issued:  make(map[int]uint64),
		applied: make(map[int]uint64),
	}
}

// Get returns the cached consultation when present (stale-while-revalidate:
// callers keep showing it while a Refresh runs), fetching through on a miss.
func (s *Store) Get(ctx context.Context, id int) (*api.Consultation, error) {
	s.mu.Lock()
	if e, ok := s.byID[id]; ok {
		s.mu.Unlock()
		return e.consultation, nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx, id)
}

// Refresh refetches one consultation and replaces its cache entry. When two
// refreshes for the same id overlap, the one issued later wins regardless of
// arrival order; the earlier response is discarded.
func (s *Store) Refresh(ctx context.Context, id int) (*api.Consultation, error) {
	s.mu.Lock()
	s.issued[id]++
	seq := s.issued[id]
	s.mu.Unlock()

	consultation, err := s.fetcher.GetConsultation(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied[id] {
		// A newer request already landed; keep its data.
		if e, ok := s.byID[id]; ok {
			return e.consultation, nil
		}
		return consultation, nil
	}
	s.applied[id] = seq
	s.byID[id] = &entry{consultation: consultation, fetchedAt: time.Now()}
	return consultation, nil
}

// List serves the consultation list (doctor review queue) through its own
// cache slot.
func (s *Store) List(ctx context.Context) ([]api.Consultation, error) {
	s.mu.Lock()
	if s.listValid {
		cached := s.list
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	list, err := s.fetcher.ListConsultations(ctx, api.ListParams{})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = list
	s.listValid = true
	return list, nil
}

// Invalidate marks one consultation stale after a mutation; the next Get
// refetches before the data is trusted again.
func (s *Store) Invalidate(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// InvalidateLists drops the list-level cache after any mutation.
func (s *Store) InvalidateLists() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.listValid = false
}

// Cached returns the cache entry without fetching, for render paths that
// must never block.
func (s *Store) Cached(id int) (*api.Consultation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.consultation, true
}

// Poll refreshes a consultation on a fixed interval for as long as it
// reports an active processing status, then stops. Cancelling the context
// stops it immediately; there are no uncancellable timers. Each successful
// refresh is handed to onUpdate.
func (s *Store) Poll(ctx context.Context, id int, interval time.Duration, onUpdate func(*api.Consultation)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	step := func() (done bool) {
		consultation, err := s.Refresh(ctx, id)
		if err != nil {
			// Keep the previous data visible and keep trying; a transient
			// fetch error must not kill the poll loop.
			s.logger.Warn("poll refresh failed", zap.Int("consultation_id", id), zap.Error(err))
			return false
		}
		if onUpdate != nil {
			onUpdate(consultation)
		}
		return !consultation.Status.Active()
	}

	if step() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if step() {
				return nil
			}
		}
	}
}
