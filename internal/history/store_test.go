package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lemillion789/MedAI-Smart-Triage/internal/api"
)

type fakeFetcher struct {
	mu        sync.Mutex
	getCalls  int
	listCalls int
	getFn     func(id int) (*api.Consultation, error)
	listFn    func() ([]api.Consultation, error)
}

func (f *fakeFetcher) GetConsultation(_ context.Context, id int) (*api.Consultation, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getFn
	f.mu.Unlock()
	if fn == nil {
		return &api.Consultation{ID: id, Status: api.StatusReadyToReview}, nil
	}
	return fn(id)
}

func (f *fakeFetcher) ListConsultations(_ context.Context, _ api.ListParams) ([]api.Consultation, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return []api.Consultation{{ID: 1}}, nil
	}
	return fn()
}

func (f *fakeFetcher) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func newTestStore(fetcher Fetcher) *Store {
	return NewStore(fetcher, zap.NewNop())
}

func TestGetReadsThroughOnMissThenServesCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestStore(fetcher)
	ctx := context.Background()

	c, err := s.Get(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 5, c.ID)
	require.Equal(t, 1, fetcher.gets())

	_, err = s.Get(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.gets())

	cached, ok := s.Cached(5)
	require.True(t, ok)
	require.Equal(t, 5, cached.ID)
}

func TestEntriesAreIndependentPerID(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestStore(fetcher)
	ctx := context.Background()

	_, err := s.Get(ctx, 1)
	require.NoError(t, err)
	_, err = s.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.gets())

	s.Invalidate(1)
	_, ok := s.Cached(1)
	require.False(t, ok)
	_, ok = s.Cached(2)
	require.True(t, ok)

	_, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, fetcher.gets())
}

func TestRefreshReplacesCachedEntry(t *testing.T) {
	status := api.StatusRunningGemma
	fetcher := &fakeFetcher{}
	fetcher.getFn = func(id int) (*api.Consultation, error) {
		return &api.Consultation{ID: id, Status: status}, nil
	}
	s := newTestStore(fetcher)
	ctx := context.Background()

	c, err := s.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, api.StatusRunningGemma, c.Status)

	status = api.StatusReadyToReview
	c, err = s.Refresh(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, api.StatusReadyToReview, c.Status)

	cached, _ := s.Cached(3)
	require.Equal(t, api.StatusReadyToReview, cached.Status)
}

func TestRefreshErrorKeepsCachedData(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestStore(fetcher)
	ctx := context.Background()

	_, err := s.Get(ctx, 4)
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.getFn = func(int) (*api.Consultation, error) { return nil, errors.New("backend down") }
	fetcher.mu.Unlock()

	_, err = s.Refresh(ctx, 4)
	require.Error(t, err)

	// Stale data is still served while the refetch fails.
	cached, ok := s.Cached(4)
	require.True(t, ok)
	require.Equal(t, 4, cached.ID)
}

func TestLaterRequestWinsOverSlowEarlierResponse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls int
	fetcher := &fakeFetcher{}
	fetcher.getFn = func(id int) (*api.Consultation, error) {
		fetcher.mu.Lock()
		calls++
		n := calls
		fetcher.mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
			return &api.Consultation{ID: id, Status: api.StatusRunningASR}, nil
		}
		return &api.Consultation{ID: id, Status: api.StatusReadyToReview}, nil
	}
	s := newTestStore(fetcher)
	ctx := context.Background()

	first := make(chan *api.Consultation, 1)
	go func() {
		c, err := s.Refresh(ctx, 7)
		require.NoError(t, err)
		first <- c
	}()
	<-entered

	// The second refresh is issued later and lands first.
	c, err := s.Refresh(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, api.StatusReadyToReview, c.Status)

	close(release)
	got := <-first
	require.Equal(t, api.StatusReadyToReview, got.Status)

	cached, _ := s.Cached(7)
	require.Equal(t, api.StatusReadyToReview, cached.Status)
}

func TestListCacheAndInvalidation(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestStore(fetcher)
	ctx := context.Background()

	_, err := s.List(ctx)
	require.NoError(t, err)
	_, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.listCalls)

	s.InvalidateLists()
	_, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.listCalls)
}

func TestPollStopsWhenProcessingSettles(t *testing.T) {
	var calls int
	fetcher := &fakeFetcher{}
	fetcher.getFn = func(id int) (*api.Consultation, error) {
		fetcher.mu.Lock()
		calls++
		n := calls
		fetcher.mu.Unlock()
		if n < 3 {
			return &api.Consultation{ID: id, Status: api.StatusRunningGemma}, nil
		}
		return &api.Consultation{ID: id, Status: api.StatusReadyToReview, TriageCompleted: true}, nil
	}
	s := newTestStore(fetcher)

	var updates []api.Status
	err := s.Poll(context.Background(), 9, 5*time.Millisecond, func(c *api.Consultation) {
		updates = append(updates, c.Status)
	})
	require.NoError(t, err)
	require.Equal(t, []api.Status{
		api.StatusRunningGemma,
		api.StatusRunningGemma,
		api.StatusReadyToReview,
	}, updates)
}

func TestPollSurvivesTransientErrors(t *testing.T) {
	var calls int
	fetcher := &fakeFetcher{}
	fetcher.getFn = func(id int) (*api.Consultation, error) {
		fetcher.mu.Lock()
		calls++
		n := calls
		fetcher.mu.Unlock()
		if n == 1 {
			return nil, errors.New("transient")
		}
		return &api.Consultation{ID: id, Status: api.StatusReadyToReview}, nil
	}
	s := newTestStore(fetcher)

	err := s.Poll(context.Background(), 2, 5*time.Millisecond, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, fetcher.gets(), 2)
}

func TestPollStopsOnContextCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.getFn = func(id int) (*api.Consultation, error) {
		return &api.Consultation{ID: id, Status: api.StatusRunningASR}, nil
	}
	s := newTestStore(fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Poll(ctx, 1, 5*time.Millisecond, nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}
}
