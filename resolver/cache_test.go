package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sidestake/events"
	"sidestake/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	matches    map[string]*models.Match
	storeCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{matches: make(map[string]*models.Match)}
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

func (s *fakeStore) Store(ctx context.Context, matches []*models.Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeCalls++
	for _, m := range matches {
		clone := *m
		s.matches[m.ID] = &clone
	}
	return len(matches), nil
}

func (s *fakeStore) UpdateScores(ctx context.Context, id string, homeScore, awayScore int, completed bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return false, nil
	}
	m.HomeScore = &homeScore
	m.AwayScore = &awayScore
	m.Completed = completed
	return true, nil
}

func (s *fakeStore) GetUpcoming(ctx context.Context, limit int) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if !m.Completed {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeProvider struct {
	name     string
	priority int
	matches  []*models.Match
	err      error
	delay    time.Duration
	fetches  atomic.Int32
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Priority() int { return p.priority }

func (p *fakeProvider) FetchMatches(ctx context.Context) ([]*models.Match, error) {
	p.fetches.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	out := make([]*models.Match, len(p.matches))
	for i, m := range p.matches {
		clone := *m
		out[i] = &clone
	}
	return out, nil
}

func testMatch(id string) *models.Match {
	return &models.Match{
		ID:            id,
		Home:          models.Participant{ID: "lakers", Name: "Los Angeles Lakers"},
		Away:          models.Participant{ID: "celtics", Name: "Boston Celtics"},
		ScheduledTime: time.Date(2026, 12, 25, 20, 0, 0, 0, time.UTC),
		OddsBySource:  map[string]models.OddsPair{"book": {Home: 1.91, Away: 1.95}},
	}
}

func TestResolve_FreshHitSkipsProviders(t *testing.T) {
	provider := &fakeProvider{name: "primary", priority: PriorityPrimary, matches: []*models.Match{testMatch("m1")}}
	cache := NewCache(Config{Store: newFakeStore(), Providers: []Provider{provider}})

	first, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)
	second, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), provider.fetches.Load())
}

func TestResolve_StoreBeatsProviders(t *testing.T) {
	store := newFakeStore()
	stored := testMatch("m1")
	stored.Provenance = "primary"
	store.matches["m1"] = stored

	provider := &fakeProvider{name: "primary", priority: PriorityPrimary, matches: []*models.Match{testMatch("m1")}}
	cache := NewCache(Config{Store: store, Providers: []Provider{provider}})

	match, err := cache.Resolve(context.Background(), "m1", false)

	require.NoError(t, err)
	assert.Equal(t, "m1", match.ID)
	assert.Equal(t, int32(0), provider.fetches.Load())
}

func TestResolve_FallsThroughFailedProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: PriorityPrimary, err: errors.New("upstream 503")}
	secondary := &fakeProvider{name: "secondary", priority: PrioritySecondary, matches: []*models.Match{testMatch("m1")}}
	store := newFakeStore()
	cache := NewCache(Config{Store: store, Providers: []Provider{secondary, primary}})

	match, err := cache.Resolve(context.Background(), "m1", false)

	require.NoError(t, err)
	assert.Equal(t, "secondary", match.Provenance)
	assert.False(t, match.Completed)
	// primary was tried first despite registration order
	assert.Equal(t, int32(1), primary.fetches.Load())
	// the secondary feed was written through to the store
	stored, err := store.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

// A live score update must be visible on the next resolution without any
// provider round trip.
func TestResolve_AfterScoreUpdateSeesCompletion(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: PriorityPrimary, err: errors.New("upstream 503")}
	secondary := &fakeProvider{name: "secondary", priority: PrioritySecondary, matches: []*models.Match{testMatch("m1")}}
	cache := NewCache(Config{Store: newFakeStore(), Providers: []Provider{primary, secondary}})

	match, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)
	require.False(t, match.Completed)

	require.NoError(t, cache.UpdateScores(context.Background(), "m1", 101, 98, true))

	fetchesBefore := secondary.fetches.Load()
	resolved, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)

	assert.True(t, resolved.Completed)
	require.NotNil(t, resolved.HomeScore)
	assert.Equal(t, 101, *resolved.HomeScore)
	require.NotNil(t, resolved.AwayScore)
	assert.Equal(t, 98, *resolved.AwayScore)
	assert.Equal(t, "lakers", resolved.WinningSideID())
	assert.Equal(t, fetchesBefore, secondary.fetches.Load())
}

func TestResolve_StaticNeverCompletesAndNeverPersists(t *testing.T) {
	staticMatch := testMatch("m1")
	staticMatch.Completed = true
	static := &fakeProvider{name: "static", priority: PriorityStatic, matches: []*models.Match{staticMatch}}
	store := newFakeStore()
	cache := NewCache(Config{Store: store, Providers: []Provider{static}})

	match, err := cache.Resolve(context.Background(), "m1", false)

	require.NoError(t, err)
	assert.False(t, match.Completed)
	assert.Equal(t, 0, store.storeCalls)
}

func TestResolve_UnknownEverywhere(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: PriorityPrimary, matches: []*models.Match{testMatch("other")}}
	cache := NewCache(Config{Store: newFakeStore(), Providers: []Provider{primary}})

	_, err := cache.Resolve(context.Background(), "m1", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMatchUnresolved))
}

func TestResolve_AllProvidersDown(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: PriorityPrimary, err: errors.New("upstream 503")}
	secondary := &fakeProvider{name: "secondary", priority: PrioritySecondary, err: errors.New("timeout")}
	cache := NewCache(Config{Store: newFakeStore(), Providers: []Provider{primary, secondary}})

	_, err := cache.Resolve(context.Background(), "m1", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProviderUnavailable))
}

func TestResolve_EmptyID(t *testing.T) {
	cache := NewCache(Config{Store: newFakeStore()})

	_, err := cache.Resolve(context.Background(), "", false)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestResolve_ForceRefreshBypassesCache(t *testing.T) {
	provider := &fakeProvider{name: "primary", priority: PriorityPrimary, matches: []*models.Match{testMatch("m1")}}
	store := newFakeStore()
	cache := NewCache(Config{Store: store, Providers: []Provider{provider}})

	_, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)

	// the first fetch wrote through, a forced refresh re-reads the store
	_, err = cache.Resolve(context.Background(), "m1", true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.fetches.Load())
}

func TestResolve_StaleEntryRefetches(t *testing.T) {
	provider := &fakeProvider{name: "primary", priority: PriorityPrimary, matches: []*models.Match{testMatch("m1")}}
	cache := NewCache(Config{Providers: []Provider{provider}, Store: nilStore{}, MaxAge: time.Minute})

	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	cache.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}

	_, err := cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)
	require.Equal(t, int32(1), provider.fetches.Load())

	clockMu.Lock()
	current = current.Add(2 * time.Minute)
	clockMu.Unlock()

	_, err = cache.Resolve(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.fetches.Load())
}

// nilStore is a store with no contents that never fails, for tests that
// exercise the provider chain only
type nilStore struct{}

func (nilStore) GetByID(ctx context.Context, id string) (*models.Match, error) { return nil, nil }
func (nilStore) Store(ctx context.Context, matches []*models.Match) (int, error) {
	return len(matches), nil
}
func (nilStore) UpdateScores(ctx context.Context, id string, homeScore, awayScore int, completed bool) (bool, error) {
	return false, nil
}
func (nilStore) GetUpcoming(ctx context.Context, limit int) ([]*models.Match, error) {
	return nil, nil
}

func TestAdmit_OverwriteRules(t *testing.T) {
	cache := NewCache(Config{Store: nilStore{}, MaxAge: time.Minute})

	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	fromSecondary := testMatch("m1")
	fromSecondary.Provenance = "secondary"
	cache.admit(fromSecondary, PrioritySecondary)

	// a fresh entry rejects same-or-lower priority sources
	fromStatic := testMatch("m1")
	fromStatic.Provenance = "static"
	cache.admit(fromStatic, PriorityStatic)
	assert.Equal(t, "secondary", cache.freshEntry("m1").Provenance)

	// a higher-priority source always wins
	fromPrimary := testMatch("m1")
	fromPrimary.Provenance = "primary"
	cache.admit(fromPrimary, PriorityPrimary)
	assert.Equal(t, "primary", cache.freshEntry("m1").Provenance)

	// once stale, any source may replace the entry
	current = current.Add(2 * time.Minute)
	cache.admit(fromStatic, PriorityStatic)
	assert.Equal(t, "static", cache.freshEntry("m1").Provenance)
}

func TestResolve_ConcurrentCallsShareOneFetch(t *testing.T) {
	provider := &fakeProvider{
		name:     "primary",
		priority: PriorityPrimary,
		matches:  []*models.Match{testMatch("m1")},
		delay:    50 * time.Millisecond,
	}
	cache := NewCache(Config{Store: nilStore{}, Providers: []Provider{provider}})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Resolve(context.Background(), "m1", false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), provider.fetches.Load())
}

func TestUpdateScores_UnknownMatch(t *testing.T) {
	cache := NewCache(Config{Store: newFakeStore()})

	err := cache.UpdateScores(context.Background(), "missing", 1, 0, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

type emitterFunc func(event events.Event)

func (f emitterFunc) Emit(ctx context.Context, event events.Event) { f(event) }

func TestUpdateScores_EmitsMatchUpdated(t *testing.T) {
	store := newFakeStore()
	store.matches["m1"] = testMatch("m1")

	var emitted []events.Event
	cache := NewCache(Config{Store: store, Bus: emitterFunc(func(event events.Event) {
		emitted = append(emitted, event)
	})})

	require.NoError(t, cache.UpdateScores(context.Background(), "m1", 101, 98, true))

	require.Len(t, emitted, 1)
	updated, ok := emitted[0].(events.MatchUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, "m1", updated.MatchID)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.HomeScore)
	assert.Equal(t, 101, *updated.HomeScore)
}
