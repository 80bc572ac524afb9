package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idledata/pkg/auth"
	"idledata/pkg/logger"
	"idledata/pkg/market"
	"idledata/pkg/models"
)

const inspectURL = "https://web.idle-mmo.com/item/inspect/DBngxedVYJqlNX64wW8o?tier=1&same_window=true"

type fakeFetcher struct {
	mu      sync.Mutex
	history *models.MarketHistory
	err     error
	calls   []Selection
	keys    []string
	key     string
}

func (f *fakeFetcher) MarketHistory(ctx context.Context, id string, tier int, series models.Series) (*models.MarketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Selection{ItemID: id, Tier: tier})
	f.keys = append(f.keys, f.key)
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeFetcher) factory() ClientFactory {
	return func(apiKey string) HistoryFetcher {
		f.mu.Lock()
		f.key = apiKey
		f.mu.Unlock()
		return f
	}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) Render(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func TestParseInspectURL(t *testing.T) {
	sel, err := ParseInspectURL(inspectURL)
	require.NoError(t, err)
	assert.Equal(t, Selection{ItemID: "DBngxedVYJqlNX64wW8o", Tier: 1}, sel)

	for _, bad := range []string{
		"https://web.idle-mmo.com/item/inspect/abc",
		"https://web.idle-mmo.com/item/inspect/abc?tier=x",
		"https://web.idle-mmo.com/?tier=1",
		"://",
	} {
		_, err := ParseInspectURL(bad)
		assert.Error(t, err, bad)
	}
}

func newTestSession(f *fakeFetcher, r *recorder, key string) *Session {
	return NewSession(Options{
		NewClient: f.factory(),
		Renderer:  r,
		APIKey:    key,
		Debounce:  10 * time.Millisecond,
		Location:  time.UTC,
		Logger:    logger.NewNopLogger(),
	})
}

func TestEvaluateRendersSummary(t *testing.T) {
	f := &fakeFetcher{history: &models.MarketHistory{
		LatestSold: []models.Sale{{PricePerItem: 10}, {PricePerItem: 30}},
	}}
	r := &recorder{}
	s := newTestSession(f, r, "idlemmo_key")

	s.Evaluate(context.Background(), inspectURL)

	updates := r.all()
	require.Len(t, updates, 1)
	assert.Empty(t, updates[0].State)
	assert.Equal(t, "20", updates[0].Summary.Rows[0].Value)
	assert.Equal(t, []string{"idlemmo_key"}, f.keys)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 1, current.Tier)
}

func TestEvaluateSkipsSameSelection(t *testing.T) {
	f := &fakeFetcher{history: &models.MarketHistory{}}
	r := &recorder{}
	s := newTestSession(f, r, "idlemmo_key")

	s.Evaluate(context.Background(), inspectURL)
	s.Evaluate(context.Background(), inspectURL)
	assert.Equal(t, 1, f.callCount())

	s.Evaluate(context.Background(), "https://web.idle-mmo.com/item/inspect/DBngxedVYJqlNX64wW8o?tier=2")
	assert.Equal(t, 2, f.callCount())

	s.ClearSelection()
	s.Evaluate(context.Background(), inspectURL)
	assert.Equal(t, 3, f.callCount())
}

func TestEvaluateWithoutAPIKey(t *testing.T) {
	f := &fakeFetcher{}
	r := &recorder{}
	s := newTestSession(f, r, "")

	s.Evaluate(context.Background(), inspectURL)

	updates := r.all()
	require.Len(t, updates, 1)
	assert.Equal(t, market.StateNoAPIKey, updates[0].State)
	for _, row := range updates[0].Summary.Rows {
		assert.Equal(t, market.StateNoAPIKey, row.Value)
	}
	assert.Zero(t, f.callCount())
}

func TestEvaluateFetchFailureRendersError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("HTTP 500: Internal Server Error")}
	r := &recorder{}
	log := logger.NewTestLogger()
	s := NewSession(Options{NewClient: f.factory(), Renderer: r, APIKey: "k", Logger: log})

	s.Evaluate(context.Background(), inspectURL)

	updates := r.all()
	require.Len(t, updates, 1)
	assert.Equal(t, market.StateError, updates[0].State)
	assert.Equal(t, market.StateError, updates[0].Summary.Rows[2].Value)
	assert.True(t, log.HasMessage("Error fetching market data"))
}

func TestObserveDebounces(t *testing.T) {
	f := &fakeFetcher{history: &models.MarketHistory{}}
	r := &recorder{}
	s := newTestSession(f, r, "k")
	defer s.Stop()

	ctx := context.Background()
	s.Observe(ctx, "https://web.idle-mmo.com/item/inspect/first?tier=0")
	s.Observe(ctx, "https://web.idle-mmo.com/item/inspect/second?tier=0")
	s.Observe(ctx, "https://web.idle-mmo.com/item/inspect/third?tier=0")

	require.Eventually(t, func() bool { return len(r.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	updates := r.all()
	require.Len(t, updates, 1)
	assert.Equal(t, "third", updates[0].Selection.ItemID)
}

func TestWatchAppliesCredentialEvents(t *testing.T) {
	f := &fakeFetcher{history: &models.MarketHistory{}}
	r := &recorder{}
	s := newTestSession(f, r, "")

	manager, _ := auth.NewMockManager()
	events := manager.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, events)
		close(done)
	}()

	require.NoError(t, manager.Store(&auth.Credential{APIKey: "idlemmo_new"}))
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.apiKey == "idlemmo_new"
	}, time.Second, 5*time.Millisecond)

	s.Evaluate(context.Background(), inspectURL)
	assert.Equal(t, []string{"idlemmo_new"}, f.keys)

	cancel()
	<-done
}

type gatedFetcher struct {
	gate    chan struct{}
	started chan struct{}
	blockID string
	history *models.MarketHistory
}

func (g *gatedFetcher) MarketHistory(ctx context.Context, id string, tier int, series models.Series) (*models.MarketHistory, error) {
	if id == g.blockID {
		close(g.started)
		<-g.gate
	}
	return g.history, nil
}

func TestSupersededFetchDoesNotRender(t *testing.T) {
	g := &gatedFetcher{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		blockID: "AAA",
		history: &models.MarketHistory{LatestSold: []models.Sale{{PricePerItem: 10}}},
	}
	r := &recorder{}
	s := NewSession(Options{
		NewClient: func(string) HistoryFetcher { return g },
		Renderer:  r,
		APIKey:    "idlemmo_key",
		Logger:    logger.NewNopLogger(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Evaluate(context.Background(), "https://web.idle-mmo.com/item/inspect/AAA?tier=0")
	}()
	<-g.started

	s.Evaluate(context.Background(), "https://web.idle-mmo.com/item/inspect/BBB?tier=0")
	close(g.gate)
	<-done

	updates := r.all()
	require.Len(t, updates, 1)
	assert.Equal(t, "BBB", updates[0].Selection.ItemID)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "BBB", current.ItemID)
}

func TestClearSelectionDropsPendingFetch(t *testing.T) {
	g := &gatedFetcher{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		blockID: "AAA",
		history: &models.MarketHistory{},
	}
	r := &recorder{}
	s := NewSession(Options{
		NewClient: func(string) HistoryFetcher { return g },
		Renderer:  r,
		APIKey:    "idlemmo_key",
		Logger:    logger.NewNopLogger(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Evaluate(context.Background(), "https://web.idle-mmo.com/item/inspect/AAA?tier=0")
	}()
	<-g.started

	s.ClearSelection()
	close(g.gate)
	<-done

	assert.Empty(t, r.all())
	_, ok := s.Current()
	assert.False(t, ok)
}
