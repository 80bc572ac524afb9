package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idledata/pkg/checkpoint"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/ratelimit"
	"idledata/pkg/storage"
)

type call struct {
	query string
	page  int
}

// fakeSearcher serves canned pages keyed by query
type fakeSearcher struct {
	mu     sync.Mutex
	pages  map[string][]models.SearchPage
	fail   map[call]error
	calls  []call
	totals map[string]int
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		pages:  make(map[string][]models.SearchPage),
		fail:   make(map[call]error),
		totals: make(map[string]int),
	}
}

// add registers a query whose results are split into pages of perPage items
func (f *fakeSearcher) add(query string, ids []string, perPage int) {
	lastPage := (len(ids) + perPage - 1) / perPage
	for p := 0; p < lastPage; p++ {
		end := (p + 1) * perPage
		if end > len(ids) {
			end = len(ids)
		}
		var items []models.Item
		for _, id := range ids[p*perPage : end] {
			items = append(items, models.Item{HashedID: id, Name: "Item " + id, Type: "ORE", Quality: "COMMON"})
		}
		f.pages[query] = append(f.pages[query], models.SearchPage{
			Items: items,
			Pagination: models.Pagination{
				CurrentPage: p + 1,
				LastPage:    lastPage,
				PerPage:     perPage,
				Total:       len(ids),
			},
		})
	}
}

func (f *fakeSearcher) SearchItems(ctx context.Context, query string, page int) (*models.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := call{query, page}
	f.calls = append(f.calls, c)
	if err := f.fail[c]; err != nil {
		return nil, err
	}

	pages := f.pages[query]
	if len(pages) == 0 {
		return &models.SearchPage{Pagination: models.Pagination{CurrentPage: 1, LastPage: 1}}, nil
	}
	if page > len(pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	p := pages[page-1]
	return &p, nil
}

func (f *fakeSearcher) callsFor(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func TestSingleLetterSinglePage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")
	searcher := newFakeSearcher()
	searcher.add("a", ids("a", 5), 50)

	h := New(searcher, storage.NewManager(dir), ratelimit.NoDelay, logger.NewNopLogger())
	summary, err := h.Run(context.Background(), []string{"a"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.callsFor("a"), "no page beyond last_page is fetched")
	assert.Equal(t, 5, summary.TotalItems)

	items, err := storage.ReadItems(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, "a1", items[0].HashedID)
}

func TestHarvestQueryPaginates(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.add("b", ids("b", 7), 3)

	h := New(searcher, storage.NewManager(t.TempDir()), nil, logger.NewNopLogger())
	items, result, err := h.HarvestQuery(context.Background(), "b")
	require.NoError(t, err)

	assert.Len(t, items, 7)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 7, result.Expected)
	assert.Equal(t, []call{{"b", 1}, {"b", 2}, {"b", 3}}, searcher.calls)
	assert.Equal(t, "b7", items[6].HashedID)
}

func TestHarvestQueryTotalMismatchOnlyWarns(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.add("c", ids("c", 4), 2)
	searcher.pages["c"][0].Pagination.Total = 5

	log := logger.NewTestLogger()
	h := New(searcher, storage.NewManager(t.TempDir()), nil, log)
	items, _, err := h.HarvestQuery(context.Background(), "c")

	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.True(t, log.HasMessage("Collected item count differs from reported total"))
}

func TestEmptyQueryWritesNoShard(t *testing.T) {
	dir := t.TempDir()
	searcher := newFakeSearcher()
	searcher.add("a", ids("a", 2), 10)

	h := New(searcher, storage.NewManager(dir), nil, logger.NewNopLogger())
	summary, err := h.Run(context.Background(), []string{"a", "q"}, false)
	require.NoError(t, err)

	require.Len(t, summary.Queries, 2)
	assert.Empty(t, summary.Queries[1].Shard)
	_, err = os.Stat(filepath.Join(dir, "q.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, searcher.callsFor("q"))
}

func TestRunCreatesShardDirectoryWithoutResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")
	searcher := newFakeSearcher()

	h := New(searcher, storage.NewManager(dir), nil, logger.NewNopLogger())
	summary, err := h.Run(context.Background(), []string{"q", "x"}, false)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalItems)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestQueryPacerRunsBetweenQueries(t *testing.T) {
	searcher := newFakeSearcher()
	for _, q := range []string{"a", "b", "c"} {
		searcher.add(q, ids(q, 1), 10)
	}
	pacer := ratelimit.NewFixedDelay(0)

	h := New(searcher, storage.NewManager(t.TempDir()), pacer, logger.NewNopLogger())
	_, err := h.Run(context.Background(), []string{"a", "b", "c"}, false)
	require.NoError(t, err)

	assert.Equal(t, 3, pacer.Pauses())
}

func TestFailureAbortsRun(t *testing.T) {
	dir := t.TempDir()
	searcher := newFakeSearcher()
	searcher.add("a", ids("a", 4), 2)
	searcher.add("b", ids("b", 4), 2)
	searcher.add("c", ids("c", 1), 2)
	searcher.fail[call{"b", 2}] = apperrors.HTTP(429, "Too Many Requests")

	h := New(searcher, storage.NewManager(dir), nil, logger.NewNopLogger())
	summary, err := h.Run(context.Background(), []string{"a", "b", "c"}, false)

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindHTTP))
	assert.Len(t, summary.Queries, 1)
	assert.Zero(t, searcher.callsFor("c"))

	_, err = os.Stat(filepath.Join(dir, "b.json"))
	assert.True(t, os.IsNotExist(err), "a failed query leaves no shard")
}

func TestResumeSkipsCompletedQueries(t *testing.T) {
	dir := t.TempDir()
	cpPath := filepath.Join(t.TempDir(), "harvest.json")
	queries := []string{"a", "b", "c"}

	searcher := newFakeSearcher()
	for _, q := range queries {
		searcher.add(q, ids(q, 2), 10)
	}
	searcher.fail[call{"b", 1}] = errors.New("connection reset")

	h := New(searcher, storage.NewManager(dir), nil, logger.NewNopLogger()).
		WithCheckpoint(checkpoint.NewManager(cpPath, logger.NewNopLogger()))
	_, err := h.Run(context.Background(), queries, false)
	require.Error(t, err)

	delete(searcher.fail, call{"b", 1})
	searcher.calls = nil

	var seen []string
	h.OnQuery = func(result QueryResult, done, total int) {
		seen = append(seen, result.Query)
		assert.Equal(t, 3, total)
	}
	summary, err := h.Run(context.Background(), queries, true)
	require.NoError(t, err)

	assert.Zero(t, searcher.callsFor("a"))
	assert.Equal(t, 1, searcher.callsFor("b"))
	assert.Equal(t, 1, summary.Resumed)
	assert.Equal(t, 6, summary.TotalItems)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	_, err = os.Stat(cpPath)
	assert.True(t, os.IsNotExist(err), "a finished harvest removes its checkpoint")
}

func TestFreshRunDiscardsCheckpoint(t *testing.T) {
	cpPath := filepath.Join(t.TempDir(), "harvest.json")
	mgr := checkpoint.NewManager(cpPath, logger.NewNopLogger())
	cp, err := mgr.Create([]string{"a"}, "elsewhere")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordQuery(cp, "a", 9))

	searcher := newFakeSearcher()
	searcher.add("a", ids("a", 1), 10)

	h := New(searcher, storage.NewManager(t.TempDir()), nil, logger.NewNopLogger()).WithCheckpoint(mgr)
	summary, err := h.Run(context.Background(), []string{"a"}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.callsFor("a"), "checkpoint for another shard dir is ignored")
	assert.Zero(t, summary.Resumed)
}
