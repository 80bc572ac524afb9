package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/storage"
	"idledata/pkg/store"
	"idledata/pkg/store/badgerstore"
)

// recordingStore is an ItemStore whose InsertItems results are scripted per call
type recordingStore struct {
	calls    [][]store.ItemDocument
	failures map[int]error
	cleared  bool
	stored   []store.ItemDocument
}

func (s *recordingStore) ClearItems(ctx context.Context) (int64, error) {
	s.cleared = true
	n := int64(len(s.stored))
	s.stored = nil
	return n, nil
}

func (s *recordingStore) InsertItems(ctx context.Context, docs []store.ItemDocument) (int, error) {
	s.calls = append(s.calls, docs)
	if err, ok := s.failures[len(s.calls)]; ok {
		return 0, err
	}
	s.stored = append(s.stored, docs...)
	return len(docs), nil
}

func (s *recordingStore) Items(ctx context.Context) ([]store.ItemDocument, error) {
	return s.stored, nil
}

func (s *recordingStore) CountItems(ctx context.Context) (int64, error) {
	return int64(len(s.stored)), nil
}

func (s *recordingStore) SampleItem(ctx context.Context) (*store.ItemDocument, error) {
	if len(s.stored) == 0 {
		return nil, nil
	}
	return &s.stored[0], nil
}

func (s *recordingStore) SlugReport(ctx context.Context) (*store.SlugReport, error) {
	return &store.SlugReport{Distinct: len(s.stored)}, nil
}

func makeItems(n int) []models.Item {
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{HashedID: fmt.Sprintf("id-%04d", i), Name: fmt.Sprintf("Item %d", i)}
	}
	return items
}

func TestLoadBatchesAndToleratesDuplicates(t *testing.T) {
	st := &recordingStore{failures: map[int]error{
		2: apperrors.DuplicateKey(500, errors.New("E11000 duplicate key")),
	}}
	log := logger.NewTestLogger()
	in := New(st, 1000, log)

	var progress []int
	in.OnBatch = func(inserted, total int) {
		assert.Equal(t, 1500, total)
		progress = append(progress, inserted)
	}

	result, err := in.Load(context.Background(), makeItems(1500))
	require.NoError(t, err)

	require.Len(t, st.calls, 2)
	assert.Len(t, st.calls[0], 1000)
	assert.Len(t, st.calls[1], 500)
	assert.True(t, st.cleared)

	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 1500, result.Inserted)
	assert.Equal(t, 500, result.Duplicates)
	assert.EqualValues(t, 1000, result.Persisted)
	assert.Equal(t, []int{1000, 1500}, progress)
	assert.True(t, log.HasMessage("Some items already exist, skipping duplicates"))
}

func TestLoadAbortsOnStorageError(t *testing.T) {
	st := &recordingStore{failures: map[int]error{
		1: apperrors.Storage("insert items", errors.New("connection reset")),
	}}
	in := New(st, 2, logger.NewNopLogger())

	result, err := in.Load(context.Background(), makeItems(5))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage))
	assert.Len(t, st.calls, 1)
	assert.Equal(t, 0, result.Inserted)
}

func TestLoadDerivesSlugAndKey(t *testing.T) {
	st := &recordingStore{}
	in := New(st, 0, logger.NewNopLogger())

	_, err := in.Load(context.Background(), []models.Item{{HashedID: "h1", Name: "Iron  Ore!"}})
	require.NoError(t, err)

	require.Len(t, st.calls, 1)
	assert.Equal(t, "h1", st.calls[0][0].ID)
	assert.Equal(t, "iron-ore", st.calls[0][0].Slug)
}

func TestLoadReportsPreloadCollisions(t *testing.T) {
	st := &recordingStore{}
	log := logger.NewTestLogger()
	in := New(st, 10, log)

	result, err := in.Load(context.Background(), []models.Item{
		{HashedID: "1", Name: "Iron Ore"},
		{HashedID: "2", Name: "iron ore"},
	})
	require.NoError(t, err)
	require.Len(t, result.PreCollisions, 1)
	assert.Equal(t, "iron-ore", result.PreCollisions[0].Slug)
	assert.True(t, log.HasMessage("Duplicate slug"))
}

func TestRunReplacesStoredItems(t *testing.T) {
	ctx := context.Background()
	st, err := badgerstore.Open("", logger.NewNopLogger())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.InsertItems(ctx, []store.ItemDocument{store.NewItemDocument(models.Item{HashedID: "stale", Name: "Old"})})
	require.NoError(t, err)

	source := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, storage.WriteItems(source, []models.Item{
		{HashedID: "a", Name: "Iron Ore"},
		{HashedID: "b", Name: "Iron  Ore!"},
		{HashedID: "c", Name: "Coal"},
	}))

	result, err := New(st, 2, logger.NewNopLogger()).Run(ctx, source)
	require.NoError(t, err)

	assert.Equal(t, source, result.Source)
	assert.EqualValues(t, 1, result.Cleared)
	assert.Equal(t, 2, result.Batches)
	assert.EqualValues(t, 3, result.Persisted)
	assert.Equal(t, 2, result.DistinctSlugs)
	require.Len(t, result.PostCollisions, 1)
	assert.Equal(t, "iron-ore", result.PostCollisions[0].Slug)
	require.NotNil(t, result.Sample)
	assert.Equal(t, "a", result.Sample.ID)
}
