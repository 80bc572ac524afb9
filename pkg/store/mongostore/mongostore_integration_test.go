//go:build integration

package mongostore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/store"
)

func startMongo(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mongo container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), startMongo(t), "market_test", "items", logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMongoStoreItems(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	docs := []store.ItemDocument{
		store.NewItemDocument(models.Item{HashedID: "a", Name: "Iron Ore", Type: "ore"}),
		store.NewItemDocument(models.Item{HashedID: "b", Name: "Iron  Ore!", Type: "ore"}),
		store.NewItemDocument(models.Item{HashedID: "c", Name: "Coal", Type: "ore"}),
	}
	n, err := s.InsertItems(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.InsertItems(ctx, []store.ItemDocument{
		docs[0],
		store.NewItemDocument(models.Item{HashedID: "d", Name: "Copper"}),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDuplicateKey))
	assert.Equal(t, 1, n)

	count, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	report, err := s.SlugReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Distinct)
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "iron-ore", report.Collisions[0].Slug)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "Iron Ore", items[0].Item.Name)

	removed, err := s.ClearItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, removed)
}

func TestMongoStoreHistory(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	coll := "a_0_listings_history_data"

	require.NoError(t, s.EnsureCollection(ctx, coll))
	require.NoError(t, s.EnsureCollection(ctx, coll))

	inserted, err := s.UpsertPoint(ctx, coll, models.HistoryPoint{Date: "2024-01-01", AveragePrice: 5, TotalSold: 1})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.UpsertPoint(ctx, coll, models.HistoryPoint{Date: "2024-01-01", AveragePrice: 6, TotalSold: 2})
	require.NoError(t, err)
	assert.False(t, inserted)

	points, err := s.Points(ctx, coll)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 6.0, points[0].AveragePrice)

	names, err := s.Collections(ctx, store.HistorySuffix)
	require.NoError(t, err)
	assert.Equal(t, []string{coll}, names)
}
