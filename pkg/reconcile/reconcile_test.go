package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/storage"
)

func item(id, name, typ, quality string) models.Item {
	return models.Item{HashedID: id, Name: name, Type: typ, Quality: quality}
}

func TestMergeFirstSeenWins(t *testing.T) {
	a := []models.Item{item("1", "Iron Ore", "ORE", "COMMON"), item("2", "Apple", "FOOD", "COMMON")}
	b := []models.Item{item("2", "Apple (changed)", "FOOD", "RARE"), item("3", "Bread", "FOOD", "COMMON")}

	merged := Merge(a, b)

	require.Len(t, merged, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{merged[0].HashedID, merged[1].HashedID, merged[2].HashedID})
	assert.Equal(t, "Apple", merged[1].Name)
	assert.Equal(t, "COMMON", merged[1].Quality)
}

func TestMergerAddCountsNew(t *testing.T) {
	m := NewMerger()
	assert.Equal(t, 2, m.Add([]models.Item{item("1", "", "", ""), item("2", "", "", "")}))
	assert.Equal(t, 1, m.Add([]models.Item{item("2", "", "", ""), item("3", "", "", "")}))
	assert.Len(t, m.Items(), 3)
}

func TestComputeStats(t *testing.T) {
	items := []models.Item{
		item("1", "", "ORE", "COMMON"),
		item("2", "", "FOOD", "RARE"),
		item("3", "", "FISH", "COMMON"),
		item("4", "", "FOOD", "EPIC"),
		item("5", "", "FISH", "COMMON"),
		item("6", "", "BAR", "COMMON"),
	}

	stats := ComputeStats(items, 10)

	assert.Equal(t, 6, stats.TotalItems)
	assert.Equal(t, []string{"ORE", "FOOD", "FISH", "BAR"}, stats.Types)
	assert.Equal(t, []string{"COMMON", "RARE", "EPIC"}, stats.Qualities)
	// FOOD and FISH tie at 2; FOOD was seen first
	assert.Equal(t, []TypeCount{{"FOOD", 2}, {"FISH", 2}, {"ORE", 1}, {"BAR", 1}}, stats.TopTypes)
}

func TestComputeStatsTopN(t *testing.T) {
	var items []models.Item
	for i := 0; i < 12; i++ {
		items = append(items, item(string(rune('a'+i)), "", string(rune('A'+i)), "COMMON"))
	}

	stats := ComputeStats(items, TopTypes)
	assert.Len(t, stats.Types, 12)
	assert.Len(t, stats.TopTypes, 10)
	assert.Equal(t, "A", stats.TopTypes[0].Type)
}

func writeShards(t *testing.T, dir string, shards map[string][]models.Item) *storage.Manager {
	t.Helper()
	manager := storage.NewManager(dir)
	for q, items := range shards {
		require.NoError(t, manager.WriteShard(q, items))
	}
	return manager
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "items.json")
	manager := writeShards(t, filepath.Join(dir, "items"), map[string][]models.Item{
		"b": {item("2", "Iron-Ore", "ORE", "RARE"), item("3", "Bread", "FOOD", "COMMON")},
		"a": {item("1", "Iron Ore", "ORE", "COMMON"), item("2", "Iron-Ore", "ORE", "RARE")},
	})

	log := logger.NewTestLogger()
	result, err := New(manager, output, log).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []ShardInfo{{Name: "a.json", Items: 2, New: 2}, {Name: "b.json", Items: 2, New: 1}}, result.Shards)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "1", result.Items[0].HashedID)

	require.Len(t, result.Collisions, 1)
	assert.Equal(t, "iron-ore", result.Collisions[0].Slug)
	assert.Equal(t, []string{"Iron Ore", "Iron-Ore"}, result.Collisions[0].Names)
	assert.True(t, log.HasMessage("Slug collision"))

	written, err := storage.ReadItems(output)
	require.NoError(t, err)
	assert.Equal(t, result.Items, written)

	assert.Equal(t, 3, result.Stats.TotalItems)
	assert.Equal(t, []TypeCount{{"ORE", 2}, {"FOOD", 1}}, result.Stats.TopTypes)

	names, err := manager.Shards()
	require.NoError(t, err)
	assert.Len(t, names, 2, "shards are kept by default")
}

func TestRunCleanShards(t *testing.T) {
	dir := t.TempDir()
	manager := writeShards(t, filepath.Join(dir, "items"), map[string][]models.Item{
		"a": {item("1", "Apple", "FOOD", "COMMON")},
	})

	result, err := New(manager, filepath.Join(dir, "items.json"), logger.NewNopLogger()).Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cleaned)
	_, err = os.Stat(filepath.Join(dir, "items", "a.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunWithoutShardDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := New(storage.NewManager(filepath.Join(dir, "missing")), filepath.Join(dir, "items.json"), logger.NewNopLogger()).
		Run(context.Background(), false)
	assert.Error(t, err)
}

func TestRunEmptyShardDirectory(t *testing.T) {
	dir := t.TempDir()
	shards := storage.NewManager(filepath.Join(dir, "items"))
	require.NoError(t, shards.Ensure())

	output := filepath.Join(dir, "items.json")
	result, err := New(shards, output, logger.NewNopLogger()).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, result.Items)

	items, err := storage.ReadItems(output)
	require.NoError(t, err)
	assert.Empty(t, items)
}
