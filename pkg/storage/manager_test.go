package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/models"
)

func sampleItems() []models.Item {
	return []models.Item{
		{HashedID: "a1", Name: "Apple", Type: "FOOD", Quality: "COMMON"},
		{HashedID: "a2", Name: "Axe", Type: "WEAPON", Quality: "RARE"},
	}
}

func TestWriteAndReadShard(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")
	manager := NewManager(dir)

	require.NoError(t, manager.WriteShard("a", sampleItems()))

	data, err := os.ReadFile(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"), "shards are pretty printed")

	items, err := manager.ReadShard("a.json")
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)

	_, err = os.Stat(filepath.Join(dir, "a.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestShardsAreLexical(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	for _, q := range []string{"c", "a", "b"} {
		require.NoError(t, manager.WriteShard(q, sampleItems()))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	names, err := manager.Shards()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json", "c.json"}, names)
}

func TestShardsMissingDirectory(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "absent")).Shards()
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage))
}

func TestReadShardInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.json"), []byte("{not an array"), 0644))

	_, err := NewManager(dir).ReadShard("x.json")
	assert.True(t, apperrors.IsKind(err, apperrors.KindParsing))
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)
	require.NoError(t, manager.WriteShard("a", sampleItems()))
	require.NoError(t, manager.WriteShard("b", nil))

	removed, err := manager.Clean()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	names, err := manager.Shards()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWriteItemsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, WriteItems(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	items, err := ReadItems(path)
	require.NoError(t, err)
	assert.Empty(t, items)
}
