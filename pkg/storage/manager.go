package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/models"
)

const shardExt = ".json"

// Manager owns the shard directory: one pretty-printed JSON array of raw
// items per harvest query
type Manager struct {
	shardDir string
}

// NewManager creates a manager for shardDir. The directory is created by
// Ensure or the first write; reading a missing directory is an error.
func NewManager(shardDir string) *Manager {
	return &Manager{shardDir: shardDir}
}

// Dir returns the shard directory
func (m *Manager) Dir() string {
	return m.shardDir
}

// ShardPath returns the file a query's items are written to
func (m *Manager) ShardPath(query string) string {
	return filepath.Join(m.shardDir, query+shardExt)
}

// Ensure creates the shard directory if it does not exist
func (m *Manager) Ensure() error {
	if err := os.MkdirAll(m.shardDir, 0755); err != nil {
		return apperrors.Storage("create shard directory", err)
	}
	return nil
}

// WriteShard replaces the shard for query with items
func (m *Manager) WriteShard(query string, items []models.Item) error {
	if err := m.Ensure(); err != nil {
		return err
	}
	return WriteItems(m.ShardPath(query), items)
}

// Shards lists shard file names in lexical order
func (m *Manager) Shards() ([]string, error) {
	entries, err := os.ReadDir(m.shardDir)
	if err != nil {
		return nil, apperrors.Storage("read shard directory "+m.shardDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), shardExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadShard parses one shard by file name
func (m *Manager) ReadShard(name string) ([]models.Item, error) {
	return ReadItems(filepath.Join(m.shardDir, name))
}

// Clean removes every shard file and leaves the directory in place
func (m *Manager) Clean() (int, error) {
	names, err := m.Shards()
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := os.Remove(filepath.Join(m.shardDir, name)); err != nil {
			return i, apperrors.Storage("remove shard "+name, err)
		}
	}
	return len(names), nil
}

// WriteItems writes items as a pretty-printed JSON array. The file is
// written to a temporary sibling and renamed into place.
func WriteItems(path string, items []models.Item) error {
	if items == nil {
		items = []models.Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return apperrors.Parsing("encode items", err)
	}
	return writeAtomic(path, data)
}

// ReadItems parses a JSON array of items
func ReadItems(path string) ([]models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Storage("read "+path, err)
	}

	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.Parsing("decode "+path, err)
	}
	return items, nil
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.Storage("create directory "+dir, err)
		}
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, bytes.TrimRight(data, "\n"), 0644); err != nil {
		os.Remove(tempFile)
		return apperrors.Storage(fmt.Sprintf("write %s", tempFile), err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return apperrors.Storage(fmt.Sprintf("rename %s", tempFile), err)
	}
	return nil
}
