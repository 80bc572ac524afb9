package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"idledata/pkg/logger"
)

// Checkpoint records which harvest queries have been fully fetched and
// written to their shard
type Checkpoint struct {
	Queries    []string       `json:"queries"`
	ShardDir   string         `json:"shard_dir"`
	Completed  map[string]int `json:"completed"` // query -> items written
	TotalItems int            `json:"total_items"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Version    int            `json:"version"`
}

// IsCompleted reports whether query finished in an earlier run
func (c *Checkpoint) IsCompleted(query string) bool {
	_, ok := c.Completed[query]
	return ok
}

// Remaining returns the queries that still have to run, in order
func (c *Checkpoint) Remaining() []string {
	var remaining []string
	for _, q := range c.Queries {
		if !c.IsCompleted(q) {
			remaining = append(remaining, q)
		}
	}
	return remaining
}

// Manager handles checkpoint persistence
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for the checkpoint file at path
func NewManager(path string, log logger.Logger) *Manager {
	return &Manager{
		checkpointPath: path,
		logger:         logger.OrGlobal(log),
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for queries, replacing any previous one
func (m *Manager) Create(queries []string, shardDir string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Queries:   append([]string(nil), queries...),
		ShardDir:  shardDir,
		Completed: make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"queries": len(queries),
		"path":    m.checkpointPath,
	})

	return checkpoint, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Completed == nil {
		checkpoint.Completed = make(map[string]int)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"completed":   len(checkpoint.Completed),
		"total_items": checkpoint.TotalItems,
		"updated_at":  checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.checkpointPath), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"completed":   len(checkpoint.Completed),
		"total_items": checkpoint.TotalItems,
	})

	return nil
}

// RecordQuery marks query as finished with count items and saves
func (m *Manager) RecordQuery(checkpoint *Checkpoint, query string, count int) error {
	if prev, ok := checkpoint.Completed[query]; ok {
		checkpoint.TotalItems -= prev
	}
	checkpoint.Completed[query] = count
	checkpoint.TotalItems += count
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
