package reconcile

import (
	"context"
	"time"

	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/slug"
	"idledata/pkg/storage"
)

// TopTypes is how many types the frequency ranking keeps
const TopTypes = 10

// ShardInfo is one shard read during reconciliation
type ShardInfo struct {
	Name  string
	Items int
	New   int
}

// Result is what a reconciliation produced
type Result struct {
	Shards     []ShardInfo
	Items      []models.Item
	Collisions []slug.Group
	Stats      Stats
	OutputFile string
	Cleaned    int
	Duration   time.Duration
}

// Reconciler merges every shard into the deduplicated item set
type Reconciler struct {
	shards     *storage.Manager
	outputFile string
	logger     logger.Logger
}

// New creates a reconciler writing to outputFile
func New(shards *storage.Manager, outputFile string, log logger.Logger) *Reconciler {
	return &Reconciler{
		shards:     shards,
		outputFile: outputFile,
		logger:     logger.OrGlobal(log).WithField("stage", "reconcile"),
	}
}

// Run reads the shards in lexical order, merges them by hashed_id, reports
// slug collisions, writes the output file and computes statistics. Shards
// are removed afterwards only when cleanShards is set.
func (r *Reconciler) Run(ctx context.Context, cleanShards bool) (*Result, error) {
	start := time.Now()
	result := &Result{OutputFile: r.outputFile}

	names, err := r.shards.Shards()
	if err != nil {
		return nil, err
	}
	r.logger.InfoWithFields("Found shards", map[string]interface{}{
		"count": len(names),
		"dir":   r.shards.Dir(),
	})

	merger := NewMerger()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := r.shards.ReadShard(name)
		if err != nil {
			return nil, err
		}
		added := merger.Add(items)
		result.Shards = append(result.Shards, ShardInfo{Name: name, Items: len(items), New: added})

		r.logger.DebugWithFields("Processed shard", map[string]interface{}{
			"shard": name,
			"items": len(items),
			"new":   added,
		})
	}
	result.Items = merger.Items()

	result.Collisions = slug.FindCollisions(itemNames(result.Items))
	for _, group := range result.Collisions {
		r.logger.WarnWithFields("Slug collision", map[string]interface{}{
			"slug":  group.Slug,
			"count": group.Count,
			"names": group.Names,
		})
	}

	if err := storage.WriteItems(r.outputFile, result.Items); err != nil {
		return nil, err
	}

	result.Stats = ComputeStats(result.Items, TopTypes)
	r.logger.InfoWithFields("Deduplication complete", map[string]interface{}{
		"unique":     len(result.Items),
		"types":      len(result.Stats.Types),
		"qualities":  len(result.Stats.Qualities),
		"collisions": len(result.Collisions),
		"output":     r.outputFile,
	})

	if cleanShards {
		cleaned, err := r.shards.Clean()
		if err != nil {
			return nil, err
		}
		result.Cleaned = cleaned
		r.logger.InfoWithFields("Removed shards", map[string]interface{}{"count": cleaned})
	}

	result.Duration = time.Since(start)
	return result, nil
}

func itemNames(items []models.Item) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}
