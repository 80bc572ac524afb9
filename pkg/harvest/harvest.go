package harvest

import (
	"context"
	"fmt"
	"time"

	"idledata/internal/pipeline"
	"idledata/pkg/checkpoint"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/ratelimit"
	"idledata/pkg/storage"
)

// Searcher is the part of the API client the harvest needs
type Searcher interface {
	SearchItems(ctx context.Context, query string, page int) (*models.SearchPage, error)
}

// QueryResult describes one finished query
type QueryResult struct {
	Query    string
	Items    int
	Pages    int
	Expected int
	// Shard is empty when the query returned no items.
	Shard string
	// Resumed is set for queries skipped because a checkpoint recorded them.
	Resumed bool
}

// Summary is the outcome of a harvest run
type Summary struct {
	Queries    []QueryResult
	TotalItems int
	Resumed    int
	Duration   time.Duration
}

// Harvester sweeps the item search with a fixed list of queries and writes
// one shard per query
type Harvester struct {
	client      Searcher
	shards      *storage.Manager
	queryPacer  ratelimit.Pacer
	checkpoints *checkpoint.Manager
	logger      logger.Logger

	// OnQuery, when set, is called after every query finishes or is skipped.
	OnQuery func(result QueryResult, done, total int)
}

// New creates a Harvester. queryPacer runs between queries, in addition
// to the client's own per-call pause.
func New(client Searcher, shards *storage.Manager, queryPacer ratelimit.Pacer, log logger.Logger) *Harvester {
	return &Harvester{
		client:     client,
		shards:     shards,
		queryPacer: queryPacer,
		logger:     logger.OrGlobal(log).WithField("stage", "harvest"),
	}
}

// WithCheckpoint enables progress recording
func (h *Harvester) WithCheckpoint(mgr *checkpoint.Manager) *Harvester {
	h.checkpoints = mgr
	return h
}

// HarvestQuery fetches every page of one query. An empty first page ends
// the query without further calls.
func (h *Harvester) HarvestQuery(ctx context.Context, query string) ([]models.Item, QueryResult, error) {
	result := QueryResult{Query: query}
	log := h.logger.WithField("query", query)

	first, err := h.client.SearchItems(ctx, query, 1)
	if err != nil {
		return nil, result, fmt.Errorf("query %q page 1: %w", query, err)
	}
	result.Pages = 1

	if len(first.Items) == 0 {
		log.Info("No items found")
		return nil, result, nil
	}

	lastPage := first.Pagination.LastPage
	result.Expected = first.Pagination.Total
	log.InfoWithFields("Found items", map[string]interface{}{
		"total": result.Expected,
		"pages": lastPage,
	})

	items := append([]models.Item(nil), first.Items...)
	for page := 2; page <= lastPage; page++ {
		next, err := h.client.SearchItems(ctx, query, page)
		if err != nil {
			return nil, result, fmt.Errorf("query %q page %d: %w", query, page, err)
		}
		items = append(items, next.Items...)
		result.Pages++

		log.DebugWithFields("Fetched page", map[string]interface{}{
			"page":      page,
			"last_page": lastPage,
			"collected": len(items),
		})
	}

	result.Items = len(items)
	if result.Items != result.Expected {
		log.WarnWithFields("Collected item count differs from reported total", map[string]interface{}{
			"collected": result.Items,
			"total":     result.Expected,
		})
	}
	return items, result, nil
}

// Run harvests every query in order. With resume set, queries recorded by
// an existing checkpoint for the same query list are skipped; otherwise any
// checkpoint is discarded. Any failure aborts the whole run.
func (h *Harvester) Run(ctx context.Context, queries []string, resume bool) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	cp, err := h.openCheckpoint(queries, resume)
	if err != nil {
		return nil, err
	}
	// Reconcile reads the directory even when no query found anything.
	if err := h.shards.Ensure(); err != nil {
		return nil, err
	}

	logger.LogStageStart(h.logger, "harvest", map[string]interface{}{
		"queries":   len(queries),
		"shard_dir": h.shards.Dir(),
		"resume":    resume,
	})

	var tasks []pipeline.Task
	for _, query := range queries {
		query := query
		if cp != nil && cp.IsCompleted(query) {
			resumed := QueryResult{Query: query, Items: cp.Completed[query], Resumed: true}
			summary.Queries = append(summary.Queries, resumed)
			summary.TotalItems += resumed.Items
			summary.Resumed++
			h.notify(resumed, len(summary.Queries), len(queries))
			continue
		}

		tasks = append(tasks, pipeline.Task{
			Name: query,
			Run: func(ctx context.Context) error {
				result, err := h.runQuery(ctx, query, cp)
				if err != nil {
					return err
				}
				summary.Queries = append(summary.Queries, result)
				summary.TotalItems += result.Items
				h.notify(result, len(summary.Queries), len(queries))
				return nil
			},
		})
	}

	if summary.Resumed > 0 {
		h.logger.InfoWithFields("Resuming harvest", map[string]interface{}{
			"skipped":   summary.Resumed,
			"remaining": len(tasks),
		})
	}

	runner := pipeline.NewRunner("harvest", h.queryPacer, h.logger)
	if _, err := runner.Run(ctx, tasks); err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	if h.checkpoints != nil {
		if err := h.checkpoints.Delete(); err != nil {
			h.logger.WithError(err).Warn("Failed to remove finished checkpoint")
		}
	}

	summary.Duration = time.Since(start)
	logger.LogStageStop(h.logger, "harvest", summary.Duration, map[string]interface{}{
		"items":   summary.TotalItems,
		"queries": len(summary.Queries),
	})
	return summary, nil
}

func (h *Harvester) runQuery(ctx context.Context, query string, cp *checkpoint.Checkpoint) (QueryResult, error) {
	items, result, err := h.HarvestQuery(ctx, query)
	if err != nil {
		return result, err
	}

	if len(items) > 0 {
		if err := h.shards.WriteShard(query, items); err != nil {
			return result, err
		}
		result.Shard = h.shards.ShardPath(query)
		h.logger.InfoWithFields("Saved shard", map[string]interface{}{
			"query": query,
			"items": len(items),
			"path":  result.Shard,
		})
	}

	if cp != nil {
		if err := h.checkpoints.RecordQuery(cp, query, len(items)); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (h *Harvester) openCheckpoint(queries []string, resume bool) (*checkpoint.Checkpoint, error) {
	if h.checkpoints == nil {
		return nil, nil
	}

	if resume {
		cp, err := h.checkpoints.Load()
		if err != nil {
			return nil, err
		}
		if cp != nil && sameQueries(cp.Queries, queries) && cp.ShardDir == h.shards.Dir() {
			return cp, nil
		}
		if cp != nil {
			h.logger.Warn("Checkpoint belongs to a different query list, starting over")
		}
	}

	if err := h.checkpoints.Delete(); err != nil {
		return nil, err
	}
	return h.checkpoints.Create(queries, h.shards.Dir())
}

func (h *Harvester) notify(result QueryResult, done, total int) {
	if h.OnQuery != nil {
		h.OnQuery(result, done, total)
	}
}

func sameQueries(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
