// Package ingest loads the deduplicated item set into the item store.
//
// Loading replaces the whole collection: existing items are removed first,
// then the set is inserted in fixed-size unordered batches. A batch that
// hits existing keys is logged and still counted as inserted; any other
// store failure stops the load.
package ingest

import (
	"context"
	"fmt"
	"time"

	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/slug"
	"idledata/pkg/storage"
	"idledata/pkg/store"
)

// DefaultBatchSize is the number of documents per insert call
const DefaultBatchSize = 1000

// Result is what an ingestion did
type Result struct {
	Source  string
	Items   int
	Cleared int64
	Batches int
	// Inserted counts whole batches, including batches whose duplicates
	// were skipped. Duplicates is the exact number of rejected records.
	Inserted      int
	Duplicates    int
	PreCollisions []slug.Group

	Persisted      int64
	DistinctSlugs  int
	PostCollisions []slug.Group
	Sample         *store.ItemDocument
	Duration       time.Duration
}

// Ingestor writes items to an ItemStore
type Ingestor struct {
	store     store.ItemStore
	batchSize int
	logger    logger.Logger

	// OnBatch, when set, is called after every batch with the running
	// inserted count and the total.
	OnBatch func(inserted, total int)
}

// New creates an Ingestor. A non-positive batchSize uses DefaultBatchSize.
func New(st store.ItemStore, batchSize int, log logger.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Ingestor{
		store:     st,
		batchSize: batchSize,
		logger:    logger.OrGlobal(log).WithField("stage", "ingest"),
	}
}

// Run reads the deduplicated item file and loads it
func (in *Ingestor) Run(ctx context.Context, source string) (*Result, error) {
	items, err := storage.ReadItems(source)
	if err != nil {
		return nil, err
	}
	in.logger.InfoWithFields("Loaded items file", map[string]interface{}{
		"file":  source,
		"items": len(items),
	})

	result, err := in.Load(ctx, items)
	if result != nil {
		result.Source = source
	}
	return result, err
}

// Load replaces the stored items with items
func (in *Ingestor) Load(ctx context.Context, items []models.Item) (*Result, error) {
	start := time.Now()
	result := &Result{Items: len(items)}

	docs := make([]store.ItemDocument, len(items))
	names := make([]string, len(items))
	for i, item := range items {
		docs[i] = store.NewItemDocument(item)
		names[i] = item.Name
	}

	result.PreCollisions = slug.FindCollisions(names)
	if len(result.PreCollisions) == 0 {
		in.logger.Info("All slugs are unique")
	}
	for _, group := range result.PreCollisions {
		in.logger.WarnWithFields("Duplicate slug", map[string]interface{}{
			"slug":  group.Slug,
			"count": group.Count,
			"names": group.Names,
		})
	}

	cleared, err := in.store.ClearItems(ctx)
	if err != nil {
		return result, fmt.Errorf("clear items: %w", err)
	}
	result.Cleared = cleared
	in.logger.InfoWithFields("Cleared existing items", map[string]interface{}{"removed": cleared})

	for offset := 0; offset < len(docs); offset += in.batchSize {
		end := offset + in.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]
		result.Batches++

		_, err := in.store.InsertItems(ctx, batch)
		if err != nil {
			if !apperrors.IsKind(err, apperrors.KindDuplicateKey) {
				return result, fmt.Errorf("insert batch %d: %w", result.Batches, err)
			}
			rejected := 0
			var dupErr *apperrors.Error
			if apperrors.As(err, &dupErr) {
				rejected = dupErr.Code
			}
			result.Duplicates += rejected
			in.logger.WarnWithFields("Some items already exist, skipping duplicates", map[string]interface{}{
				"batch":      result.Batches,
				"duplicates": rejected,
			})
		}

		result.Inserted += len(batch)
		in.logger.DebugWithFields("Inserted batch", map[string]interface{}{
			"batch":    result.Batches,
			"inserted": result.Inserted,
			"total":    len(docs),
		})
		if in.OnBatch != nil {
			in.OnBatch(result.Inserted, len(docs))
		}
	}

	if err := in.verify(ctx, result); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (in *Ingestor) verify(ctx context.Context, result *Result) error {
	persisted, err := in.store.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	result.Persisted = persisted

	report, err := in.store.SlugReport(ctx)
	if err != nil {
		return fmt.Errorf("slug report: %w", err)
	}
	result.DistinctSlugs = report.Distinct
	result.PostCollisions = report.Collisions
	for _, group := range report.Collisions {
		in.logger.WarnWithFields("Stored items share a slug", map[string]interface{}{
			"slug":  group.Slug,
			"count": group.Count,
			"names": group.Names,
		})
	}

	sample, err := in.store.SampleItem(ctx)
	if err != nil {
		return fmt.Errorf("sample item: %w", err)
	}
	result.Sample = sample

	in.logger.InfoWithFields("Verified stored items", map[string]interface{}{
		"persisted":      persisted,
		"distinct_slugs": report.Distinct,
		"collisions":     len(report.Collisions),
	})
	return nil
}
