// Package marketsync copies the market history of every stored item into
// per item, tier and series history collections.
package marketsync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"idledata/internal/pipeline"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/ratelimit"
	"idledata/pkg/store"
)

// SampleSize is how many collection names the final report lists
const SampleSize = 5

// HistoryFetcher is the part of the API client the sync needs
type HistoryFetcher interface {
	MarketHistory(ctx context.Context, hashedID string, tier int, series models.Series) (*models.MarketHistory, error)
}

// Store is what the sync reads items from and writes history to
type Store interface {
	store.HistoryStore
	Items(ctx context.Context) ([]store.ItemDocument, error)
}

// CollectionName names the history collection of one item, tier and series
func CollectionName(hashedID string, tier int, series models.Series) string {
	return fmt.Sprintf("%s_%d_%s%s", hashedID, tier, series, store.HistorySuffix)
}

// SeriesResult is the outcome of one series of one item and tier
type SeriesResult struct {
	Series     models.Series
	Collection string
	Points     int
	Inserted   int
}

// ItemResult is the outcome of one item and tier
type ItemResult struct {
	ItemID   string
	Name     string
	Tier     int
	Series   []SeriesResult
	Inserted int
}

// Result is the outcome of a full sync
type Result struct {
	Items       int
	Points      int
	Inserted    int
	Collections []string
	Duration    time.Duration
}

// Sample returns the first SampleSize collection names and how many were left out
func (r *Result) Sample() ([]string, int) {
	if len(r.Collections) <= SampleSize {
		return r.Collections, 0
	}
	return r.Collections[:SampleSize], len(r.Collections) - SampleSize
}

// Syncer runs the market history sync
type Syncer struct {
	client    HistoryFetcher
	store     Store
	tiers     []int
	itemPacer ratelimit.Pacer
	logger    logger.Logger

	// OnItem, when set, is called after every item with its per-tier results.
	OnItem func(results []ItemResult, done, total int)
}

// New creates a Syncer over tiers. itemPacer runs between items and may be nil.
func New(client HistoryFetcher, st Store, tiers []int, itemPacer ratelimit.Pacer, log logger.Logger) *Syncer {
	if len(tiers) == 0 {
		tiers = []int{0}
	}
	return &Syncer{
		client:    client,
		store:     st,
		tiers:     tiers,
		itemPacer: itemPacer,
		logger:    logger.OrGlobal(log).WithField("stage", "sync"),
	}
}

// SyncItem fetches both series of one item and tier concurrently, then
// upserts every history point. Collections are created only for series
// that returned points.
func (s *Syncer) SyncItem(ctx context.Context, hashedID string, tier int) (*ItemResult, error) {
	histories := make([]*models.MarketHistory, len(models.AllSeries))

	g, gctx := errgroup.WithContext(ctx)
	for i, series := range models.AllSeries {
		i, series := i, series
		g.Go(func() error {
			h, err := s.client.MarketHistory(gctx, hashedID, tier, series)
			if err != nil {
				return fmt.Errorf("%s history: %w", series, err)
			}
			histories[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ItemResult{ItemID: hashedID, Tier: tier}
	for i, series := range models.AllSeries {
		var points []models.HistoryPoint
		if histories[i] != nil {
			points = histories[i].HistoryData
		}

		sr := SeriesResult{Series: series, Points: len(points)}
		if len(points) > 0 {
			sr.Collection = CollectionName(hashedID, tier, series)
			if err := s.store.EnsureCollection(ctx, sr.Collection); err != nil {
				return nil, err
			}
			for _, point := range points {
				inserted, err := s.store.UpsertPoint(ctx, sr.Collection, point)
				if err != nil {
					return nil, err
				}
				if inserted {
					sr.Inserted++
				}
			}
		}

		result.Series = append(result.Series, sr)
		result.Inserted += sr.Inserted
	}
	return result, nil
}

// Run syncs every stored item over every tier, one item at a time
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	items, err := s.store.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	s.logger.InfoWithFields("Syncing market history", map[string]interface{}{
		"items": len(items),
		"tiers": s.tiers,
	})

	result := &Result{}
	tasks := make([]pipeline.Task, 0, len(items))
	for i, doc := range items {
		i, doc := i, doc
		tasks = append(tasks, pipeline.Task{
			Name: doc.ID,
			Run: func(ctx context.Context) error {
				var perTier []ItemResult
				for _, tier := range s.tiers {
					ir, err := s.SyncItem(ctx, doc.ID, tier)
					if err != nil {
						return fmt.Errorf("tier %d: %w", tier, err)
					}
					ir.Name = doc.Item.Name
					perTier = append(perTier, *ir)

					for _, sr := range ir.Series {
						result.Points += sr.Points
					}
					result.Inserted += ir.Inserted

					s.logger.DebugWithFields("Synced item", map[string]interface{}{
						"item":     doc.ID,
						"name":     doc.Item.Name,
						"tier":     tier,
						"inserted": ir.Inserted,
					})
				}
				result.Items++
				if s.OnItem != nil {
					s.OnItem(perTier, i+1, len(items))
				}
				return nil
			},
		})
	}

	runner := pipeline.NewRunner("sync", s.itemPacer, s.logger)
	if _, err := runner.Run(ctx, tasks); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	result.Collections, err = s.store.Collections(ctx, store.HistorySuffix)
	if err != nil {
		return result, fmt.Errorf("list collections: %w", err)
	}

	sample, more := result.Sample()
	s.logger.InfoWithFields("Market history collections", map[string]interface{}{
		"count":  len(result.Collections),
		"sample": sample,
		"more":   more,
	})

	result.Duration = time.Since(start)
	return result, nil
}
