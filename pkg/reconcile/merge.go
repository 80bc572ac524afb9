package reconcile

import (
	"sort"

	"idledata/pkg/models"
)

// Merger folds item batches into one list keyed by hashed_id. The first
// occurrence of an id wins, even when a later copy differs.
type Merger struct {
	seen  map[string]struct{}
	items []models.Item
}

// NewMerger creates an empty merger
func NewMerger() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Add folds items in and returns how many were new
func (m *Merger) Add(items []models.Item) int {
	added := 0
	for _, item := range items {
		if _, ok := m.seen[item.HashedID]; ok {
			continue
		}
		m.seen[item.HashedID] = struct{}{}
		m.items = append(m.items, item)
		added++
	}
	return added
}

// Items returns the merged items in first-seen order
func (m *Merger) Items() []models.Item {
	return m.items
}

// Merge is a one-shot Merger over several batches
func Merge(batches ...[]models.Item) []models.Item {
	m := NewMerger()
	for _, batch := range batches {
		m.Add(batch)
	}
	return m.Items()
}

// TypeCount is one entry of the type frequency ranking
type TypeCount struct {
	Type  string
	Count int
}

// Stats summarises a deduplicated item set
type Stats struct {
	TotalItems int
	Types      []string
	Qualities  []string
	TopTypes   []TypeCount
}

// ComputeStats collects distinct types and qualities in first-seen order
// and ranks types by frequency. Ties keep first-seen order. At most topN
// types are ranked.
func ComputeStats(items []models.Item, topN int) Stats {
	stats := Stats{TotalItems: len(items)}

	typeCounts := make(map[string]int)
	qualities := make(map[string]struct{})
	for _, item := range items {
		if _, ok := typeCounts[item.Type]; !ok {
			stats.Types = append(stats.Types, item.Type)
		}
		typeCounts[item.Type]++

		if _, ok := qualities[item.Quality]; !ok {
			qualities[item.Quality] = struct{}{}
			stats.Qualities = append(stats.Qualities, item.Quality)
		}
	}

	ranking := make([]TypeCount, 0, len(stats.Types))
	for _, t := range stats.Types {
		ranking = append(ranking, TypeCount{Type: t, Count: typeCounts[t]})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Count > ranking[j].Count
	})
	if topN >= 0 && len(ranking) > topN {
		ranking = ranking[:topN]
	}
	stats.TopTypes = ranking

	return stats
}
