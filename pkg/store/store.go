package store

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/goccy/go-json"
	"idledata/pkg/models"
	"idledata/pkg/slug"
)

// HistorySuffix ends the name of every market history collection
const HistorySuffix = "_history_data"

// ItemDocument is the persisted form of an item. ID is the hashed_id and
// is unique within the items collection.
type ItemDocument struct {
	ID   string
	Slug string
	Item models.Item
}

// NewItemDocument derives the key and slug of item
func NewItemDocument(item models.Item) ItemDocument {
	return ItemDocument{
		ID:   item.HashedID,
		Slug: slug.Slugify(item.Name),
		Item: item,
	}
}

// MarshalJSON writes the item's fields followed by _id and slug
func (d ItemDocument) MarshalJSON() ([]byte, error) {
	item := d.Item
	if _, ok := item.Extra["_id"]; ok {
		item.Extra = maps.Clone(item.Extra)
	} else if _, ok := item.Extra["slug"]; ok {
		item.Extra = maps.Clone(item.Extra)
	}
	item.RemoveExtra("_id", "slug")

	encoded, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	id, err := json.Marshal(d.ID)
	if err != nil {
		return nil, err
	}
	sl, err := json.Marshal(d.Slug)
	if err != nil {
		return nil, err
	}

	out := append([]byte(nil), encoded[:len(encoded)-1]...)
	if len(encoded) > 2 {
		out = append(out, ',')
	}
	out = append(out, `"_id":`...)
	out = append(out, id...)
	out = append(out, `,"slug":`...)
	out = append(out, sl...)
	return append(out, '}'), nil
}

// UnmarshalJSON reverses MarshalJSON
func (d *ItemDocument) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID   *string `json:"_id"`
		Slug *string `json:"slug"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("document keys: %w", err)
	}

	*d = ItemDocument{}
	if fields.ID != nil {
		d.ID = *fields.ID
	}
	if fields.Slug != nil {
		d.Slug = *fields.Slug
	}
	if err := json.Unmarshal(data, &d.Item); err != nil {
		return err
	}
	d.Item.RemoveExtra("_id", "slug")
	return nil
}

// SlugReport summarises slug uniqueness across the persisted items
type SlugReport struct {
	Distinct   int
	Collisions []slug.Group
}

// ItemStore holds the items collection
type ItemStore interface {
	// ClearItems removes every item and returns how many were removed
	ClearItems(ctx context.Context) (int64, error)
	// InsertItems inserts docs without stopping at the first failure. When
	// some documents already exist it returns the number inserted together
	// with a duplicate_key error counting the rejected ones.
	InsertItems(ctx context.Context, docs []ItemDocument) (int, error)
	Items(ctx context.Context) ([]ItemDocument, error)
	CountItems(ctx context.Context) (int64, error)
	SampleItem(ctx context.Context) (*ItemDocument, error)
	SlugReport(ctx context.Context) (*SlugReport, error)
}

// HistoryStore holds the dynamically named market history collections
type HistoryStore interface {
	// EnsureCollection creates the collection when it does not exist yet
	EnsureCollection(ctx context.Context, name string) error
	// UpsertPoint writes point keyed by its date and reports whether it was new
	UpsertPoint(ctx context.Context, collection string, point models.HistoryPoint) (bool, error)
	Points(ctx context.Context, collection string) ([]models.HistoryPoint, error)
	// Collections lists collection names ending in suffix, sorted
	Collections(ctx context.Context, suffix string) ([]string, error)
}

// Store is a complete backend
type Store interface {
	ItemStore
	HistoryStore
	Close() error
}

// IsHistoryCollection reports whether name is a market history collection
func IsHistoryCollection(name string) bool {
	return strings.HasSuffix(name, HistorySuffix)
}
