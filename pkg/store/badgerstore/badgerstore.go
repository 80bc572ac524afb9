// Package badgerstore keeps items and market history in an embedded Badger
// database. Every collection is a key prefix:
//
//	item:<hashed_id>               item document
//	coll:<collection>              history collection marker
//	hist:<collection>:<date>       history point
//
// Values are JSON.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/slug"
	"idledata/pkg/store"
)

const (
	itemPrefix       = "item:"
	collectionPrefix = "coll:"
	historyPrefix    = "hist:"
)

// Store is a Badger-backed store.Store
type Store struct {
	db     *badger.DB
	logger logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path. An empty path keeps everything in memory.
func Open(path string, log logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.Storage("open badger db", err)
	}

	l := logger.OrGlobal(log).WithField("store", "badger")
	l.DebugWithFields("Opened store", map[string]interface{}{
		"path":      path,
		"in_memory": path == "",
	})
	return &Store{db: db, logger: l}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func itemKey(id string) []byte {
	return []byte(itemPrefix + id)
}

func historyKey(collection, date string) []byte {
	return []byte(historyPrefix + collection + ":" + date)
}

// ClearItems drops every item
func (s *Store) ClearItems(ctx context.Context) (int64, error) {
	count, err := s.CountItems(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix([]byte(itemPrefix)); err != nil {
		return 0, apperrors.Storage("clear items", err)
	}
	return count, nil
}

// InsertItems inserts every document whose key is not taken yet. Documents
// repeating a key, stored or earlier in docs, are counted as duplicates.
func (s *Store) InsertItems(ctx context.Context, docs []store.ItemDocument) (int, error) {
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	seen := make(map[string]struct{}, len(docs))
	inserted, duplicates := 0, 0

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if _, ok := seen[doc.ID]; ok {
			duplicates++
			continue
		}

		key := itemKey(doc.ID)
		_, err := txn.Get(key)
		if err == nil {
			duplicates++
			continue
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return inserted, apperrors.Storage("lookup item "+doc.ID, err)
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return inserted, apperrors.Parsing("encode item "+doc.ID, err)
		}

		err = txn.Set(key, data)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return inserted, apperrors.Storage("commit items", err)
			}
			txn = s.db.NewTransaction(true)
			err = txn.Set(key, data)
		}
		if err != nil {
			return inserted, apperrors.Storage("insert item "+doc.ID, err)
		}

		seen[doc.ID] = struct{}{}
		inserted++
	}

	if err := txn.Commit(); err != nil {
		return 0, apperrors.Storage("commit items", err)
	}

	if duplicates > 0 {
		return inserted, apperrors.DuplicateKey(duplicates,
			fmt.Errorf("%d of %d documents have an existing _id", duplicates, len(docs)))
	}
	return inserted, nil
}

func (s *Store) eachItem(ctx context.Context, fn func(store.ItemDocument) bool) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(itemPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc store.ItemDocument
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if !fn(doc) {
				return nil
			}
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return apperrors.Storage("read items", err)
	}
	return err
}

// Items returns every item ordered by key
func (s *Store) Items(ctx context.Context) ([]store.ItemDocument, error) {
	var docs []store.ItemDocument
	err := s.eachItem(ctx, func(doc store.ItemDocument) bool {
		docs = append(docs, doc)
		return true
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// SampleItem returns the first item, or nil when there is none
func (s *Store) SampleItem(ctx context.Context) (*store.ItemDocument, error) {
	var sample *store.ItemDocument
	err := s.eachItem(ctx, func(doc store.ItemDocument) bool {
		sample = &doc
		return false
	})
	return sample, err
}

// CountItems counts the stored items without decoding them
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	return s.countPrefix(ctx, []byte(itemPrefix))
}

func (s *Store) countPrefix(ctx context.Context, prefix []byte) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Storage("count "+string(prefix), err)
	}
	return count, nil
}

// SlugReport groups the stored slugs. Collisions are sorted by slug.
func (s *Store) SlugReport(ctx context.Context) (*store.SlugReport, error) {
	groups := make(map[string]*slug.Group)
	err := s.eachItem(ctx, func(doc store.ItemDocument) bool {
		g, ok := groups[doc.Slug]
		if !ok {
			g = &slug.Group{Slug: doc.Slug}
			groups[doc.Slug] = g
		}
		g.Count++
		g.Names = append(g.Names, doc.Item.Name)
		return true
	})
	if err != nil {
		return nil, err
	}

	report := &store.SlugReport{Distinct: len(groups)}
	for _, g := range groups {
		if g.Count > 1 {
			report.Collisions = append(report.Collisions, *g)
		}
	}
	sort.Slice(report.Collisions, func(i, j int) bool {
		return report.Collisions[i].Slug < report.Collisions[j].Slug
	})
	return report, nil
}

// EnsureCollection records the collection marker when it is missing
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(collectionPrefix + name)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		s.logger.DebugWithFields("Created collection", map[string]interface{}{"collection": name})
		return txn.Set(key, nil)
	})
	if err != nil {
		return apperrors.Storage("ensure collection "+name, err)
	}
	return nil
}

// UpsertPoint replaces the point stored for point.Date
func (s *Store) UpsertPoint(ctx context.Context, collection string, point models.HistoryPoint) (bool, error) {
	data, err := json.Marshal(point)
	if err != nil {
		return false, apperrors.Parsing("encode history point", err)
	}

	inserted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		key := historyKey(collection, point.Date)
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			inserted = true
		case err != nil:
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return false, apperrors.Storage("upsert "+collection, err)
	}
	return inserted, nil
}

// Points returns the points of a collection ordered by date
func (s *Store) Points(ctx context.Context, collection string) ([]models.HistoryPoint, error) {
	var points []models.HistoryPoint
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(historyPrefix + collection + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var point models.HistoryPoint
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &point)
			})
			if err != nil {
				return err
			}
			points = append(points, point)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage("read "+collection, err)
	}
	return points, nil
}

// Collections lists the collection markers whose name ends in suffix
func (s *Store) Collections(ctx context.Context, suffix string) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(collectionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := strings.TrimPrefix(string(it.Item().Key()), collectionPrefix)
			if strings.HasSuffix(name, suffix) {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage("list collections", err)
	}
	return names, nil
}
