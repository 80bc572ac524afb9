// Package mongostore keeps items and market history in MongoDB: one items
// collection keyed by hashed_id and one collection per item, tier and
// series keyed by date.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/slug"
	"idledata/pkg/store"
)

const duplicateKeyCode = 11000

// Store is a MongoDB-backed store.Store
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	items  *mongo.Collection
	logger logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and checks the connection
func Open(ctx context.Context, uri, database, itemsCollection string, log logger.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Storage("connect to mongodb", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Storage("ping mongodb", err)
	}

	l := logger.OrGlobal(log).WithFields(map[string]interface{}{
		"store":    "mongo",
		"database": database,
	})
	l.Debug("Connected to MongoDB")

	db := client.Database(database)
	return &Store{
		client: client,
		db:     db,
		items:  db.Collection(itemsCollection),
		logger: l,
	}, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toBSON(doc store.ItemDocument) (bson.D, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.D
	if err := bson.UnmarshalExtJSON(data, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromBSON(raw bson.Raw) (store.ItemDocument, error) {
	var doc store.ItemDocument
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(data, &doc)
	return doc, err
}

// ClearItems deletes every item document
func (s *Store) ClearItems(ctx context.Context) (int64, error) {
	res, err := s.items.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, apperrors.Storage("clear items", err)
	}
	return res.DeletedCount, nil
}

// InsertItems runs one unordered insertMany. When every write error is a
// duplicate key the error is a duplicate_key error; anything else is a
// storage error.
func (s *Store) InsertItems(ctx context.Context, docs []store.ItemDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batch := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		d, err := toBSON(doc)
		if err != nil {
			return 0, apperrors.Parsing("encode item "+doc.ID, err)
		}
		batch = append(batch, d)
	}

	_, err := s.items.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(docs), nil
	}

	var bulkErr mongo.BulkWriteException
	if !mongo.IsDuplicateKeyError(err) || !apperrors.As(err, &bulkErr) {
		return 0, apperrors.Storage("insert items", err)
	}
	for _, we := range bulkErr.WriteErrors {
		if we.Code != duplicateKeyCode {
			return len(docs) - len(bulkErr.WriteErrors), apperrors.Storage("insert items", err)
		}
	}
	rejected := len(bulkErr.WriteErrors)
	return len(docs) - rejected, apperrors.DuplicateKey(rejected, err)
}

// Items returns every item ordered by _id
func (s *Store) Items(ctx context.Context) ([]store.ItemDocument, error) {
	cursor, err := s.items.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperrors.Storage("find items", err)
	}
	defer cursor.Close(ctx)

	var docs []store.ItemDocument
	for cursor.Next(ctx) {
		doc, err := fromBSON(cursor.Current)
		if err != nil {
			return nil, apperrors.Parsing("decode item", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperrors.Storage("iterate items", err)
	}
	return docs, nil
}

// SampleItem returns any one item, or nil when the collection is empty
func (s *Store) SampleItem(ctx context.Context) (*store.ItemDocument, error) {
	raw, err := s.items.FindOne(ctx, bson.D{}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("find sample item", err)
	}
	doc, err := fromBSON(raw)
	if err != nil {
		return nil, apperrors.Parsing("decode item", err)
	}
	return &doc, nil
}

// CountItems counts the item documents
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	n, err := s.items.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, apperrors.Storage("count items", err)
	}
	return n, nil
}

// SlugReport counts distinct slugs and groups the ones shared by several items
func (s *Store) SlugReport(ctx context.Context) (*store.SlugReport, error) {
	distinct, err := s.items.Distinct(ctx, "slug", bson.D{})
	if err != nil {
		return nil, apperrors.Storage("distinct slugs", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$slug"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "names", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := s.items.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.Storage("aggregate slugs", err)
	}
	var groups []slug.Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, apperrors.Storage("read slug groups", err)
	}

	return &store.SlugReport{Distinct: len(distinct), Collisions: groups}, nil
}

// EnsureCollection creates the collection when it is not listed yet
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return apperrors.Storage("list collections", err)
	}
	if len(names) > 0 {
		return nil
	}
	if err := s.db.CreateCollection(ctx, name); err != nil {
		return apperrors.Storage("create collection "+name, err)
	}
	s.logger.DebugWithFields("Created collection", map[string]interface{}{"collection": name})
	return nil
}

// UpsertPoint sets the fields of the document with point's date
func (s *Store) UpsertPoint(ctx context.Context, collection string, point models.HistoryPoint) (bool, error) {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "date", Value: point.Date}},
		bson.D{{Key: "$set", Value: point}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, apperrors.Storage("upsert "+collection, err)
	}
	return res.UpsertedCount > 0, nil
}

// Points returns the documents of a history collection ordered by date
func (s *Store) Points(ctx context.Context, collection string) ([]models.HistoryPoint, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, apperrors.Storage("find "+collection, err)
	}
	var points []models.HistoryPoint
	if err := cursor.All(ctx, &points); err != nil {
		return nil, apperrors.Storage("read "+collection, err)
	}
	return points, nil
}

// Collections lists the database's collections ending in suffix
func (s *Store) Collections(ctx context.Context, suffix string) ([]string, error) {
	filter := bson.D{{Key: "name", Value: bson.D{
		{Key: "$regex", Value: fmt.Sprintf("%s$", regexp.QuoteMeta(suffix))},
	}}}
	names, err := s.db.ListCollectionNames(ctx, filter)
	if err != nil {
		return nil, apperrors.Storage("list collections", err)
	}
	sort.Strings(names)
	return names, nil
}
