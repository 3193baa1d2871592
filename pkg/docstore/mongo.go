package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/campusmart/pkg/metrics"
)

// MongoDB server error codes the driver maps onto docstore errors.
const (
	codeNoQueryExecutionPlans = 291
	codeQueryExceededMemory   = 292
	codeBadHint               = 2
	codeChangeStreamsOnlyRS   = 40573
	codeCommandNotSupported   = 115
)

// Mongo is the MongoDB Store.
type Mongo struct {
	db        *mongo.Database
	pollEvery time.Duration
}

// ConnectMongo dials uri, verifies the connection and returns a store over
// database.
func ConnectMongo(ctx context.Context, uri, database string, pollEvery time.Duration) (*Mongo, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", mapMongoErr(err))
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore: ping: %w", mapMongoErr(err))
	}

	return NewMongo(client.Database(database), pollEvery), nil
}

// NewMongo wraps an existing database handle.
func NewMongo(db *mongo.Database, pollEvery time.Duration) *Mongo {
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &Mongo{db: db, pollEvery: pollEvery}
}

// Database exposes the underlying handle (log sink, admin tooling).
func (m *Mongo) Database() *mongo.Database { return m.db }

// ── Write ────────────────────────────────────────────────────────────────────

func (m *Mongo) Add(ctx context.Context, collection string, data any) (string, error) {
	defer metrics.ObserveDocstore("add", time.Now())

	id := newID()
	doc, err := toD(id, data, time.Now())
	if err != nil {
		return "", err
	}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("docstore: add %s: %w", collection, mapMongoErr(err))
	}
	return id, nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, data any) error {
	defer metrics.ObserveDocstore("set", time.Now())

	doc, err := toD(id, data, time.Now())
	if err != nil {
		return err
	}
	_, err = m.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("docstore: set %s/%s: %w", collection, id, mapMongoErr(err))
	}
	return nil
}

// Update applies fields with $set; ServerTimestamp fields use $currentDate so
// the server clock stamps them.
func (m *Mongo) Update(ctx context.Context, collection, id string, fields Fields) error {
	defer metrics.ObserveDocstore("update", time.Now())

	resolved, stamped := resolveFields(fields, time.Now())
	set := bson.M{}
	current := bson.M{}
	for k, v := range resolved {
		set[k] = v
	}
	for _, k := range stamped {
		delete(set, k)
		current[k] = true
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	if len(update) == 0 {
		_, err := m.Get(ctx, collection, id)
		return err
	}

	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("docstore: update %s/%s: %w", collection, id, mapMongoErr(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	defer metrics.ObserveDocstore("delete", time.Now())

	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, mapMongoErr(err))
	}
	return nil
}

// ── Read ─────────────────────────────────────────────────────────────────────

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	defer metrics.ObserveDocstore("get", time.Now())

	raw, err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, mapMongoErr(err))
	}
	return Document{ID: id, Raw: raw}, nil
}

func (m *Mongo) Find(ctx context.Context, q Query) ([]Document, error) {
	defer metrics.ObserveDocstore("find", time.Now())

	opts := options.Find()
	if sort := mongoSort(q.Orders); len(sort) > 0 {
		opts.SetSort(sort)
	}
	cur, err := m.db.Collection(q.Collection).Find(ctx, mongoFilter(q.Filters), opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: find %s: %w", q, mapMongoErr(err))
	}
	defer cur.Close(context.Background())

	docs := []Document{}
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		docs = append(docs, Document{ID: rawID(raw), Raw: raw})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("docstore: find %s: %w", q, mapMongoErr(err))
	}
	return docs, nil
}

func mongoFilter(filters []Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		var op string
		switch f.Op {
		case Eq:
			op = "$eq"
		case Gt:
			op = "$gt"
		case Gte:
			op = "$gte"
		case Lt:
			op = "$lt"
		case Lte:
			op = "$lte"
		default:
			continue
		}
		cond, _ := out[f.Field].(bson.M)
		if cond == nil {
			cond = bson.M{}
		}
		cond[op] = f.Value
		out[f.Field] = cond
	}
	return out
}

func mongoSort(orders []Order) bson.D {
	sort := bson.D{}
	for _, o := range orders {
		sort = append(sort, bson.E{Key: o.Field, Value: int(o.Dir)})
	}
	return sort
}

// ── Live queries ─────────────────────────────────────────────────────────────

// Watch re-runs q on every change-stream event for the collection. Servers
// without change streams (standalone mongod) are polled instead.
func (m *Mongo) Watch(ctx context.Context, q Query) (*Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)

	docs, err := m.Find(wctx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	stream, err := m.db.Collection(q.Collection).Watch(wctx, mongo.Pipeline{})
	if err != nil && !changeStreamsUnsupported(err) {
		cancel()
		return nil, fmt.Errorf("docstore: watch %s: %w", q, mapMongoErr(err))
	}

	sub := newSubscription(cancel)
	sub.push(docs)

	if stream == nil {
		go m.poll(wctx, q, sub, docs)
	} else {
		go m.follow(wctx, q, stream, sub)
	}
	return sub, nil
}

func (m *Mongo) follow(ctx context.Context, q Query, stream *mongo.ChangeStream, sub *Subscription) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		docs, err := m.Find(ctx, q)
		if err != nil {
			sub.finish(err)
			return
		}
		sub.push(docs)
	}
	if ctx.Err() != nil {
		sub.finish(ctx.Err())
		return
	}
	sub.finish(fmt.Errorf("docstore: watch %s: %w", q, mapMongoErr(stream.Err())))
}

func (m *Mongo) poll(ctx context.Context, q Query, sub *Subscription, last []Document) {
	ticker := time.NewTicker(m.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sub.finish(ctx.Err())
			return
		case <-ticker.C:
			docs, err := m.Find(ctx, q)
			if err != nil {
				sub.finish(err)
				return
			}
			if !sameSnapshot(last, docs) {
				sub.push(docs)
				last = docs
			}
		}
	}
}

func sameSnapshot(a, b []Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !bytes.Equal(a[i].Raw, b[i].Raw) {
			return false
		}
	}
	return true
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (m *Mongo) EnsureIndexes(ctx context.Context, indexes ...Index) error {
	byCollection := map[string][]mongo.IndexModel{}
	for _, idx := range indexes {
		byCollection[idx.Collection] = append(byCollection[idx.Collection], mongo.IndexModel{
			Keys:    mongoSort(idx.Keys),
			Options: options.Index().SetUnique(idx.Unique),
		})
	}
	for coll, models := range byCollection {
		if _, err := m.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("docstore: create indexes on %s: %w", coll, mapMongoErr(err))
		}
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.db.Client().Ping(ctx, nil); err != nil {
		return mapMongoErr(err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}

// ── Errors ───────────────────────────────────────────────────────────────────

func mapMongoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorCode(codeNoQueryExecutionPlans) || se.HasErrorCode(codeQueryExceededMemory) || se.HasErrorCode(codeBadHint)) {
		return fmt.Errorf("%w: %w", ErrIndexRequired, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func changeStreamsUnsupported(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) &&
		(se.HasErrorCode(codeChangeStreamsOnlyRS) || se.HasErrorCode(codeCommandNotSupported))
}
