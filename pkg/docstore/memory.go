package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Memory is an in-process Store. Documents are held as BSON so decoding
// behaves exactly as it does against MongoDB.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	strict   bool
	colls    map[string]*memCollection
	indexes  []Index
	watchers map[*memWatcher]struct{}
	faults   map[string][]error
}

type memCollection struct {
	docs  map[string]bson.Raw
	order []string
}

type memWatcher struct {
	q   Query
	sub *Subscription
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the clock used for ServerTimestamp.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithStrictIndexes makes queries that combine filters and sort keys over
// several fields fail with ErrIndexRequired unless a matching index was
// created with EnsureIndexes.
func WithStrictIndexes() MemoryOption {
	return func(m *Memory) { m.strict = true }
}

// NewMemory returns an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:      time.Now,
		colls:    map[string]*memCollection{},
		watchers: map[*memWatcher]struct{}{},
		faults:   map[string][]error{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ── Fault injection ──────────────────────────────────────────────────────────

// FailNext makes the next call of op ("add", "set", "get", "update",
// "delete", "find", "watch", "ping") on collection return err. An empty
// collection matches any.
func (m *Memory) FailNext(op, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + collection
	m.faults[key] = append(m.faults[key], err)
}

// BreakWatches ends every live query on collection with err.
func (m *Memory) BreakWatches(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w := range m.watchers {
		if w.q.Collection == collection {
			delete(m.watchers, w)
			w.sub.finish(err)
		}
	}
}

// Watchers returns the number of live queries on collection.
func (m *Memory) Watchers(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for w := range m.watchers {
		if w.q.Collection == collection {
			n++
		}
	}
	return n
}

// fault pops an injected error. Callers hold m.mu.
func (m *Memory) fault(op, collection string) error {
	for _, key := range []string{op + ":" + collection, op + ":"} {
		if errs := m.faults[key]; len(errs) > 0 {
			m.faults[key] = errs[1:]
			return errs[0]
		}
	}
	return nil
}

// ── Write ────────────────────────────────────────────────────────────────────

func (m *Memory) Add(ctx context.Context, collection string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("add", collection); err != nil {
		return "", err
	}
	id := newID()
	raw, err := m.encode(id, data)
	if err != nil {
		return "", err
	}
	if err := m.put(collection, id, raw); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("set", collection); err != nil {
		return err
	}
	raw, err := m.encode(id, data)
	if err != nil {
		return err
	}
	return m.put(collection, id, raw)
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("update", collection); err != nil {
		return err
	}
	c := m.colls[collection]
	if c == nil || c.docs[id] == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	var current bson.D
	if err := bson.Unmarshal(c.docs[id], &current); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	resolved, _ := resolveFields(fields, m.now())
	for key, val := range resolved {
		replaced := false
		for i := range current {
			if current[i].Key == key {
				current[i].Value = val
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, bson.E{Key: key, Value: val})
		}
	}

	raw, err := bson.Marshal(current)
	if err != nil {
		return fmt.Errorf("docstore: encode: %w", err)
	}
	return m.put(collection, id, raw)
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("delete", collection); err != nil {
		return err
	}
	c := m.colls[collection]
	if c == nil || c.docs[id] == nil {
		return nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.notify(collection)
	return nil
}

func (m *Memory) encode(id string, data any) (bson.Raw, error) {
	d, err := toD(id, data, m.now())
	if err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return raw, nil
}

// put stores raw at id after unique-index checks. Callers hold m.mu.
func (m *Memory) put(collection, id string, raw bson.Raw) error {
	if err := m.checkUnique(collection, id, raw); err != nil {
		return err
	}
	c := m.colls[collection]
	if c == nil {
		c = &memCollection{docs: map[string]bson.Raw{}}
		m.colls[collection] = c
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
	m.notify(collection)
	return nil
}

func (m *Memory) checkUnique(collection, id string, raw bson.Raw) error {
	c := m.colls[collection]
	if c == nil {
		return nil
	}
	var incoming bson.M
	if err := bson.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	for _, idx := range m.indexes {
		if !idx.Unique || idx.Collection != collection {
			continue
		}
		for otherID, otherRaw := range c.docs {
			if otherID == id {
				continue
			}
			var other bson.M
			if err := bson.Unmarshal(otherRaw, &other); err != nil {
				continue
			}
			same := true
			for _, k := range idx.Keys {
				if cmp, ok := compareValues(incoming[k.Field], other[k.Field]); !ok || cmp != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s unique index violated by %s", ErrAlreadyExists, collection, id)
			}
		}
	}
	return nil
}

// ── Read ─────────────────────────────────────────────────────────────────────

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("get", collection); err != nil {
		return Document{}, err
	}
	c := m.colls[collection]
	if c == nil || c.docs[id] == nil {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return Document{ID: id, Raw: c.docs[id]}, nil
}

func (m *Memory) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("find", q.Collection); err != nil {
		return nil, err
	}
	if err := m.plan(q); err != nil {
		return nil, err
	}
	return m.evaluate(q), nil
}

// plan rejects queries a strict planner cannot serve. Callers hold m.mu.
func (m *Memory) plan(q Query) error {
	if !m.strict {
		return nil
	}
	eq, rest := q.indexShape()
	if rest == nil {
		return nil
	}
	for _, idx := range m.indexes {
		if idx.Collection == q.Collection && idx.serves(eq, rest) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIndexRequired, q)
}

// evaluate runs q over the current data. Callers hold m.mu.
func (m *Memory) evaluate(q Query) []Document {
	c := m.colls[q.Collection]
	if c == nil {
		return []Document{}
	}
	rows := make([]evaluated, 0, len(c.order))
	for _, id := range c.order {
		raw := c.docs[id]
		var fields bson.M
		if err := bson.Unmarshal(raw, &fields); err != nil {
			continue
		}
		if !matchesAll(fields, q.Filters) {
			continue
		}
		rows = append(rows, evaluated{doc: Document{ID: id, Raw: raw}, fields: fields})
	}
	sortEvaluated(rows, q.Orders)

	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	return out
}

// ── Live queries ─────────────────────────────────────────────────────────────

func (m *Memory) Watch(ctx context.Context, q Query) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault("watch", q.Collection); err != nil {
		return nil, err
	}
	if err := m.plan(q); err != nil {
		return nil, err
	}

	w := &memWatcher{q: q}
	w.sub = newSubscription(func() { m.unwatch(w) })
	m.watchers[w] = struct{}{}
	w.sub.push(m.evaluate(q))

	go func() {
		select {
		case <-ctx.Done():
			m.unwatch(w)
			w.sub.finish(ctx.Err())
		case <-w.sub.Done():
		}
	}()
	return w.sub, nil
}

func (m *Memory) unwatch(w *memWatcher) {
	m.mu.Lock()
	delete(m.watchers, w)
	m.mu.Unlock()
}

// notify pushes fresh snapshots to watchers of collection. Callers hold m.mu.
func (m *Memory) notify(collection string) {
	for w := range m.watchers {
		if w.q.Collection != collection {
			continue
		}
		w.sub.push(m.evaluate(w.q))
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (m *Memory) EnsureIndexes(_ context.Context, indexes ...Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes = append(m.indexes, indexes...)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fault("ping", "")
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w := range m.watchers {
		delete(m.watchers, w)
		w.sub.finish(nil)
	}
	return nil
}
