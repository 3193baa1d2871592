// Package docstore is the document backend: schema-less collections of
// documents addressed by collection and id, with filtered one-shot queries
// and push subscriptions that deliver the full result set on every change.
//
// Two drivers implement Store:
//
//   - Mongo  (production): MongoDB through the official driver. Live queries
//     follow a change stream, or poll on a standalone server.
//   - Memory (tests, local dev): BSON documents kept in process. It can be
//     made to reject queries that need a composite index, the way a hosted
//     query planner does, so fallback paths are testable.
//
// Usage:
//
//	id, err := store.Add(ctx, "comments", docstore.Fields{
//	    "productId": pid, "commentText": text, "createdAt": docstore.ServerTimestamp,
//	})
//	docs, err := store.Find(ctx, docstore.From("products").
//	    Where("stock", docstore.Gt, 0).
//	    OrderBy("stock", docstore.Asc).
//	    OrderBy("createdAt", docstore.Desc))
package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned by Get and Update when the document is absent.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned when a write violates a unique index.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrIndexRequired is returned when the backend refuses to plan a query
	// without a supporting index.
	ErrIndexRequired = errors.New("docstore: query requires an index")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("docstore: backend unavailable")
)

// Store is implemented by every driver.
type Store interface {
	// Add inserts data under a server-assigned id and returns the id.
	Add(ctx context.Context, collection string, data any) (string, error)
	// Set creates or replaces the document at id.
	Set(ctx context.Context, collection, id string, data any) error
	// Get returns the document at id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into the existing document at id or returns
	// ErrNotFound.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes the document at id. Deleting a missing document is not
	// an error.
	Delete(ctx context.Context, collection, id string) error
	// Find runs q once.
	Find(ctx context.Context, q Query) ([]Document, error)
	// Watch runs q and pushes a fresh full result set after every change to
	// the collection until the subscription is closed or ctx is done.
	Watch(ctx context.Context, q Query) (*Subscription, error)
	// EnsureIndexes creates the given indexes if they do not exist.
	EnsureIndexes(ctx context.Context, indexes ...Index) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the driver's resources.
	Close(ctx context.Context) error
}

// Fields is a partial document keyed by field name.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp, used as a value in Fields, is replaced by the backend's
// clock when the write is applied.
var ServerTimestamp any = serverTimestamp{}

// Index describes a (possibly compound, possibly unique) index.
type Index struct {
	Collection string
	Keys       []Order
	Unique     bool
}

// newID returns a fresh document id.
func newID() string {
	return primitive.NewObjectID().Hex()
}

// resolveFields copies f with every ServerTimestamp replaced by now. The
// returned list of stamped keys lets drivers use a native server clock.
func resolveFields(f Fields, now time.Time) (Fields, []string) {
	out := make(Fields, len(f))
	var stamped []string
	for k, v := range f {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
			stamped = append(stamped, k)
			continue
		}
		out[k] = v
	}
	return out, stamped
}

// IsIndexRequired reports whether err means the query needs an index.
func IsIndexRequired(err error) bool { return errors.Is(err, ErrIndexRequired) }
