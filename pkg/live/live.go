// Package live turns docstore queries and subscriptions into typed results
// with a single relaxed-query fallback.
//
// A Plan names a primary query (typically filtered and ordered, so it may need
// a composite index) and a fallback query the backend can always serve. When
// the primary cannot be opened, or later ends with an error, the feed logs,
// counts the fallback and re-subscribes once with the fallback query. Every
// fallback snapshot is passed through Reshape so the caller sees the same
// filtering and ordering it asked for. A failing fallback ends the feed.
//
//	feed, err := live.Listen(ctx, store, live.Plan[models.Comment]{
//	    Name:     "comments.byProduct",
//	    Primary:  byProduct.OrderBy("createdAt", docstore.Desc),
//	    Fallback: byProduct,
//	    Decode:   decodeComment,
//	    Reshape:  newestFirst,
//	})
//	defer feed.Close()
//	for comments := range feed.Updates() { ... }
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/metrics"
)

// Plan describes a live query and its fallback.
type Plan[T any] struct {
	// Name labels logs and the fallback metric.
	Name     string
	Primary  docstore.Query
	Fallback docstore.Query
	// Decode turns one document into T. Documents it rejects are skipped.
	Decode func(docstore.Document) (T, error)
	// Reshape is applied to fallback snapshots only. Nil leaves them as is.
	Reshape func([]T) []T
}

// Feed is a running live query. Updates delivers the newest full result set;
// a slow reader never blocks the backend and only sees the latest snapshot.
type Feed[T any] struct {
	plan   Plan[T]
	store  docstore.Store
	cancel context.CancelFunc
	ch     chan []T
	done   chan struct{}

	mu       sync.Mutex
	err      error
	fellBack bool
}

// Listen opens plan.Primary, falling back to plan.Fallback when the primary
// cannot be opened. The feed runs until Close is called or ctx is done.
func Listen[T any](ctx context.Context, store docstore.Store, plan Plan[T]) (*Feed[T], error) {
	fctx, cancel := context.WithCancel(ctx)
	f := &Feed[T]{
		plan:   plan,
		store:  store,
		cancel: cancel,
		ch:     make(chan []T, 1),
		done:   make(chan struct{}),
	}

	sub, err := store.Watch(fctx, plan.Primary)
	if err != nil {
		if isCancel(err) {
			cancel()
			return nil, err
		}
		sub, err = f.fallBack(fctx, err)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	metrics.LiveSubscriptions.Inc()
	go f.run(fctx, sub)
	return f, nil
}

// Once runs the plan as a one-shot read: plan.Primary, or plan.Fallback
// reshaped when the primary fails for any reason other than ctx ending. The
// result is never nil. fellBack reports which query answered.
func Once[T any](ctx context.Context, store docstore.Store, plan Plan[T]) (items []T, fellBack bool, err error) {
	docs, err := store.Find(ctx, plan.Primary)
	if err != nil {
		if isCancel(err) {
			return nil, false, err
		}
		logger.WithCtx(ctx).Warn("live: primary query failed, using fallback",
			"feed", plan.Name, "query", plan.Primary.String(), "error", err)
		metrics.RecordFallback(plan.Name)

		docs, err = store.Find(ctx, plan.Fallback)
		if err != nil {
			logger.WithCtx(ctx).Error("live: fallback query failed",
				"feed", plan.Name, "query", plan.Fallback.String(), "error", err)
			return nil, true, err
		}
		fellBack = true
	}

	items = decodeAll(ctx, plan, docs)
	if fellBack && plan.Reshape != nil {
		items = plan.Reshape(items)
	}
	return items, fellBack, nil
}

// Updates returns the snapshot channel. It is closed when the feed ends.
func (f *Feed[T]) Updates() <-chan []T { return f.ch }

// Done is closed when the feed has ended.
func (f *Feed[T]) Done() <-chan struct{} { return f.done }

// Err reports why the feed ended: nil when it was closed or its context
// ended, otherwise the failure that stopped the fallback.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// FellBack reports whether the feed is serving the fallback query.
func (f *Feed[T]) FellBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fellBack
}

// Close stops the feed and waits for its goroutine to exit.
func (f *Feed[T]) Close() {
	f.cancel()
	<-f.done
}

// fallBack opens the relaxed query after cause ended (or prevented) the
// primary.
func (f *Feed[T]) fallBack(ctx context.Context, cause error) (*docstore.Subscription, error) {
	logger.WithCtx(ctx).Warn("live: primary query failed, using fallback",
		"feed", f.plan.Name, "query", f.plan.Primary.String(), "error", cause)
	metrics.RecordFallback(f.plan.Name)

	sub, err := f.store.Watch(ctx, f.plan.Fallback)
	if err != nil {
		logger.WithCtx(ctx).Error("live: fallback query failed",
			"feed", f.plan.Name, "query", f.plan.Fallback.String(), "error", err)
		return nil, err
	}
	f.mu.Lock()
	f.fellBack = true
	f.mu.Unlock()
	return sub, nil
}

func (f *Feed[T]) run(ctx context.Context, sub *docstore.Subscription) {
	defer func() {
		sub.Close()
		metrics.LiveSubscriptions.Dec()
		close(f.ch)
		close(f.done)
	}()

	for {
		select {
		case <-ctx.Done():
			f.end(nil)
			return
		case docs, ok := <-sub.Snapshots():
			if ok {
				f.deliver(ctx, docs)
				continue
			}
			err := sub.Err()
			if err == nil || isCancel(err) {
				f.end(nil)
				return
			}
			if f.FellBack() {
				logger.WithCtx(ctx).Error("live: fallback feed ended", "feed", f.plan.Name, "error", err)
				f.end(err)
				return
			}
			next, ferr := f.fallBack(ctx, err)
			if ferr != nil {
				f.end(ferr)
				return
			}
			sub = next
		}
	}
}

func decodeAll[T any](ctx context.Context, plan Plan[T], docs []docstore.Document) []T {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := plan.Decode(d)
		if err != nil {
			logger.WithCtx(ctx).Warn("live: skipping malformed document",
				"feed", plan.Name, "id", d.ID, "error", err)
			continue
		}
		items = append(items, v)
	}
	return items
}

func (f *Feed[T]) deliver(ctx context.Context, docs []docstore.Document) {
	items := decodeAll(ctx, f.plan, docs)
	if f.FellBack() && f.plan.Reshape != nil {
		items = f.plan.Reshape(items)
	}

	select {
	case <-f.ch:
	default:
	}
	f.ch <- items
}

func (f *Feed[T]) end(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
