package docstore

import (
	"sync"
)

// Subscription is a live query. Snapshots delivers the full result set after
// every change; a slow reader only ever sees the newest snapshot. The channel
// is closed when the subscription ends, after which Err reports why (nil when
// the caller closed it).
type Subscription struct {
	ch   chan []Document
	done chan struct{}
	stop func()

	mu     sync.Mutex
	closed bool
	err    error
}

func newSubscription(stop func()) *Subscription {
	if stop == nil {
		stop = func() {}
	}
	return &Subscription{
		ch:   make(chan []Document, 1),
		done: make(chan struct{}),
		stop: stop,
	}
}

// Snapshots returns the delivery channel.
func (s *Subscription) Snapshots() <-chan []Document { return s.ch }

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the terminal error once the subscription has ended.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.finish(nil)
	s.stop()
}

// push replaces any undelivered snapshot with docs.
func (s *Subscription) push(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- docs
}

// finish ends the subscription with err. Only the first call has effect.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	close(s.done)
}
