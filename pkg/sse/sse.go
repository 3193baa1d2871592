// Package sse streams Server-Sent Events.
//
//	router.Get("/products/live", "products.live", ctx.Wrap(func(c *ctx.Context) {
//	    feed, err := products.ListLive(c.Context())
//	    if err != nil { c.Fail(err); return }
//	    defer feed.Close()
//	    sse.Pipe(sse.New(c.W, c.R), "products", feed.Updates(), 15*time.Second)
//	}))
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Stream represents an active SSE connection to one client.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	closed  bool
}

// New creates an SSE stream and sets the required headers.
// Returns nil if the ResponseWriter does not support flushing.
func New(w http.ResponseWriter, r *http.Request) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}
}

// Send writes a named event with a JSON-encoded data payload.
func (s *Stream) Send(event string, data any) error {
	if s.IsClosed() {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.closed = true
		return fmt.Errorf("sse: write: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment (used as a keepalive heartbeat).
func (s *Stream) Comment(msg string) {
	if s.IsClosed() {
		return
	}
	fmt.Fprintf(s.w, ": %s\n\n", msg)
	s.flusher.Flush()
}

// IsClosed reports whether the client has disconnected.
func (s *Stream) IsClosed() bool {
	if s == nil {
		return true
	}
	select {
	case <-s.r.Context().Done():
		s.closed = true
	default:
	}
	return s.closed
}

// Pipe sends every value received from src as event until src closes or the
// client goes away. A heartbeat comment is written every heartbeat when
// heartbeat > 0. When src closes, a final "end" event is sent.
func Pipe[T any](s *Stream, event string, src <-chan T, heartbeat time.Duration) error {
	if s == nil {
		return nil
	}
	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-s.r.Context().Done():
			return nil
		case <-tick:
			s.Comment("ping")
		case v, ok := <-src:
			if !ok {
				return s.Send("end", struct{}{})
			}
			if err := s.Send(event, v); err != nil {
				return err
			}
		}
	}
}
