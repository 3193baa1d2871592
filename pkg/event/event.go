// Package event provides a simple synchronous/async event dispatcher.
//
// The identity service fires auth-state changes through a Dispatcher; the
// package-level functions use Default for code that has no dispatcher of
// its own.
package event

import (
	"sync"
)

// Handler is a function that receives an event payload.
type Handler func(payload any)

type registration struct {
	id int
	h  Handler
}

// Dispatcher routes named events to listeners.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]registration
	wg       sync.WaitGroup
}

// New returns an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: map[string][]registration{}}
}

// Default is the process-wide dispatcher.
var Default = New()

// Listen registers a handler for the given event name and returns a function
// that removes it.
func (d *Dispatcher) Listen(event string, handler Handler) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers[event] = append(d.handlers[event], registration{id: id, h: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			regs := d.handlers[event]
			for i, r := range regs {
				if r.id == id {
					d.handlers[event] = append(regs[:i:i], regs[i+1:]...)
					break
				}
			}
		})
	}
}

func (d *Dispatcher) snapshot(event string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	hs := make([]Handler, len(d.handlers[event]))
	for i, r := range d.handlers[event] {
		hs[i] = r.h
	}
	return hs
}

// Fire dispatches an event synchronously to all registered listeners.
func (d *Dispatcher) Fire(event string, payload any) {
	for _, h := range d.snapshot(event) {
		h(payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently.
// It returns immediately; Wait blocks until those handlers finish.
func (d *Dispatcher) FireAsync(event string, payload any) {
	for _, h := range d.snapshot(event) {
		d.wg.Add(1)
		go func(h Handler) {
			defer d.wg.Done()
			h(payload)
		}(h)
	}
}

// Wait blocks until every handler started by FireAsync has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Flush removes all listeners (useful in tests).
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = map[string][]registration{}
}

// Listen registers handler on Default.
func Listen(event string, handler Handler) func() { return Default.Listen(event, handler) }

// Fire dispatches on Default.
func Fire(event string, payload any) { Default.Fire(event, payload) }

// FireAsync dispatches asynchronously on Default.
func FireAsync(event string, payload any) { Default.FireAsync(event, payload) }
