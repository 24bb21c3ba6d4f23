// Package events is the in-process publish/subscribe bus. Model hooks and handlers emit, the
// background job enqueuers subscribe.
package events

import (
	"fmt"
	"sync"

	console "waos/internal/utils/logger"
)

var log = console.New("EVENTS")

// Handler receives the payload passed to Emit. Handlers run concurrently.
type Handler func(payload interface{})

// Bus fans events out to their handlers, each on its own goroutine.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]Handler
	running sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]Handler{}}
}

func (b *Bus) On(name string, h Handler) {
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], h)
	b.mu.Unlock()
	log.Debug("Subscribed to %s", name)
}

func (b *Bus) handlers(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.subs[name]...)
}

// Emit never blocks on handlers. A panicking handler is logged and the others still run.
func (b *Bus) Emit(name string, payload interface{}) {
	hs := b.handlers(name)
	if len(hs) == 0 {
		return
	}
	log.Debug("%s -> %d handler(s)", name, len(hs))

	b.running.Add(len(hs))
	for _, h := range hs {
		go b.deliver(name, h, payload)
	}
}

func (b *Bus) deliver(name string, h Handler, payload interface{}) {
	defer b.running.Done()
	defer func() {
		if r := recover(); r != nil {
			_ = log.Error("Handler for %s panicked", fmt.Errorf("%v", r), name)
		}
	}()
	h(payload)
}

// Wait blocks until every delivery started so far has returned.
func (b *Bus) Wait() { b.running.Wait() }

// Reset drops every subscription.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.subs = map[string][]Handler{}
	b.mu.Unlock()
}

var std = NewBus()

// Default returns the bus behind the package level functions.
func Default() *Bus { return std }

func On(name string, h Handler)             { std.On(name, h) }
func Emit(name string, payload interface{}) { std.Emit(name, payload) }
func Wait()                                 { std.Wait() }
func Reset()                                { std.Reset() }
