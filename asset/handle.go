package asset

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
)

type lifetimeKind uint8

const (
	lifetimeCreated lifetimeKind = iota
	lifetimeCloned
	lifetimeDropped
)

type lifetimeEvent struct {
	id   Id
	kind lifetimeKind
}

// lifetimeQueue collects handle events from any goroutine until the store drains them.
type lifetimeQueue struct {
	mu     sync.Mutex
	events []lifetimeEvent
}

func (q *lifetimeQueue) push(id Id, kind lifetimeKind) {
	q.mu.Lock()
	q.events = append(q.events, lifetimeEvent{id: id, kind: kind})
	q.mu.Unlock()
}

func (q *lifetimeQueue) drain(dst []lifetimeEvent) []lifetimeEvent {
	q.mu.Lock()
	dst = append(dst, q.events...)
	clear(q.events)
	q.events = q.events[:0]
	q.mu.Unlock()
	return dst
}

// handleState is what the cleanup sees; it must not reference the Handle itself.
type handleState struct {
	id      Id
	queue   *lifetimeQueue
	dropped atomic.Bool
}

func (s *handleState) drop() bool {
	if s.queue == nil || !s.dropped.CompareAndSwap(false, true) {
		return false
	}
	s.queue.push(s.id, lifetimeDropped)
	return true
}

// Handle is a counted reference to an asset of type A. Every handle must eventually be
// dropped, explicitly with Drop or implicitly when the garbage collector reclaims it.
// The asset is removed from its store once no handle to it remains.
type Handle[A any] struct {
	path    Path
	state   *handleState
	cleanup runtime.Cleanup
}

// UntypedHandle is implemented by every *Handle[A].
type UntypedHandle interface {
	Id() Id
	Path() Path
	Type() reflect.Type
}

func newHandle[A any](id Id, p Path, queue *lifetimeQueue) *Handle[A] {
	h := &Handle[A]{
		path:  p,
		state: &handleState{id: id, queue: queue},
	}
	if queue != nil {
		queue.push(id, lifetimeCreated)
		h.cleanup = runtime.AddCleanup(h, func(s *handleState) { s.drop() }, h.state)
	}
	return h
}

// Id returns the asset id
func (h *Handle[A]) Id() Id {
	return h.state.id
}

// Path returns the path the asset was loaded from; runtime assets have an empty path.
func (h *Handle[A]) Path() Path {
	return h.path
}

// Type returns the asset type
func (h *Handle[A]) Type() reflect.Type {
	return reflect.TypeFor[A]()
}

// Clone returns a new handle to the same asset
func (h *Handle[A]) Clone() *Handle[A] {
	clone := &Handle[A]{
		path:  h.path,
		state: &handleState{id: h.state.id, queue: h.state.queue},
	}
	if queue := h.state.queue; queue != nil {
		queue.push(clone.state.id, lifetimeCloned)
		clone.cleanup = runtime.AddCleanup(clone, func(s *handleState) { s.drop() }, clone.state)
	}
	return clone
}

// Drop releases the handle. Dropping twice has no effect.
func (h *Handle[A]) Drop() {
	if h.state.drop() {
		h.cleanup.Stop()
	}
}

// Dropped reports whether Drop was called
func (h *Handle[A]) Dropped() bool {
	return h.state.dropped.Load()
}
