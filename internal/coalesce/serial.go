// Package coalesce turns the unordered multi-part arrival stream into
// per-track serialized state machines. Events for one track ID are
// buffered on that ID's holder and drained by at most one goroutine at
// a time; different IDs run in parallel.
package coalesce

import "sync"

// Handler processes a drained batch of events against the holder's
// data. It is called with the data lock held, so a handler sees a
// consistent snapshot and may mutate freely.
type Handler[T, E any] interface {
	Process(data *T, events []E)
}

// Holder pairs one track's mutable data with its pending event buffer.
// dataMu is held across a whole handler activation; stateMu only guards
// the short buffer/running critical sections.
type Holder[T, E any] struct {
	dataMu sync.Mutex
	data   *T

	stateMu sync.Mutex
	running bool
	events  []E
}

func NewHolder[T, E any](data *T) *Holder[T, E] {
	return &Holder[T, E]{data: data}
}

// Data locks and returns the holder's data. Intended for tests and
// inspection outside an activation.
func (h *Holder[T, E]) Data() (*T, func()) {
	h.dataMu.Lock()
	return h.data, h.dataMu.Unlock
}

// SerialPool dispatches events to holders, guaranteeing at most one
// in-flight activation per holder.
type SerialPool[T, E any] struct {
	handler Handler[T, E]
}

func NewSerialPool[T, E any](h Handler[T, E]) *SerialPool[T, E] {
	return &SerialPool[T, E]{handler: h}
}

// Dispatch appends event to the holder's buffer and, if no drain is
// running for it, starts one.
func (p *SerialPool[T, E]) Dispatch(h *Holder[T, E], event E) {
	h.stateMu.Lock()
	h.events = append(h.events, event)
	if !h.running {
		h.running = true
		go p.drain(h)
	}
	h.stateMu.Unlock()
}

// drain repeatedly takes the full buffer and processes it. It re-checks
// the buffer under stateMu before exiting so an event dispatched during
// processing is never stranded.
func (p *SerialPool[T, E]) drain(h *Holder[T, E]) {
	for {
		h.stateMu.Lock()
		if len(h.events) == 0 {
			h.running = false
			h.stateMu.Unlock()
			return
		}
		batch := h.events
		h.events = nil
		h.stateMu.Unlock()

		h.dataMu.Lock()
		p.handler.Process(h.data, batch)
		h.dataMu.Unlock()
	}
}
