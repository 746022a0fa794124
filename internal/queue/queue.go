// Package queue provides the unbounded blocking queues and delay queues
// shared by the worker pipelines.
package queue

import (
	"sync/atomic"
)

// Queue is an unbounded FIFO safe for any number of concurrent producers
// and consumers. Push never blocks on consumers; items are buffered in
// memory until received from Out.
type Queue[T any] struct {
	in   chan T
	out  chan T
	size atomic.Int64
}

// New creates a queue and starts its pump goroutine.
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

func (q *Queue[T]) pump() {
	var buf []T
	for {
		if len(buf) == 0 {
			v, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, v)
		}
		select {
		case v, ok := <-q.in:
			if !ok {
				for _, pending := range buf {
					q.out <- pending
				}
				close(q.out)
				return
			}
			buf = append(buf, v)
		case q.out <- buf[0]:
			buf[0] = *new(T)
			buf = buf[1:]
			q.size.Add(-1)
		}
	}
}

// Push enqueues v. Push after Close panics.
func (q *Queue[T]) Push(v T) {
	q.size.Add(1)
	q.in <- v
}

// Out returns the receive side. It is closed after Close once all
// buffered items have been delivered.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// TryPop receives one item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v, ok := <-q.out:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// DrainUpTo collects up to max items without blocking; if none are
// immediately available it blocks for a single item or a shutdown value
// on stop. Returns ok=false once shutdown is requested or the queue is
// closed.
func (q *Queue[T]) DrainUpTo(max int, stop <-chan int64) ([]T, bool) {
	items := make([]T, 0, max)
	for len(items) < max {
		v, ok := q.TryPop()
		if !ok {
			break
		}
		items = append(items, v)
	}
	if len(items) > 0 {
		return items, true
	}

	for {
		select {
		case v, ok := <-q.out:
			if !ok {
				return nil, false
			}
			return []T{v}, true
		case n := <-stop:
			if n == 100 {
				return nil, false
			}
		}
	}
}

// Len reports the approximate number of undelivered items.
func (q *Queue[T]) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close stops accepting pushes. Buffered items remain receivable; Out is
// closed after the last one is delivered.
func (q *Queue[T]) Close() {
	close(q.in)
}
