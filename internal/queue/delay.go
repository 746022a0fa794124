package queue

import (
	"container/heap"
	"sync"
	"time"
)

type delayEntry[T any] struct {
	at time.Time
	v  T
}

type delayHeap[T any] []delayEntry[T]

func (h delayHeap[T]) Len() int            { return len(h) }
func (h delayHeap[T]) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h delayHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayHeap[T]) Push(x interface{}) { *h = append(*h, x.(delayEntry[T])) }
func (h *delayHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// DelayQueue delivers values on Expired after their per-value delay has
// elapsed, soonest first. It runs one timer goroutine regardless of how
// many values are pending.
type DelayQueue[T any] struct {
	mu    sync.Mutex
	items delayHeap[T]
	wake  chan struct{}
	done  chan struct{}
	out   chan T
}

func NewDelay[T any]() *DelayQueue[T] {
	d := &DelayQueue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan T),
	}
	go d.run()
	return d
}

// Insert schedules v for delivery after delay.
func (d *DelayQueue[T]) Insert(v T, delay time.Duration) {
	d.mu.Lock()
	heap.Push(&d.items, delayEntry[T]{at: time.Now().Add(delay), v: v})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Expired returns the channel on which due values are delivered.
func (d *DelayQueue[T]) Expired() <-chan T {
	return d.out
}

// Close stops the timer goroutine. Pending values are dropped.
func (d *DelayQueue[T]) Close() {
	close(d.done)
}

func (d *DelayQueue[T]) run() {
	for {
		d.mu.Lock()
		now := time.Now()
		var ready []T
		for d.items.Len() > 0 && !d.items[0].at.After(now) {
			e := heap.Pop(&d.items).(delayEntry[T])
			ready = append(ready, e.v)
		}
		var timer *time.Timer
		var due <-chan time.Time
		if d.items.Len() > 0 {
			timer = time.NewTimer(d.items[0].at.Sub(now))
			due = timer.C
		}
		d.mu.Unlock()

		for _, v := range ready {
			select {
			case d.out <- v:
			case <-d.done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}

		select {
		case <-due:
		case <-d.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-d.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
