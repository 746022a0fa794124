// Package bus fans judged snapshots out to every consumer: the
// dashboard window, connected websocket clients and the optional Redis
// notifier. Each subscriber gets its own unbounded queue so a slow
// consumer never stalls the pipeline.
package bus

import (
	"log"
	"os"
	"sync"

	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/queue"
)

type SnapshotBus struct {
	mu   sync.RWMutex
	subs map[string]*queue.Queue[*core.Snapshot]

	in  *queue.Queue[*core.Snapshot]
	log *log.Logger
}

func NewSnapshotBus(in *queue.Queue[*core.Snapshot]) *SnapshotBus {
	return &SnapshotBus{
		subs: make(map[string]*queue.Queue[*core.Snapshot]),
		in:   in,
		log:  log.New(os.Stdout, "[SnapshotBus] ", log.LstdFlags),
	}
}

// Subscribe returns the named subscriber queue, creating it on first
// use. Subscribers must be registered before Run starts delivering.
func (b *SnapshotBus) Subscribe(name string) *queue.Queue[*core.Snapshot] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.subs[name]; ok {
		return q
	}
	q := queue.New[*core.Snapshot]()
	b.subs[name] = q
	b.log.Printf("subscriber %s registered", name)
	return q
}

// Unsubscribe drops a subscriber and closes its queue.
func (b *SnapshotBus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.subs[name]; ok {
		delete(b.subs, name)
		q.Close()
	}
}

func (b *SnapshotBus) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-exit:
				b.log.Print("exiting")
				return
			case snap, ok := <-b.in.Out():
				if !ok {
					return
				}
				b.fanout(snap)
			}
		}
	}()
	return done
}

// Snapshots are shared by pointer; consumers treat them as read-only.
func (b *SnapshotBus) fanout(snap *core.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, q := range b.subs {
		q.Push(snap)
	}
}
