package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

func snapFor(sid string) *core.Snapshot {
	return &core.Snapshot{FT: &core.FaceSnap{Sid: sid}}
}

func recv(t *testing.T, q *queue.Queue[*core.Snapshot]) *core.Snapshot {
	t.Helper()
	select {
	case snap := <-q.Out():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot within 2s")
		return nil
	}
}

func TestBusDeliversToEverySubscriber(t *testing.T) {
	in := queue.New[*core.Snapshot]()
	b := NewSnapshotBus(in)

	ws := b.Subscribe("ws")
	dash := b.Subscribe("dashboard")

	exits := runtime.NewBroadcast()
	done := b.Run(exits.Subscribe())

	in.Push(snapFor("T1"))
	assert.Equal(t, "T1", recv(t, ws).Sid())
	assert.Equal(t, "T1", recv(t, dash).Sid())

	exits.Send(runtime.ExitCode)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not stop")
	}
}

func TestBusSubscribeIsIdempotent(t *testing.T) {
	b := NewSnapshotBus(queue.New[*core.Snapshot]())
	q1 := b.Subscribe("ws")
	q2 := b.Subscribe("ws")
	assert.Same(t, q1, q2)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	in := queue.New[*core.Snapshot]()
	b := NewSnapshotBus(in)

	gone := b.Subscribe("gone")
	kept := b.Subscribe("kept")
	b.Unsubscribe("gone")

	b.fanout(snapFor("T1"))
	assert.Equal(t, "T1", recv(t, kept).Sid())
	assert.Equal(t, 0, gone.Len())
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	return redis.NewIntResult(1, nil)
}

func TestRedisNotifierPublishesJSON(t *testing.T) {
	in := queue.New[*core.Snapshot]()
	fake := &fakePublisher{}
	n := newRedisNotifier("trackd.judged", fake, in)

	n.publish(snapFor("T1"))

	require.Len(t, fake.payloads, 1)
	assert.Equal(t, "trackd.judged", fake.channels[0])

	var snap core.Snapshot
	require.NoError(t, json.Unmarshal(fake.payloads[0], &snap))
	assert.Equal(t, "T1", snap.Sid())
}

func TestRedisNotifierSurvivesPublishFailure(t *testing.T) {
	in := queue.New[*core.Snapshot]()
	fake := &fakePublisher{err: context.DeadlineExceeded}
	n := newRedisNotifier("trackd.judged", fake, in)

	exits := runtime.NewBroadcast()
	done := n.Run(exits.Subscribe())

	in.Push(snapFor("T1"))
	in.Push(snapFor("T2"))

	assert.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.payloads) == 2
	}, 2*time.Second, 10*time.Millisecond)

	exits.Send(runtime.ExitCode)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier did not stop")
	}
}
