package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	for i := 0; i < 100; i++ {
		v := <-q.Out()
		assert.Equal(t, i, v)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := New[int]()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()
	q.Close()

	got := 0
	for range q.Out() {
		got++
	}
	assert.Equal(t, producers*perProducer, got)
}

func TestQueueTryPopEmpty(t *testing.T) {
	q := New[string]()
	defer q.Close()

	_, ok := q.TryPop()
	assert.False(t, ok)

	q.Push("a")
	// give the pump a moment to move the item to the out channel
	deadline := time.Now().Add(time.Second)
	for {
		if v, ok := q.TryPop(); ok {
			assert.Equal(t, "a", v)
			break
		}
		require.True(t, time.Now().Before(deadline), "item never became available")
		time.Sleep(time.Millisecond)
	}
}

func TestDrainUpToBatches(t *testing.T) {
	q := New[int]()
	defer q.Close()
	stop := make(chan int64)

	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	// wait until at least one item is poppable
	deadline := time.Now().Add(time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	items, ok := q.DrainUpTo(4, stop)
	require.True(t, ok)
	require.NotEmpty(t, items)
	assert.LessOrEqual(t, len(items), 4)
	assert.Equal(t, 0, items[0])
}

func TestDrainUpToBlocksForOne(t *testing.T) {
	q := New[int]()
	defer q.Close()
	stop := make(chan int64)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(7)
	}()

	items, ok := q.DrainUpTo(4, stop)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0])
}

func TestDrainUpToStops(t *testing.T) {
	q := New[int]()
	defer q.Close()
	stop := make(chan int64, 1)
	stop <- 100

	_, ok := q.DrainUpTo(4, stop)
	assert.False(t, ok)
}

func TestDelayQueueOrdering(t *testing.T) {
	d := NewDelay[string]()
	defer d.Close()

	d.Insert("late", 60*time.Millisecond)
	d.Insert("early", 10*time.Millisecond)

	first := <-d.Expired()
	second := <-d.Expired()
	assert.Equal(t, "early", first)
	assert.Equal(t, "late", second)
}

func TestDelayQueueDelivery(t *testing.T) {
	d := NewDelay[int]()
	defer d.Close()

	start := time.Now()
	d.Insert(1, 30*time.Millisecond)

	select {
	case v := <-d.Expired():
		assert.Equal(t, 1, v)
		assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed value never delivered")
	}
}
