package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := NewBroadcast()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Send(ExitCode)

	assert.Equal(t, ExitCode, <-a)
	assert.Equal(t, ExitCode, <-c)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	b := NewBroadcast()
	_ = b.Subscribe() // never read

	doneCh := make(chan struct{})
	go func() {
		b.Send(ExitCode)
		b.Send(ExitCode)
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a slow subscriber")
	}
}

type stubService struct {
	stopped chan struct{}
}

func (s *stubService) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range exit {
			if v == ExitCode {
				close(s.stopped)
				return
			}
		}
	}()
	return done
}

func TestRepoJoinsServices(t *testing.T) {
	exits := NewBroadcast()
	repo := NewRepo(exits)

	svc := &stubService{stopped: make(chan struct{})}
	repo.Start("stub", svc)

	exits.Send(ExitCode)

	joined := make(chan struct{})
	go func() {
		repo.Join()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join never returned")
	}

	select {
	case <-svc.stopped:
	default:
		require.Fail(t, "service loop never observed the exit code")
	}
}
