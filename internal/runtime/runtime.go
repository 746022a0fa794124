// Package runtime holds the process-level service scaffolding: the exit
// broadcast, the service repository and the signal handler.
package runtime

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitCode is the value broadcast to every worker on shutdown.
const ExitCode int64 = 100

// Broadcast fans a shutdown value out to every subscriber. Subscribers
// receive at most one value; sends never block.
type Broadcast struct {
	mu   sync.Mutex
	subs []chan int64
}

func NewBroadcast() *Broadcast {
	return &Broadcast{}
}

// Subscribe returns a channel that will receive the broadcast value.
func (b *Broadcast) Subscribe() <-chan int64 {
	ch := make(chan int64, 1)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Send delivers v to every current subscriber.
func (b *Broadcast) Send(v int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Service is a long-running worker. Run starts its goroutines and
// returns a channel closed once the service has fully stopped. Every
// service is expected to exit its loops when the exit channel delivers
// ExitCode.
type Service interface {
	Run(exit <-chan int64) <-chan struct{}
}

// Repo starts services and joins them on shutdown.
type Repo struct {
	log   *log.Logger
	exits *Broadcast
	dones []<-chan struct{}
	names []string
}

func NewRepo(exits *Broadcast) *Repo {
	return &Repo{
		log:   log.New(log.Writer(), "[Repo] ", log.LstdFlags),
		exits: exits,
	}
}

// Start launches svc with its own subscription to the exit broadcast.
func (r *Repo) Start(name string, svc Service) {
	r.log.Printf("start service %s", name)
	r.dones = append(r.dones, svc.Run(r.exits.Subscribe()))
	r.names = append(r.names, name)
}

// Join blocks until every started service has stopped.
func (r *Repo) Join() {
	for i, done := range r.dones {
		<-done
		r.log.Printf("service %s stopped", r.names[i])
	}
}

// SignalService broadcasts ExitCode when the process receives an
// interrupt, termination or quit signal.
type SignalService struct {
	exits *Broadcast
	log   *log.Logger
}

func NewSignalService(exits *Broadcast) *SignalService {
	return &SignalService{
		exits: exits,
		log:   log.New(log.Writer(), "[Signal] ", log.LstdFlags),
	}
}

func (s *SignalService) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			s.log.Printf("caught %v, broadcasting shutdown", sig)
			s.exits.Send(ExitCode)
		case v := <-exit:
			if v == ExitCode {
				return
			}
		}
	}()
	return done
}
