package imp

import (
	"log"
	"time"

	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

// StageEvent reports one processed item from a pipeline worker.
type StageEvent struct {
	Stage  int
	Worker int
	Succ   int
	Fail   int
}

type stage struct {
	ID    int
	Count int
	Touch int
	Succ  int
	Done  bool
}

// StageStat tracks how far each pipeline stage has progressed. A stage
// is done once it has touched as many items as the previous stage
// produced; its success count becomes the next stage's workload.
type StageStat struct {
	stages []stage
	log    *log.Logger
}

func NewStageStat(stageCount, initCount int) *StageStat {
	s := &StageStat{
		log: log.New(log.Writer(), "[StageStat] ", log.LstdFlags),
	}
	for i := 0; i < stageCount; i++ {
		count := 0
		if i == 0 {
			count = initCount
		}
		s.stages = append(s.stages, stage{ID: i, Count: count})
	}
	return s
}

func (s *StageStat) ProcessEvent(ev StageEvent) {
	if ev.Stage < 0 || ev.Stage >= len(s.stages) {
		s.log.Printf("bad stage id %d", ev.Stage)
		return
	}

	st := &s.stages[ev.Stage]
	st.Succ += ev.Succ
	st.Touch += ev.Succ + ev.Fail

	if st.Touch == st.Count {
		st.Done = true
		if next := ev.Stage + 1; next < len(s.stages) {
			s.stages[next].Count = st.Succ
		}
	}
}

// IsDone reports whether the whole pipeline has finished. A done stage
// with zero successes starves everything downstream, so it short
// circuits to true.
func (s *StageStat) IsDone() bool {
	for i := range s.stages {
		st := &s.stages[i]
		if !st.Done {
			return false
		}
		if st.Succ == 0 {
			return true
		}
	}
	return true
}

// TaskCount is the total workload, the first stage's count.
func (s *StageStat) TaskCount() int {
	if len(s.stages) == 0 {
		return 0
	}
	return s.stages[0].Count
}

// TaskSucc is the number of items the last stage completed.
func (s *StageStat) TaskSucc() int {
	if len(s.stages) == 0 {
		return 0
	}
	return s.stages[len(s.stages)-1].Succ
}

// StageStatService collects worker events, prints progress once a
// second and broadcasts shutdown when every stage has drained.
type StageStatService struct {
	stat  *StageStat
	in    *queue.Queue[StageEvent]
	exits *runtime.Broadcast
	log   *log.Logger
	start time.Time
}

func NewStageStatService(initCount int, in *queue.Queue[StageEvent], exits *runtime.Broadcast) *StageStatService {
	return &StageStatService{
		stat:  NewStageStat(3, initCount),
		in:    in,
		exits: exits,
		log:   log.New(log.Writer(), "[StageStat] ", log.LstdFlags),
		start: time.Now(),
	}
}

func (s *StageStatService) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

	loop:
		for {
			select {
			case v := <-exit:
				if v == runtime.ExitCode {
					break loop
				}
			case <-ticker.C:
				s.printStat()
			case ev, ok := <-s.in.Out():
				if !ok {
					break loop
				}
				s.stat.ProcessEvent(ev)
				if s.stat.IsDone() {
					s.exits.Send(runtime.ExitCode)
					break loop
				}
			}
		}

		s.printStat()
		s.printOps()
	}()
	return done
}

func (s *StageStatService) printStat() {
	for i := range s.stat.stages {
		st := &s.stat.stages[i]
		s.log.Printf("stage %d: %d/%d, succ %d, done %v",
			st.ID, st.Touch, st.Count, st.Succ, st.Done)
	}
}

func (s *StageStatService) printOps() {
	dur := time.Since(s.start)
	count := s.stat.TaskCount()
	succ := s.stat.TaskSucc()
	tps := float64(count) / dur.Seconds()
	s.log.Printf("task: %d/%d, use: %d ms, tps: %.2f", succ, count, dur.Milliseconds(), tps)
}
