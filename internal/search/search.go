// Package search runs published face tracks through the recognition
// back-end's 1:N search and attaches the best hit before judgement.
package search

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/monitoring"
	"github.com/visionmesh/trackd/internal/queue"
)

// FaceSearcher drains face snapshots in batches and searches them
// against the auto-match libraries. Vehicle snapshots and faces without
// features pass through untouched.
type FaceSearcher struct {
	skip    bool
	workers int
	batch   int

	recg *backend.RecognitionClient
	log  *log.Logger
	met  *monitoring.Metrics

	dbSids []string
	dbs    map[string]dao.CfDfdb

	in  *queue.Queue[*core.Snapshot]
	out *queue.Queue[*core.Snapshot]
}

// NewFaceSearcher loads the auto-match library set once. The set is
// fixed for the lifetime of the worker; changing it requires a restart.
func NewFaceSearcher(cfg *config.Config, d *dao.Dao, recg *backend.RecognitionClient,
	in, out *queue.Queue[*core.Snapshot]) (*FaceSearcher, error) {

	dbs, err := d.LoadAutoMatchDbs()
	if err != nil {
		return nil, err
	}

	s := &FaceSearcher{
		skip:    cfg.Track.SkipSearch,
		workers: cfg.Track.SearchWorker,
		batch:   cfg.Track.SearchBatch,
		recg:    recg,
		log:     log.New(os.Stdout, "[FaceSearcher] ", log.LstdFlags),
		met:     monitoring.Get(),
		dbs:     make(map[string]dao.CfDfdb, len(dbs)),
		in:      in,
		out:     out,
	}
	for _, db := range dbs {
		s.dbSids = append(s.dbSids, db.DbSid)
		s.dbs[db.DbSid] = db
	}

	s.log.Printf("loaded %d auto-match libraries", len(s.dbSids))
	return s, nil
}

// Db returns the cached library for a sid, if it participates in
// auto-match.
func (s *FaceSearcher) Db(sid string) (dao.CfDfdb, bool) {
	db, ok := s.dbs[sid]
	return db, ok
}

func (s *FaceSearcher) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})

	// Workers share a stop channel; closing it releases every
	// DrainUpTo at once.
	stop := make(chan int64)
	go func() {
		<-exit
		close(stop)
	}()

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < s.workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				s.work(id, stop)
			}(i)
		}
		wg.Wait()
		s.log.Print("all search workers stopped")
		close(done)
	}()
	return done
}

func (s *FaceSearcher) work(id int, stop <-chan int64) {
	for {
		batch, stopped := s.in.DrainUpTo(s.batch, stop)
		if len(batch) > 0 {
			s.process(batch)
		}
		if stopped {
			return
		}
	}
}

// process searches the feature-carrying face snapshots of the batch and
// forwards everything downstream in arrival order. A back-end failure
// marks the affected snapshots as searched with no match; they are
// never retried.
func (s *FaceSearcher) process(batch []*core.Snapshot) {
	var searched []*core.Snapshot
	var persons [][]backend.FeatureQuality

	if !s.skip && len(s.dbSids) > 0 {
		for _, snap := range batch {
			if snap.FT == nil {
				continue
			}
			fq := featuresOf(snap.FT)
			if len(fq) == 0 {
				continue
			}
			searched = append(searched, snap)
			persons = append(persons, fq)
		}
	}

	if len(searched) > 0 {
		s.met.SearchBatches.Inc()

		hits, err := s.recg.Search(context.Background(),
			s.dbSids, []int64{1}, []int64{0}, persons)
		if err != nil {
			s.met.SearchFailures.Inc()
			s.log.Printf("search %d tracks failed: %v", len(searched), err)
			for _, snap := range searched {
				snap.FT.Face.Matched = true
			}
		} else {
			for i, snap := range searched {
				snap.FT.Face.Matched = true
				if i < len(hits) && len(hits[i]) > 0 {
					s.attach(snap.FT, hits[i][0])
				}
			}
		}
	}

	for _, snap := range batch {
		if snap.FT != nil {
			eraseFeatures(snap.FT)
		}
		s.out.Push(snap)
	}
}

// attach records the top hit on the snapshot. Only the identifiers and
// the score are known here; judgement resolves the full person.
func (s *FaceSearcher) attach(ft *core.FaceSnap, hit backend.SearchHit) {
	db, ok := s.dbs[hit.Db]
	if !ok {
		s.log.Printf("track %s matched unknown library %s", ft.Sid, hit.Db)
		return
	}
	ft.MatchPoi = &core.PersonHit{
		Sid:    hit.ID,
		Score:  int64(hit.Score),
		DbSid:  db.DbSid,
		DbName: db.Name,
		BwFlag: int64(db.BwFlag),
	}
}

func featuresOf(ft *core.FaceSnap) []backend.FeatureQuality {
	var fq []backend.FeatureQuality
	for _, f := range ft.Face.Faces {
		if f.Feature == "" {
			continue
		}
		fq = append(fq, backend.FeatureQuality{Feature: f.Feature, Quality: f.Quality})
	}
	return fq
}

// eraseFeatures drops the feature payloads once search is behind us;
// nothing downstream needs them and they dominate the snapshot size.
func eraseFeatures(ft *core.FaceSnap) {
	for i := range ft.Face.Faces {
		ft.Face.Faces[i].Feature = ""
	}
}
