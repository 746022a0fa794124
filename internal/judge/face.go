// Package judge resolves search and plate hits against the local
// database, applies the alarm policy and persists the verdicts.
package judge

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/monitoring"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/snapshot"
)

// FaceJudge turns the search hit of a face snapshot into a full person
// block, decides the alarm and writes the verdict back to the row.
type FaceJudge struct {
	urlPrefix string
	wlAlarm   bool

	d   *dao.Dao
	dbs map[string]dao.CfDfdb
	log *log.Logger
	met *monitoring.Metrics

	in  *queue.Queue[*core.Snapshot]
	out *queue.Queue[*core.Snapshot]
}

func NewFaceJudge(cfg *config.Config, d *dao.Dao, in, out *queue.Queue[*core.Snapshot]) (*FaceJudge, error) {
	dbs, err := d.LoadAutoMatchDbs()
	if err != nil {
		return nil, err
	}

	j := &FaceJudge{
		urlPrefix: cfg.ImgURL,
		wlAlarm:   cfg.Track.Face.WLAlarm,
		d:         d,
		dbs:       make(map[string]dao.CfDfdb, len(dbs)),
		log:       log.New(os.Stdout, "[FaceJudge] ", log.LstdFlags),
		met:       monitoring.Get(),
		in:        in,
		out:       out,
	}
	for _, db := range dbs {
		j.dbs[db.DbSid] = db
	}
	return j, nil
}

func (j *FaceJudge) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-exit:
				j.log.Print("exiting")
				return
			case snap, ok := <-j.in.Out():
				if !ok {
					return
				}
				if snap.FT != nil {
					j.judge(snap.FT)
				}
				j.out.Push(snap)
			}
		}
	}()
	return done
}

func (j *FaceJudge) judge(ft *core.FaceSnap) {
	judged := false
	mostPerson := ""
	mostScore := 0.0

	if hit := ft.MatchPoi; hit != nil {
		ft.MatchPoi = j.resolve(ft.Sid, hit)
		if ft.MatchPoi != nil {
			judged = ft.MatchPoi.Score >= ft.MatchPoi.Threshold
			mostPerson = ft.MatchPoi.Sid
			mostScore = float64(ft.MatchPoi.Score)
		}
	}

	matched := ft.MatchPoi != nil
	var alarmed bool
	if j.wlAlarm {
		alarmed = !(matched && ft.MatchPoi.BwFlag == 2 && judged)
	} else {
		alarmed = matched && ft.MatchPoi.BwFlag == 1 && judged
	}

	ft.Face.Judged = judged
	ft.Face.Alarmed = alarmed

	err := j.d.UpdateFacetrackJudge(ft.Sid, b2i(ft.Face.Matched), b2i(judged), b2i(alarmed),
		mostPerson, mostScore, time.Now())
	if err != nil {
		j.log.Printf("update track %s verdict: %v", ft.Sid, err)
	}

	j.met.JudgedTotal.WithLabelValues("face", strconv.FormatBool(alarmed)).Inc()
}

// resolve upgrades the hit skeleton left by search into the full person
// block. A person or library that disappeared since the search drops
// the match.
func (j *FaceJudge) resolve(sid string, hit *core.PersonHit) *core.PersonHit {
	poi, err := j.d.GetPoiBySid(hit.Sid)
	if errors.Is(err, dao.ErrNotFound) {
		j.log.Printf("track %s: matched person %s no longer exists", sid, hit.Sid)
		return nil
	}
	if err != nil {
		j.log.Printf("track %s: load person %s: %v", sid, hit.Sid, err)
		return nil
	}

	db, ok := j.dbs[hit.DbSid]
	if !ok {
		j.log.Printf("track %s: matched unknown library %s", sid, hit.DbSid)
		return nil
	}

	full, err := snapshot.PersonHit(j.urlPrefix, poi, float64(hit.Score), &db)
	if err != nil {
		j.log.Printf("track %s: build person block: %v", sid, err)
		return nil
	}
	return full
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
