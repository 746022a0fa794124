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

// CarJudge matches vehicle snapshots against the vehicle-of-interest
// registry by plate and applies the alarm policy. A vehicle with no
// recognized plate is never matched.
type CarJudge struct {
	wlAlarm bool

	d      *dao.Dao
	groups map[string]dao.CfCoiGroup
	log    *log.Logger
	met    *monitoring.Metrics

	in  *queue.Queue[*core.Snapshot]
	out *queue.Queue[*core.Snapshot]
}

func NewCarJudge(cfg *config.Config, d *dao.Dao, in, out *queue.Queue[*core.Snapshot]) (*CarJudge, error) {
	groups, err := d.LoadCoiGroups()
	if err != nil {
		return nil, err
	}

	j := &CarJudge{
		wlAlarm: cfg.Track.Vehicle.WLAlarm,
		d:       d,
		groups:  make(map[string]dao.CfCoiGroup, len(groups)),
		log:     log.New(os.Stdout, "[CarJudge] ", log.LstdFlags),
		met:     monitoring.Get(),
		in:      in,
		out:     out,
	}
	for _, g := range groups {
		j.groups[g.Sid] = g
	}
	return j, nil
}

func (j *CarJudge) Run(exit <-chan int64) <-chan struct{} {
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
				if snap.CT != nil {
					j.judge(snap.CT)
				}
				j.out.Push(snap)
			}
		}
	}()
	return done
}

func (j *CarJudge) judge(ct *core.CarSnap) {
	mostCoi := ""
	if ct.Car.Plate != nil && ct.Car.Plate.Content != "" {
		ct.MatchCoi = j.match(ct.Sid, ct.Car.Plate.Content)
		if ct.MatchCoi != nil {
			mostCoi = ct.MatchCoi.Sid
		}
	}

	matched := ct.MatchCoi != nil
	var alarmed bool
	if j.wlAlarm {
		alarmed = !(matched && ct.MatchCoi.BwFlag == 2)
	} else {
		alarmed = matched && ct.MatchCoi.BwFlag == 1
	}
	ct.Car.Alarmed = alarmed

	if err := j.d.UpdateCartrackJudge(ct.Sid, b2i(alarmed), mostCoi, time.Now()); err != nil {
		j.log.Printf("update track %s verdict: %v", ct.Sid, err)
	}

	j.met.JudgedTotal.WithLabelValues("vehicle", strconv.FormatBool(alarmed)).Inc()
}

func (j *CarJudge) match(sid, plate string) *core.CoiHit {
	coi, err := j.d.GetCoiByPlate(plate)
	if errors.Is(err, dao.ErrNotFound) {
		return nil
	}
	if err != nil {
		j.log.Printf("track %s: lookup plate %s: %v", sid, plate, err)
		return nil
	}

	group, ok := j.groups[coi.GroupSid]
	if !ok {
		j.log.Printf("track %s: vehicle %s belongs to unknown group %s", sid, coi.Sid, coi.GroupSid)
		return nil
	}
	return snapshot.CoiHit(coi, &group)
}
