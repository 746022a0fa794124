package imp

import (
	"log"
	"regexp"
	"time"

	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/queue"
)

// Saver drains created persons in batches, parses the person details
// out of the original file names and persists the rows in one
// transaction per batch.
type Saver struct {
	dbSid     string
	impTag    string
	threshold int
	batch     int

	re    *regexp.Regexp
	props []string

	d   *dao.Dao
	log *log.Logger

	in   *queue.Queue[*CreateItem]
	stat *queue.Queue[StageEvent]
}

func NewSaver(dbSid, impTag string, threshold, batch int, re *regexp.Regexp, props []string,
	d *dao.Dao, in *queue.Queue[*CreateItem], stat *queue.Queue[StageEvent]) *Saver {

	if batch < 1 {
		batch = 1
	}
	return &Saver{
		dbSid:     dbSid,
		impTag:    impTag,
		threshold: threshold,
		batch:     batch,
		re:        re,
		props:     props,
		d:         d,
		log:       log.New(log.Writer(), "[SaveDb] ", log.LstdFlags),
		in:        in,
		stat:      stat,
	}
}

func (s *Saver) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			list, ok := s.in.DrainUpTo(s.batch, exit)
			if !ok {
				return
			}
			s.process(list)
		}
	}()
	return done
}

func (s *Saver) process(list []*CreateItem) {
	now := time.Now()

	persons := make([]dao.CfPoi, 0, len(list))
	for _, item := range list {
		info, err := PersonInfoFromFilename(item.FileName, s.re, s.props)
		if err != nil {
			s.log.Printf("parse %s: %v", item.FileName, err)
			continue
		}

		persons = append(persons, dao.CfPoi{
			PoiSid:       item.PersonID,
			DbSid:        s.dbSid,
			Name:         info.Name,
			Gender:       info.Gender,
			IdentityCard: info.IdentityCard,
			Threshold:    s.threshold,
			FeatureIds: imgstore.EncodeIDScores([]imgstore.IDScore{
				{ID: item.FaceID, Score: item.Score},
			}),
			ImpTag:      s.impTag,
			Memo:        info.Memo,
			GmtCreate:   now,
			GmtModified: now,
		})
	}

	saved := 0
	if len(persons) > 0 {
		var err error
		saved, err = s.d.SavePoisBatch(persons, func(po *dao.CfPoi, err error) {
			s.log.Printf("save %s: %v", po.PoiSid, err)
		})
		if err != nil {
			s.log.Printf("save batch: %v", err)
		}
	}
	s.report(saved, len(list)-saved)
}

func (s *Saver) report(succ, fail int) {
	s.stat.Push(StageEvent{Stage: 2, Worker: 0, Succ: succ, Fail: fail})
}
