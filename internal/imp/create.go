package imp

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/queue"
)

// CreateItem is one enrolled person with the face id the back-end
// assigned to its feature.
type CreateItem struct {
	Index    int
	FileName string
	PersonID string
	FaceID   int64
	Score    float64
}

// Creator drains feature items in batches and enrolls them with a
// single create_persons call, then renames each aligned crop to its
// assigned face id.
type Creator struct {
	dbSid   string
	imgRoot string
	batch   int
	worker  int

	recg *backend.RecognitionClient
	log  *log.Logger

	in   *queue.Queue[*FeaItem]
	out  *queue.Queue[*CreateItem]
	stat *queue.Queue[StageEvent]
}

func NewCreator(dbSid, imgRoot string, batch, worker int, recg *backend.RecognitionClient,
	in *queue.Queue[*FeaItem], out *queue.Queue[*CreateItem], stat *queue.Queue[StageEvent]) *Creator {

	if batch < 1 {
		batch = 1
	}
	return &Creator{
		dbSid:   dbSid,
		imgRoot: imgRoot,
		batch:   batch,
		worker:  worker,
		recg:    recg,
		log:     log.New(log.Writer(), fmt.Sprintf("[Create-%d] ", worker), log.LstdFlags),
		in:      in,
		out:     out,
		stat:    stat,
	}
}

func (c *Creator) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			list, ok := c.in.DrainUpTo(c.batch, exit)
			if !ok {
				return
			}
			c.process(list)
		}
	}()
	return done
}

func (c *Creator) process(list []*FeaItem) {
	ids := make([]string, 0, len(list))
	features := make([][]backend.FeatureQuality, 0, len(list))
	for _, item := range list {
		ids = append(ids, item.PersonID)
		features = append(features, []backend.FeatureQuality{
			{Feature: item.Feature, Quality: 1.0},
		})
	}

	persons, err := c.recg.CreatePersons(context.Background(), c.dbSid, ids, features)
	if err != nil {
		c.log.Printf("create_persons: %v", err)
		c.report(0, len(list))
		return
	}
	if len(persons) != len(ids) {
		c.log.Printf("create_persons: got %d persons for %d ids", len(persons), len(ids))
		c.report(0, len(list))
		return
	}

	for _, p := range persons {
		if len(p.Faces) == 0 {
			c.log.Printf("create_persons: %s has no faces", p.ID)
			c.report(0, 1)
			continue
		}
		faceID := p.Faces[0]

		item := findFeaItem(p.ID, list)
		if item == nil {
			c.log.Printf("create_persons: no source item for %s", p.ID)
			c.report(0, 1)
			continue
		}

		if err := c.renameImg(p.ID, faceID); err != nil {
			c.log.Printf("rename img %s to face %d: %v", p.ID, faceID, err)
			c.report(0, 1)
			continue
		}

		// report before the handoff, same reason as the detect stage
		c.report(1, 0)
		c.out.Push(&CreateItem{
			Index:    item.Index,
			FileName: item.FileName,
			PersonID: p.ID,
			FaceID:   faceID,
			Score:    item.Score,
		})
	}
}

func (c *Creator) renameImg(personID string, faceID int64) error {
	src := imgstore.PersonImgPath(c.imgRoot, personID, 1)
	dst := imgstore.PersonImgPath(c.imgRoot, personID, faceID)
	if src == dst {
		return nil
	}
	return os.Rename(src, dst)
}

func (c *Creator) report(succ, fail int) {
	c.stat.Push(StageEvent{Stage: 1, Worker: c.worker, Succ: succ, Fail: fail})
}

func findFeaItem(personID string, list []*FeaItem) *FeaItem {
	for _, v := range list {
		if v.PersonID == personID {
			return v
		}
	}
	return nil
}
