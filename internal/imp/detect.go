package imp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

// FeaItem is one face feature extracted from an image, keyed by the
// person sid the pipeline assigned to it.
type FeaItem struct {
	Index    int
	FileName string
	PersonID string
	Feature  string
	Score    float64
}

// Detector pulls image files off the scan queue, runs detect on the
// recognition helper and saves the aligned crop under the person image
// layout. The crop is written under face id 1 first; the create stage
// renames it once the real face id is known.
type Detector struct {
	imgDir  string
	imgRoot string
	worker  int

	recg *backend.RecognitionClient
	log  *log.Logger

	files *queue.Queue[FileItem]
	out   *queue.Queue[*FeaItem]
	stat  *queue.Queue[StageEvent]
}

func NewDetector(imgDir, imgRoot string, worker int, recg *backend.RecognitionClient,
	files *queue.Queue[FileItem], out *queue.Queue[*FeaItem], stat *queue.Queue[StageEvent]) *Detector {

	return &Detector{
		imgDir:  imgDir,
		imgRoot: imgRoot,
		worker:  worker,
		recg:    recg,
		log:     log.New(log.Writer(), fmt.Sprintf("[Detect-%d] ", worker), log.LstdFlags),
		files:   files,
		out:     out,
		stat:    stat,
	}
}

func (d *Detector) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case v := <-exit:
				if v == runtime.ExitCode {
					return
				}
			case item, ok := <-d.files.Out():
				if !ok {
					return
				}
				d.process(item)
			}
		}
	}()
	return done
}

func (d *Detector) process(item FileItem) {
	data, err := os.ReadFile(filepath.Join(d.imgDir, item.Name))
	if err != nil {
		d.log.Printf("read [%d]%s: %v", item.Index, item.Name, err)
		d.report(0, 1)
		return
	}

	faces, err := d.recg.Detect(context.Background(),
		base64.StdEncoding.EncodeToString(data), true, true)
	if err != nil {
		d.log.Printf("detect [%d]%s: %v", item.Index, item.Name, err)
		d.report(0, 1)
		return
	}
	if len(faces) == 0 {
		d.log.Printf("no face [%d]%s", item.Index, item.Name)
		d.report(0, 1)
		return
	}

	face := faces[0]
	if face.Feature == "" {
		d.log.Printf("no feature [%d]%s", item.Index, item.Name)
		d.report(0, 1)
		return
	}

	personID := uuid.New().String()
	if err := d.saveAligned(personID, face.Aligned); err != nil {
		d.log.Printf("save aligned [%d]%s: %v", item.Index, item.Name, err)
		d.report(0, 1)
		return
	}

	// report before the handoff so the accountant always counts a
	// stage's last item before the next stage can report it
	d.report(1, 0)
	d.out.Push(&FeaItem{
		Index:    item.Index,
		FileName: item.Name,
		PersonID: personID,
		Feature:  face.Feature,
		Score:    face.Quality,
	})
}

func (d *Detector) saveAligned(personID, content string) error {
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return err
	}
	if err := imgstore.PrepareDir(imgstore.PersonDir(d.imgRoot, personID)); err != nil {
		return err
	}
	return imgstore.WriteJpg(imgstore.PersonImgPath(d.imgRoot, personID, 1), data)
}

func (d *Detector) report(succ, fail int) {
	d.stat.Push(StageEvent{Stage: 0, Worker: d.worker, Succ: succ, Fail: fail})
}
