package coalesce

import (
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/monitoring"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
	"github.com/visionmesh/trackd/internal/snapshot"
)

type faceEventKind int

const (
	faceEvNew faceEventKind = iota
	faceEvAppend
	faceEvTimeout
)

type faceEvent struct {
	kind faceEventKind
	item *core.FaceTrackEvent // append payload
}

type faceDet struct {
	quality float64
	aligned []byte
	display []byte
	feature []byte
}

// faceTrack is the mutable per-ID state owned by one holder.
type faceTrack struct {
	sid     string
	source  string
	ts      time.Time
	invalid bool
	ready   bool

	// wp is the write pointer: detections with index <= wp are already
	// on disk and are never rewritten.
	wp int

	bg    []byte
	props *core.FaceNotifyProps
	faces []faceDet
}

func (t *faceTrack) fold(item *core.FaceTrackEvent) {
	t.bg = item.Bg
	for i, f := range item.Notify.Faces {
		det := faceDet{quality: f.Quality}
		if i < len(item.Faces) {
			det.aligned = item.Faces[i].Aligned
			det.display = item.Faces[i].Display
			det.feature = item.Faces[i].Feature
		}
		t.faces = append(t.faces, det)
	}
	if item.Notify.Props != nil {
		t.props = item.Notify.Props
	}
}

// clearBlobs drops transient buffers before the holder lock is
// released: the background always, crops already persisted, and the
// feature vectors once the track has been published.
func (t *faceTrack) clearBlobs(published bool) {
	t.bg = nil
	for i := range t.faces {
		if i < t.wp {
			t.faces[i].aligned = nil
			t.faces[i].display = nil
		}
		if published {
			t.faces[i].feature = nil
		}
	}
}

// FaceCoalescer serializes face track events per track ID, persists
// images and rows, and publishes each track downstream exactly once.
type FaceCoalescer struct {
	cfg     config.TrackKindConfig
	imgRoot string
	imgURL  string

	dao *dao.Dao
	log *log.Logger
	met *monitoring.Metrics

	in  *queue.Queue[*core.FaceTrackEvent]
	out *queue.Queue[*core.Snapshot]

	pool   *SerialPool[faceTrack, faceEvent]
	tracks map[string]*Holder[faceTrack, faceEvent]
	readyQ *queue.DelayQueue[string]
	cleanQ *queue.DelayQueue[string]
}

func NewFaceCoalescer(cfg *config.Config, d *dao.Dao,
	in *queue.Queue[*core.FaceTrackEvent], out *queue.Queue[*core.Snapshot]) *FaceCoalescer {

	c := &FaceCoalescer{
		cfg:     cfg.Track.Face,
		imgRoot: cfg.ImgRoot,
		imgURL:  cfg.ImgURL,
		dao:     d,
		log:     log.New(log.Writer(), "[FaceCoalescer] ", log.LstdFlags),
		met:     monitoring.Get(),
		in:      in,
		out:     out,
		tracks:  make(map[string]*Holder[faceTrack, faceEvent]),
		readyQ:  queue.NewDelay[string](),
		cleanQ:  queue.NewDelay[string](),
	}
	c.pool = NewSerialPool[faceTrack, faceEvent](c)
	return c
}

// Run consumes the intake queue and both timer queues until shutdown.
// The track map is touched only from this goroutine.
func (c *FaceCoalescer) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer c.readyQ.Close()
		defer c.cleanQ.Close()

		for {
			select {
			case v := <-exit:
				if v == runtime.ExitCode {
					c.log.Printf("recv exit")
					return
				}
			case item := <-c.in.Out():
				c.intake(item)
			case sid := <-c.readyQ.Expired():
				c.readyTimeout(sid)
			case sid := <-c.cleanQ.Expired():
				c.cleanTimeout(sid)
			}
		}
	}()
	return done
}

// checkRecvMode evaluates readiness for a first arrival: fast mode, or
// enough detections with a feature and sufficient quality.
func (c *FaceCoalescer) checkRecvMode(item *core.FaceTrackEvent) bool {
	if c.cfg.RecvMode.Fast {
		return true
	}
	cc := 0
	for i, f := range item.Notify.Faces {
		if f.Quality > c.cfg.RecvMode.Quality && i < len(item.Faces) && len(item.Faces[i].Feature) > 0 {
			cc++
		}
	}
	return cc >= c.cfg.RecvMode.Count
}

func (c *FaceCoalescer) intake(item *core.FaceTrackEvent) {
	sid := item.Notify.ID

	if holder, ok := c.tracks[sid]; ok {
		c.pool.Dispatch(holder, faceEvent{kind: faceEvAppend, item: item})
		return
	}

	track := &faceTrack{
		sid:    sid,
		source: item.Notify.Source,
		ts:     item.Ts,
		ready:  c.checkRecvMode(item),
	}
	track.fold(item)

	holder := NewHolder[faceTrack, faceEvent](track)
	c.tracks[sid] = holder
	c.met.TracksLive.WithLabelValues("face").Inc()
	c.pool.Dispatch(holder, faceEvent{kind: faceEvNew})

	c.cleanQ.Insert(sid, c.cfg.ClearDelayDur())
	if !track.ready {
		c.readyQ.Insert(sid, c.cfg.ReadyDelayDur())
	}
}

func (c *FaceCoalescer) readyTimeout(sid string) {
	holder, ok := c.tracks[sid]
	if !ok {
		c.log.Printf("error, ready timeout for unknown track %s", sid)
		return
	}
	c.pool.Dispatch(holder, faceEvent{kind: faceEvTimeout})
}

func (c *FaceCoalescer) cleanTimeout(sid string) {
	if _, ok := c.tracks[sid]; ok {
		delete(c.tracks, sid)
		c.met.TracksLive.WithLabelValues("face").Dec()
	}
}

// Len reports how many track IDs are currently live.
func (c *FaceCoalescer) Len() int {
	return len(c.tracks)
}

// Process folds one drained batch into the track and drives the save /
// update / publish state machine. Called with the track lock held.
func (c *FaceCoalescer) Process(data *faceTrack, events []faceEvent) {
	var newed, appended, delayed bool
	readyOld := data.ready

	for _, ev := range events {
		switch ev.kind {
		case faceEvNew:
			newed = true
		case faceEvAppend:
			appended = true
			data.fold(ev.item)
		case faceEvTimeout:
			delayed = true
		}
	}

	if newed {
		if err := c.saveTrack(data); err != nil {
			c.log.Printf("error, save facetrack %s: %v", data.sid, err)
			data.invalid = true
			c.met.TracksInvalid.WithLabelValues("face").Inc()
			return
		}
	}

	if !newed && appended {
		if err := c.updateTrack(data); err != nil {
			c.log.Printf("error, update facetrack %s: %v", data.sid, err)
			return
		}
	}

	if appended || delayed {
		data.ready = true
	}
	readyNew := data.ready

	if (newed && readyOld) || (!readyOld && readyNew) {
		if data.invalid {
			c.log.Printf("error, facetrack %s is ready but invalid, skip", data.sid)
		} else if err := c.publish(data); err != nil {
			c.log.Printf("error, publish facetrack %s: %v", data.sid, err)
		}
	}

	data.clearBlobs(readyNew)
}

func (t *faceTrack) row(now time.Time) *dao.CfFacetrack {
	ids := make([]imgstore.IDScore, 0, len(t.faces))
	for i, f := range t.faces {
		ids = append(ids, imgstore.IDScore{ID: int64(i + 1), Score: f.quality})
	}

	po := &dao.CfFacetrack{
		FtSid:       t.sid,
		SrcSid:      t.source,
		ImgIds:      imgstore.EncodeIDScores(ids),
		CaptureTime: t.ts,
		GmtCreate:   now,
		GmtModified: now,
	}
	if t.props != nil {
		po.Gender = int(t.props.Gender)
		po.Age = int(t.props.Age)
		po.Glasses = int(t.props.Glasses)
		po.Direction = int(t.props.MoveDirection)
	}
	return po
}

// saveTrack writes every image and inserts the row, then advances wp.
func (c *FaceCoalescer) saveTrack(t *faceTrack) error {
	if err := imgstore.PrepareDir(imgstore.FaceTrackDir(c.imgRoot, t.sid)); err != nil {
		return err
	}

	for i, f := range t.faces {
		n := int64(i + 1)
		if err := imgstore.WriteJpg(imgstore.FaceTrackSmallPath(c.imgRoot, t.sid, n), f.aligned); err != nil {
			return err
		}
		if err := imgstore.WriteJpg(imgstore.FaceTrackLargePath(c.imgRoot, t.sid, n), f.display); err != nil {
			return err
		}
	}
	if err := imgstore.WriteJpg(imgstore.FaceTrackBgPath(c.imgRoot, t.sid), t.bg); err != nil {
		return err
	}

	if _, err := c.dao.SaveFacetrack(t.row(time.Now())); err != nil {
		return err
	}

	t.wp = len(t.faces)
	return nil
}

// updateTrack writes only the images past wp, always overwrites the
// background, and updates the row. wp advances only on full success, so
// a failed append is retried on the next one.
func (c *FaceCoalescer) updateTrack(t *faceTrack) error {
	if err := imgstore.PrepareDir(imgstore.FaceTrackDir(c.imgRoot, t.sid)); err != nil {
		return err
	}

	for i := t.wp; i < len(t.faces); i++ {
		n := int64(i + 1)
		if err := imgstore.WriteJpg(imgstore.FaceTrackSmallPath(c.imgRoot, t.sid, n), t.faces[i].aligned); err != nil {
			return err
		}
		if err := imgstore.WriteJpg(imgstore.FaceTrackLargePath(c.imgRoot, t.sid, n), t.faces[i].display); err != nil {
			return err
		}
	}
	if len(t.bg) > 0 {
		if err := imgstore.WriteJpg(imgstore.FaceTrackBgPath(c.imgRoot, t.sid), t.bg); err != nil {
			return err
		}
	}

	if err := c.dao.UpdateFacetrackImgs(t.row(time.Now())); err != nil {
		return err
	}

	t.wp = len(t.faces)
	return nil
}

// publish resolves the camera best-effort and pushes the snapshot to
// the search stage.
func (c *FaceCoalescer) publish(t *faceTrack) error {
	camera, err := c.dao.GetSourceBySid(t.source)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}

	faces := make([]core.FaceItem, 0, len(t.faces))
	for i, f := range t.faces {
		n := int64(i + 1)
		feature := ""
		if len(f.feature) > 0 {
			feature = base64.StdEncoding.EncodeToString(f.feature)
		}
		faces = append(faces, core.FaceItem{
			Index:   n,
			Feature: feature,
			Quality: f.quality,
			SImgURL: imgstore.FaceTrackSmallURL(c.imgURL, t.sid, n),
			LImgURL: imgstore.FaceTrackLargeURL(c.imgURL, t.sid, n),
		})
	}

	var props *core.FaceProps
	if t.props != nil {
		props = &core.FaceProps{
			Age:       t.props.Age,
			Gender:    t.props.Gender,
			Glasses:   t.props.Glasses,
			Direction: t.props.MoveDirection,
		}
	}

	snap := &core.FaceSnap{
		Sid: t.sid,
		Face: core.FaceInfo{
			Sid:    t.sid,
			Source: t.source,
			Faces:  faces,
			Props:  props,
			BgURL:  imgstore.FaceTrackBgURL(c.imgURL, t.sid),
			Ts:     t.ts,
		},
		Camera: snapshot.Camera(camera),
	}

	c.out.Push(&core.Snapshot{FT: snap})
	c.met.TracksPublished.WithLabelValues("face").Inc()
	return nil
}
