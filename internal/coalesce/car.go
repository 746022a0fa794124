package coalesce

import (
	"errors"
	"fmt"
	"log"
	"strings"
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

type carEventKind int

const (
	carEvNew carEventKind = iota
	carEvAppend
	carEvTimeout
)

type carEvent struct {
	kind carEventKind
	item *core.CarTrackEvent
}

// carTrack is the mutable per-ID state owned by one holder.
type carTrack struct {
	sid     string
	source  string
	ts      time.Time
	invalid bool
	ready   bool

	// wp is the write pointer over vehicle crops; see faceTrack.wp.
	wp int

	bg       []byte
	bgMeta   core.CarBackground
	vehicles [][]byte
	plate    *core.PlateNotifyInfo
	plateImg []byte
	plateBin []byte
	props    *core.CarNotifyProps
}

func (t *carTrack) fold(item *core.CarTrackEvent) {
	t.bg = item.Bg
	t.bgMeta = item.Notify.Background
	t.vehicles = append(t.vehicles, item.Vehicles...)
	if item.Notify.PlateInfo != nil {
		t.plate = item.Notify.PlateInfo
		t.plateImg = item.Plate
		t.plateBin = item.PlateBin
	}
	if item.Notify.Props != nil {
		t.props = item.Notify.Props
	}
}

func (t *carTrack) clearBlobs() {
	t.bg = nil
	t.plateImg = nil
	t.plateBin = nil
	for i := 0; i < t.wp && i < len(t.vehicles); i++ {
		t.vehicles[i] = nil
	}
}

func (t *carTrack) hasPlate() bool {
	return t.plate != nil && t.plate.Text != ""
}

func (t *carTrack) plateTuple() (string, string) {
	if t.plate == nil {
		return "", ""
	}
	return strings.ReplaceAll(t.plate.Text, " ", ""), t.plate.Type.Value
}

// CarCoalescer serializes vehicle track events per track ID; the same
// state machine as the face side, plus plate images and lane numbers.
type CarCoalescer struct {
	cfg     config.TrackKindConfig
	imgRoot string
	imgURL  string

	dao *dao.Dao
	log *log.Logger
	met *monitoring.Metrics

	in  *queue.Queue[*core.CarTrackEvent]
	out *queue.Queue[*core.Snapshot]

	pool   *SerialPool[carTrack, carEvent]
	tracks map[string]*Holder[carTrack, carEvent]
	readyQ *queue.DelayQueue[string]
	cleanQ *queue.DelayQueue[string]
}

func NewCarCoalescer(cfg *config.Config, d *dao.Dao,
	in *queue.Queue[*core.CarTrackEvent], out *queue.Queue[*core.Snapshot]) *CarCoalescer {

	c := &CarCoalescer{
		cfg:     cfg.Track.Vehicle,
		imgRoot: cfg.ImgRoot,
		imgURL:  cfg.ImgURL,
		dao:     d,
		log:     log.New(log.Writer(), "[CarCoalescer] ", log.LstdFlags),
		met:     monitoring.Get(),
		in:      in,
		out:     out,
		tracks:  make(map[string]*Holder[carTrack, carEvent]),
		readyQ:  queue.NewDelay[string](),
		cleanQ:  queue.NewDelay[string](),
	}
	c.pool = NewSerialPool[carTrack, carEvent](c)
	return c
}

func (c *CarCoalescer) Run(exit <-chan int64) <-chan struct{} {
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

func (c *CarCoalescer) intake(item *core.CarTrackEvent) {
	sid := item.Notify.ID

	if holder, ok := c.tracks[sid]; ok {
		c.pool.Dispatch(holder, carEvent{kind: carEvAppend, item: item})
		return
	}

	track := &carTrack{
		sid:    sid,
		source: item.Notify.Source,
		ts:     item.Ts,
		ready:  c.cfg.RecvMode.Fast,
	}
	track.fold(item)

	holder := NewHolder[carTrack, carEvent](track)
	c.tracks[sid] = holder
	c.met.TracksLive.WithLabelValues("vehicle").Inc()
	c.pool.Dispatch(holder, carEvent{kind: carEvNew})

	c.cleanQ.Insert(sid, c.cfg.ClearDelayDur())
	if !track.ready {
		c.readyQ.Insert(sid, c.cfg.ReadyDelayDur())
	}
}

func (c *CarCoalescer) readyTimeout(sid string) {
	holder, ok := c.tracks[sid]
	if !ok {
		c.log.Printf("error, ready timeout for unknown track %s", sid)
		return
	}
	c.pool.Dispatch(holder, carEvent{kind: carEvTimeout})
}

func (c *CarCoalescer) cleanTimeout(sid string) {
	if _, ok := c.tracks[sid]; ok {
		delete(c.tracks, sid)
		c.met.TracksLive.WithLabelValues("vehicle").Dec()
	}
}

// Len reports how many track IDs are currently live.
func (c *CarCoalescer) Len() int {
	return len(c.tracks)
}

// Process folds one drained batch and drives save / update / publish.
// The camera row is resolved once per batch: lane computation and the
// published snapshot both need it.
func (c *CarCoalescer) Process(data *carTrack, events []carEvent) {
	var newed, appended, delayed bool
	readyOld := data.ready

	for _, ev := range events {
		switch ev.kind {
		case carEvNew:
			newed = true
		case carEvAppend:
			appended = true
			data.fold(ev.item)
		case carEvTimeout:
			delayed = true
		}
	}

	camera, err := c.dao.GetSourceBySid(data.source)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		c.log.Printf("error, load camera %s: %v", data.source, err)
		return
	}

	if newed {
		if err := c.saveTrack(data, camera); err != nil {
			c.log.Printf("error, save cartrack %s: %v", data.sid, err)
			data.invalid = true
			c.met.TracksInvalid.WithLabelValues("vehicle").Inc()
			return
		}
	}

	if !newed && appended {
		if err := c.updateTrack(data, camera); err != nil {
			c.log.Printf("error, update cartrack %s: %v", data.sid, err)
			return
		}
	}

	if appended || delayed {
		data.ready = true
	}
	readyNew := data.ready

	if (newed && readyOld) || (!readyOld && readyNew) {
		if data.invalid {
			c.log.Printf("error, cartrack %s is ready but invalid, skip", data.sid)
		} else {
			c.publish(data, camera)
		}
	}

	data.clearBlobs()
}

// lane maps the vehicle's background rect center into video coordinates
// and locates it among the camera's annotated lane dividers. Cameras
// shooting the side of the road, or without lane annotations, yield 0.
func (c *CarCoalescer) lane(t *carTrack, camera *dao.CfDfsource) int {
	if camera == nil || camera.LaneDesc == "" {
		return 0
	}

	// direction: 0 unknown, 1 head-on, 2 side, 3 tail-on
	var sameDirect bool
	switch camera.Direction {
	case 1:
		sameDirect = false
	case 3:
		sameDirect = true
	default:
		return 0
	}

	bg := t.bgMeta
	if bg.Width == 0 || bg.Height == 0 {
		return 0
	}
	scaleX := float64(bg.VideoWidth) / float64(bg.Width)
	scaleY := float64(bg.VideoHeight) / float64(bg.Height)
	x := float64(bg.Rect.X+bg.Rect.W/2) * scaleX
	y := float64(bg.Rect.Y+bg.Rect.H/2) * scaleY

	num, err := VehicleLane(int64(x), int64(y), camera.LaneDesc, sameDirect)
	if err != nil {
		c.log.Printf("error, lane for %s: %v, desc %q", t.sid, err, camera.LaneDesc)
		return 0
	}
	return num
}

func (t *carTrack) row(now time.Time, laneNum int) *dao.CfCartrack {
	var imgIds strings.Builder
	for i := range t.vehicles {
		if i > 0 {
			imgIds.WriteByte(',')
		}
		fmt.Fprintf(&imgIds, "%d:1.0", i+1)
	}

	po := &dao.CfCartrack{
		Sid:         t.sid,
		SrcSid:      t.source,
		ImgIds:      imgIds.String(),
		LaneNum:     laneNum,
		CaptureTime: t.ts,
		GmtCreate:   now,
		GmtModified: now,
	}
	if t.hasPlate() {
		po.PlateJudged = 1
		po.PlateContent, po.PlateType = t.plateTuple()
		po.PlateConf = t.plate.Type.Conf
	}
	if t.props != nil {
		po.VehicleJudged = 1
		p := propsFromNotify(t.props)
		po.MoveDirect = int(p.MoveDirect)
		po.CarDirect = p.Direct
		po.CarColor = p.Color
		po.CarBrand = p.Brand
		po.CarTopSeries = p.TopSeries
		po.CarSeries = p.Series
		po.CarTopType = p.TopType
		po.CarMidType = p.MidType
	}
	return po
}

func propsFromNotify(p *core.CarNotifyProps) core.VehicleProps {
	n := &core.CarNotify{Props: p}
	return n.PropsTuple()
}

func (c *CarCoalescer) writeImages(t *carTrack, from int) error {
	if err := imgstore.PrepareDir(imgstore.CarTrackDir(c.imgRoot, t.sid)); err != nil {
		return err
	}

	for i := from; i < len(t.vehicles); i++ {
		if err := imgstore.WriteJpg(imgstore.CarTrackImgPath(c.imgRoot, t.sid, int64(i+1)), t.vehicles[i]); err != nil {
			return err
		}
	}
	if len(t.bg) > 0 {
		if err := imgstore.WriteJpg(imgstore.CarTrackBgPath(c.imgRoot, t.sid), t.bg); err != nil {
			return err
		}
	}
	if t.hasPlate() && len(t.plateImg) > 0 {
		if err := imgstore.WriteJpg(imgstore.CarTrackPlatePath(c.imgRoot, t.sid), t.plateImg); err != nil {
			return err
		}
	}
	if t.plate != nil && t.plate.BinaryFile != "" && len(t.plateBin) > 0 {
		if err := imgstore.WriteJpg(imgstore.CarTrackPlateBinPath(c.imgRoot, t.sid), t.plateBin); err != nil {
			return err
		}
	}
	return nil
}

func (c *CarCoalescer) saveTrack(t *carTrack, camera *dao.CfDfsource) error {
	if err := c.writeImages(t, 0); err != nil {
		return err
	}
	if _, err := c.dao.SaveCartrack(t.row(time.Now(), c.lane(t, camera))); err != nil {
		return err
	}
	t.wp = len(t.vehicles)
	return nil
}

func (c *CarCoalescer) updateTrack(t *carTrack, camera *dao.CfDfsource) error {
	if err := c.writeImages(t, t.wp); err != nil {
		return err
	}
	if err := c.dao.UpdateCartrackImgs(t.row(time.Now(), c.lane(t, camera))); err != nil {
		return err
	}
	t.wp = len(t.vehicles)
	return nil
}

func (c *CarCoalescer) publish(t *carTrack, camera *dao.CfDfsource) {
	imgURLs := make([]string, 0, len(t.vehicles))
	for i := range t.vehicles {
		imgURLs = append(imgURLs, imgstore.CarTrackImgURL(c.imgURL, t.sid, int64(i+1)))
	}

	var plate *core.PlateHit
	if t.hasPlate() {
		content, plateType := t.plateTuple()
		plate = &core.PlateHit{
			Content:   content,
			PlateType: plateType,
			ImgURL:    imgstore.CarTrackPlateURL(c.imgURL, t.sid),
		}
	}

	var props *core.VehicleProps
	if t.props != nil {
		p := propsFromNotify(t.props)
		props = &p
	}

	snap := &core.CarSnap{
		Sid: t.sid,
		Car: core.CarInfo{
			Sid:     t.sid,
			Source:  t.source,
			ImgURLs: imgURLs,
			Plate:   plate,
			Props:   props,
			BgURL:   imgstore.CarTrackBgURL(c.imgURL, t.sid),
			Ts:      t.ts,
		},
		Camera: snapshot.Camera(camera),
	}

	c.out.Push(&core.Snapshot{CT: snap})
	c.met.TracksPublished.WithLabelValues("vehicle").Inc()
}
