// Package dashboard maintains the rolling window of recent tracks and
// the running counters shown on the live view, and pushes both to
// connected websocket clients.
package dashboard

import (
	"github.com/visionmesh/trackd/internal/core"
)

// Stat carries the running totals since the database was created.
type Stat struct {
	TotalFaceCount int64 `json:"total_face_count"`
	TotalFaceAlarm int64 `json:"total_face_alarm"`
	TotalCarCount  int64 `json:"total_car_count"`
	TotalCarAlarm  int64 `json:"total_car_alarm"`
}

// Message is one websocket frame: the counters plus either the full
// window (on connect) or the newly arrived tracks (on update).
type Message struct {
	Stat  Stat             `json:"stat"`
	Track []*core.Snapshot `json:"track"`
}

// Window is the bounded buffer of the most recent tracks. It is not
// goroutine safe; the hub owns it from a single loop.
type Window struct {
	cap  int
	buf  []*core.Snapshot
	stat Stat
}

func NewWindow(cap int) *Window {
	return &Window{cap: cap}
}

// Append folds new tracks into the window and returns the delta to
// broadcast. When the batch exceeds the window size only the newest
// cap entries are returned.
func (w *Window) Append(items []*core.Snapshot) []*core.Snapshot {
	delta := items
	if len(items) > w.cap {
		delta = items[len(items)-w.cap:]
	}
	for _, it := range items {
		w.add(it)
	}
	return delta
}

func (w *Window) add(it *core.Snapshot) {
	w.count(it)
	if len(w.buf) >= w.cap {
		w.buf = w.buf[1:]
	}
	w.buf = append(w.buf, it)
}

func (w *Window) count(it *core.Snapshot) {
	switch {
	case it.FT != nil:
		w.stat.TotalFaceCount++
		if it.FT.Face.Alarmed {
			w.stat.TotalFaceAlarm++
		}
	case it.CT != nil:
		w.stat.TotalCarCount++
		if it.CT.Car.Alarmed {
			w.stat.TotalCarAlarm++
		}
	}
}

// Snapshot is the full-window message sent to a freshly connected
// client.
func (w *Window) Snapshot() Message {
	track := make([]*core.Snapshot, len(w.buf))
	copy(track, w.buf)
	return Message{Stat: w.stat, Track: track}
}

// Delta wraps freshly appended tracks with the current counters.
func (w *Window) Delta(items []*core.Snapshot) Message {
	return Message{Stat: w.stat, Track: items}
}
