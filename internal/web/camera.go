package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/visionmesh/trackd/internal/dao"
)

// CameraItem is the admin-API view of one camera row.
type CameraItem struct {
	ID        int64  `json:"id"`
	Sid       string `json:"sid"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	State     int    `json:"state"`
	GrabType  int    `json:"grab_type"`
	Direction int    `json:"direction"`
	LaneCount int    `json:"lane_count"`
	Memo      string `json:"memo,omitempty"`
}

func cameraItem(po *dao.CfDfsource) CameraItem {
	return CameraItem{
		ID:        po.ID,
		Sid:       po.SrcSid,
		Name:      po.Name,
		URL:       po.SrcURL,
		State:     po.SrcState,
		GrabType:  po.GrabType,
		Direction: po.Direction,
		LaneCount: po.LaneCount,
		Memo:      po.Memo,
	}
}

func (s *Server) handleCameraList(w http.ResponseWriter, r *http.Request) {
	sources, err := s.d.LoadSources()
	if err != nil {
		slog.Warn("camera list", "error", err)
		fail(w, err.Error())
		return
	}

	items := make([]CameraItem, 0, len(sources))
	for i := range sources {
		items = append(items, cameraItem(&sources[i]))
	}
	success(w, items)
}

func (s *Server) handleCameraDetail(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	po, err := s.d.GetSourceBySid(sid)
	if errors.Is(err, dao.ErrNotFound) {
		fail(w, "camera not found")
		return
	}
	if err != nil {
		slog.Warn("camera detail", "sid", sid, "error", err)
		fail(w, err.Error())
		return
	}
	success(w, cameraItem(po))
}

// cameraAddReq registers a new capture source. GrabType selects what
// the camera captures: 1 faces, 2 vehicles, 3 both.
type cameraAddReq struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	GrabType int    `json:"grab_type"`
	MinFace  int    `json:"min_face"`
}

// sourceConfig is the per-camera config pushed to the analysis
// back-end with create_source.
type sourceConfig struct {
	EnableFace    bool `json:"enable_face"`
	EnableVehicle bool `json:"enable_vehicle"`
	Face          struct {
		MinWidth int `json:"min_width"`
	} `json:"face"`
}

func (req *cameraAddReq) validate() string {
	if l := len(req.Name); l < 1 || l > 50 {
		return "invalid name"
	}
	if l := len(req.URL); l < 1 || l > 300 {
		return "invalid url"
	}
	if req.GrabType < 1 || req.GrabType > 3 {
		return "invalid grab_type"
	}
	if req.MinFace < 1 || req.MinFace > 1000 {
		return "invalid min_face"
	}
	return ""
}

// handleCameraAdd inserts the row first and registers the source with
// the analysis back-end after; a failed back-end call rolls the row
// back so the two stay consistent.
func (s *Server) handleCameraAdd(w http.ResponseWriter, r *http.Request) {
	var req cameraAddReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "bad request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if msg := req.validate(); msg != "" {
		fail(w, msg)
		return
	}

	if _, err := s.d.GetSourceByName(req.Name); err == nil {
		fail(w, "camera name exists")
		return
	} else if !errors.Is(err, dao.ErrNotFound) {
		fail(w, err.Error())
		return
	}

	cfg := sourceConfig{
		EnableFace:    req.GrabType == 1 || req.GrabType == 3,
		EnableVehicle: req.GrabType == 2 || req.GrabType == 3,
	}
	cfg.Face.MinWidth = req.MinFace
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		fail(w, err.Error())
		return
	}

	sid := uuid.New().String()
	po := &dao.CfDfsource{
		SrcSid:    sid,
		Name:      req.Name,
		NodeSid:   s.nodeSid,
		SrcURL:    req.URL,
		PushURL:   s.notifyURL,
		IP:        ipFromRTSP(req.URL),
		SrcState:  1,
		SrcConfig: string(cfgJSON),
		GrabType:  req.GrabType,
	}
	if _, err := s.d.InsertSource(po); err != nil {
		slog.Warn("camera add: insert", "error", err)
		fail(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if _, err := s.analysis.CreateSource(ctx, sid, req.URL, cfgJSON); err != nil {
		slog.Warn("camera add: create_source", "sid", sid, "error", err)
		if derr := s.d.DeleteSource(sid); derr != nil {
			slog.Warn("camera add: rollback", "sid", sid, "error", derr)
		}
		fail(w, err.Error())
		return
	}

	slog.Info("camera registered", "sid", sid, "name", req.Name)
	success(w, sid)
}

// handleCameraDelete removes the source from the analysis back-end and
// then the row. A back-end failure is logged but does not keep the
// row; a camera the back-end no longer knows must not linger locally.
func (s *Server) handleCameraDelete(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	if _, err := s.d.GetSourceBySid(sid); errors.Is(err, dao.ErrNotFound) {
		fail(w, "camera not found")
		return
	} else if err != nil {
		fail(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.analysis.DeleteSource(ctx, sid); err != nil {
		slog.Warn("camera delete: delete_source", "sid", sid, "error", err)
	}

	if err := s.d.DeleteSource(sid); err != nil {
		fail(w, err.Error())
		return
	}
	slog.Info("camera removed", "sid", sid)
	success(w, "ok")
}

// ipFromRTSP extracts the host from a capture URL for display.
func ipFromRTSP(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
