package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/visionmesh/trackd/internal/core"
)

const maxUploadMemory = 32 << 20

// handleTrackUpload receives one multipart track notification. The
// "type" field routes it, the "json" field carries the track JSON and
// every image referenced there arrives as a file part under the name
// the JSON uses.
func (s *Server) handleTrackUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Warn("track upload: bad multipart", "error", err)
		fail(w, "bad multipart form")
		return
	}

	switch kind := r.FormValue("type"); kind {
	case "facetrack":
		s.handleFace(w, r)
	case "vehicletrack":
		s.handleCar(w, r)
	case "":
		fail(w, "param: type not found")
	default:
		s.met.IntakeRejected.WithLabelValues("unknown", "bad_type").Inc()
		fail(w, fmt.Sprintf("unknown type, %s", kind))
	}
}

func (s *Server) handleFace(w http.ResponseWriter, r *http.Request) {
	jsonStr := r.FormValue("json")
	if jsonStr == "" {
		s.met.IntakeRejected.WithLabelValues("face", "missing_part").Inc()
		fail(w, "param: json not found")
		return
	}

	var notify core.FaceNotify
	if err := json.Unmarshal([]byte(jsonStr), &notify); err != nil {
		slog.Warn("face upload: bad json", "error", err)
		s.met.IntakeRejected.WithLabelValues("face", "bad_json").Inc()
		fail(w, "json parse fail")
		return
	}
	slog.Debug("recv track", "id", notify.ID, "index", notify.Index, "kind", "ft")

	bg, err := s.filePart(r, notify.Background.ImageFile)
	if err != nil {
		s.met.IntakeRejected.WithLabelValues("face", "missing_part").Inc()
		fail(w, err.Error())
		return
	}

	faces := make([]core.FacePayload, 0, len(notify.Faces))
	for i := range notify.Faces {
		f := &notify.Faces[i]
		var p core.FacePayload

		if p.Aligned, err = s.filePart(r, f.AlignedFile); err != nil {
			s.met.IntakeRejected.WithLabelValues("face", "missing_part").Inc()
			fail(w, err.Error())
			return
		}
		if p.Display, err = s.filePart(r, f.DisplayFile); err != nil {
			s.met.IntakeRejected.WithLabelValues("face", "missing_part").Inc()
			fail(w, err.Error())
			return
		}
		if f.FeatureFile != "" {
			if p.Feature, err = s.filePart(r, f.FeatureFile); err != nil {
				s.met.IntakeRejected.WithLabelValues("face", "missing_part").Inc()
				fail(w, err.Error())
				return
			}
		}
		faces = append(faces, p)
	}

	s.faceQ.Push(&core.FaceTrackEvent{
		Notify: notify,
		Bg:     bg,
		Faces:  faces,
		Ts:     time.Now(),
	})
	s.met.IntakeTotal.WithLabelValues("face").Inc()
	success(w, "ok")
}

func (s *Server) handleCar(w http.ResponseWriter, r *http.Request) {
	jsonStr := r.FormValue("json")
	if jsonStr == "" {
		s.met.IntakeRejected.WithLabelValues("vehicle", "missing_part").Inc()
		fail(w, "param: json not found")
		return
	}

	var notify core.CarNotify
	if err := json.Unmarshal([]byte(jsonStr), &notify); err != nil {
		slog.Warn("vehicle upload: bad json", "error", err)
		s.met.IntakeRejected.WithLabelValues("vehicle", "bad_json").Inc()
		fail(w, "json parse fail")
		return
	}
	slog.Debug("recv track", "id", notify.ID, "index", notify.Index, "kind", "ct")

	bg, err := s.filePart(r, notify.Background.ImageFile)
	if err != nil {
		s.met.IntakeRejected.WithLabelValues("vehicle", "missing_part").Inc()
		fail(w, err.Error())
		return
	}

	vehicles := make([][]byte, 0, len(notify.Vehicles))
	for _, v := range notify.Vehicles {
		img, err := s.filePart(r, v.ImageFile)
		if err != nil {
			s.met.IntakeRejected.WithLabelValues("vehicle", "missing_part").Inc()
			fail(w, err.Error())
			return
		}
		vehicles = append(vehicles, img)
	}

	var plate, plateBin []byte
	if notify.HasPlateInfo() {
		if notify.PlateInfo.ImageFile == "" {
			slog.Warn("vehicle upload: plate text without plate image", "id", notify.ID)
		} else if plate, err = s.filePart(r, notify.PlateInfo.ImageFile); err != nil {
			s.met.IntakeRejected.WithLabelValues("vehicle", "missing_part").Inc()
			fail(w, err.Error())
			return
		}
	}
	if notify.HasPlateBinary() {
		if plateBin, err = s.filePart(r, notify.PlateInfo.BinaryFile); err != nil {
			s.met.IntakeRejected.WithLabelValues("vehicle", "missing_part").Inc()
			fail(w, err.Error())
			return
		}
	}

	s.carQ.Push(&core.CarTrackEvent{
		Notify:   notify,
		Bg:       bg,
		Vehicles: vehicles,
		Plate:    plate,
		PlateBin: plateBin,
		Ts:       time.Now(),
	})
	s.met.IntakeTotal.WithLabelValues("vehicle").Inc()
	success(w, "ok")
}

// filePart reads the named multipart file part in full.
func (s *Server) filePart(r *http.Request, name string) ([]byte, error) {
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, fmt.Errorf("can't find para: %s", name)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read para: %s", name)
	}
	return data, nil
}
