package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/dashboard"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/queue"
)

type fixture struct {
	srv   *Server
	d     *dao.Dao
	faceQ *queue.Queue[*core.FaceTrackEvent]
	carQ  *queue.Queue[*core.CarTrackEvent]
}

func newFixture(t *testing.T, analysisURL string) *fixture {
	t.Helper()

	d, err := dao.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	cfg := &config.Config{
		HTTPPort: 7001,
		ImgRoot:  t.TempDir(),
		Web: config.WebConfig{
			NotifyURL:  "http://127.0.0.1:7001/trackupload",
			ClientNode: config.NodeConfig{Sid: "node-1"},
		},
	}

	faceQ := queue.New[*core.FaceTrackEvent]()
	carQ := queue.New[*core.CarTrackEvent]()
	hub := dashboard.NewHub(dashboard.NewWindow(10), queue.New[*core.Snapshot]())

	srv := NewServer(cfg, d, backend.NewAnalysisClient(analysisURL), hub, faceQ, carQ)
	return &fixture{srv: srv, d: d, faceQ: faceQ, carQ: carQ}
}

type multipartBody struct {
	buf *bytes.Buffer
	w   *multipart.Writer
}

func newMultipart() *multipartBody {
	buf := &bytes.Buffer{}
	return &multipartBody{buf: buf, w: multipart.NewWriter(buf)}
}

func (m *multipartBody) field(name, value string) *multipartBody {
	m.w.WriteField(name, value)
	return m
}

func (m *multipartBody) file(name string, data []byte) *multipartBody {
	fw, _ := m.w.CreateFormFile(name, name+".bin")
	fw.Write(data)
	return m
}

func (m *multipartBody) request(t *testing.T) *http.Request {
	t.Helper()
	require.NoError(t, m.w.Close())
	req := httptest.NewRequest(http.MethodPost, "/trackupload", m.buf)
	req.Header.Set("Content-Type", m.w.FormDataContentType())
	return req
}

func doRequest(f *fixture, req *http.Request) (*httptest.ResponseRecorder, appResponse) {
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	var body appResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestFaceUploadEnqueuesEvent(t *testing.T) {
	f := newFixture(t, "")

	notify := `{"id":"FT01","index":1,"source":"cam-1",` +
		`"background":{"image_file":"bg","rect":{"x":0,"y":0,"w":10,"h":10},"width":1920,"height":1080},` +
		`"faces":[{"aligned_file":"a1","display_file":"d1","feature_file":"f1","quality":0.9}]}`

	req := newMultipart().
		field("type", "facetrack").
		field("json", notify).
		file("bg", []byte("bg-bytes")).
		file("a1", []byte("aligned")).
		file("d1", []byte("display")).
		file("f1", []byte("feature")).
		request(t)

	rec, body := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusOK, body.Status)
	assert.Equal(t, messageSuccess, body.Message)

	ev, ok := f.faceQ.TryPop()
	require.True(t, ok)
	assert.Equal(t, "FT01", ev.Notify.ID)
	assert.Equal(t, []byte("bg-bytes"), ev.Bg)
	require.Len(t, ev.Faces, 1)
	assert.Equal(t, []byte("aligned"), ev.Faces[0].Aligned)
	assert.Equal(t, []byte("feature"), ev.Faces[0].Feature)
}

func TestFaceUploadMissingPartFails(t *testing.T) {
	f := newFixture(t, "")

	notify := `{"id":"FT02","index":1,"source":"cam-1",` +
		`"background":{"image_file":"bg","rect":{"x":0,"y":0,"w":1,"h":1},"width":1,"height":1},` +
		`"faces":[{"aligned_file":"a1","display_file":"d1","quality":0.9}]}`

	req := newMultipart().
		field("type", "facetrack").
		field("json", notify).
		file("bg", []byte("bg-bytes")).
		file("a1", []byte("aligned")).
		request(t)

	rec, body := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusFail, body.Status)
	assert.Contains(t, body.Result, "d1")
	_, ok := f.faceQ.TryPop()
	assert.False(t, ok)
}

func TestCarUploadWithPlate(t *testing.T) {
	f := newFixture(t, "")

	notify := `{"id":"CT01","index":1,"source":"cam-2",` +
		`"background":{"image_file":"bg","video_width":1920,"video_height":1080,"width":960,"height":540,` +
		`"rect":{"x":100,"y":100,"w":50,"h":50}},` +
		`"vehicles":[{"image_file":"v1"}],` +
		`"plate_info":{"image_file":"p1","binary_file":"pb","text":"粤B 9BR03","type":{"value":"blue","conf":0.98}}}`

	req := newMultipart().
		field("type", "vehicletrack").
		field("json", notify).
		file("bg", []byte("bg-bytes")).
		file("v1", []byte("vehicle")).
		file("p1", []byte("plate")).
		file("pb", []byte("plate-bin")).
		request(t)

	rec, body := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusOK, body.Status)

	ev, ok := f.carQ.TryPop()
	require.True(t, ok)
	assert.Equal(t, "CT01", ev.Notify.ID)
	assert.Equal(t, []byte("plate"), ev.Plate)
	assert.Equal(t, []byte("plate-bin"), ev.PlateBin)
	require.Len(t, ev.Vehicles, 1)
}

func TestUploadUnknownType(t *testing.T) {
	f := newFixture(t, "")

	req := newMultipart().field("type", "bicycletrack").request(t)
	rec, body := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusFail, body.Status)
	assert.Contains(t, body.Result, "bicycletrack")
}

func TestGetSingleImgServesStoredImage(t *testing.T) {
	f := newFixture(t, "")

	path := imgstore.FaceTrackSmallPath(f.srv.imgRoot, "FT01", 1)
	require.NoError(t, imgstore.PrepareDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/getsingleimg?cat=0&type=s&id=FT01&subid=1", nil)
	rec, _ := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/getsingleimg?cat=0&type=s&id=missing&subid=1", nil)
	rec, _ = doRequest(f, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/getsingleimg?cat=1&type=bg&id=FT01&subid=", nil)
	rec, _ = doRequest(f, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCameraAddListDelete(t *testing.T) {
	var created, deleted []string
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sid string `json:"sid"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		switch r.URL.Path {
		case "/create_source":
			created = append(created, req.Sid)
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "sid": req.Sid})
		case "/delete_source":
			deleted = append(deleted, req.Sid)
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer analysis.Close()

	f := newFixture(t, analysis.URL)

	add := func(name string) appResponse {
		payload, _ := json.Marshal(cameraAddReq{
			Name: name, URL: "rtsp://10.0.0.9/ch1", GrabType: 3, MinFace: 40,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/cameras", bytes.NewReader(payload))
		_, body := doRequest(f, req)
		return body
	}

	body := add("gate")
	require.Equal(t, statusOK, body.Status)
	sid := body.Result.(string)
	require.Len(t, created, 1)
	assert.Equal(t, sid, created[0])

	// duplicate name is rejected before touching the back-end
	body = add("gate")
	assert.Equal(t, statusFail, body.Status)
	assert.Len(t, created, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/cameras", nil)
	_, body = doRequest(f, req)
	require.Equal(t, statusOK, body.Status)
	list := body.Result.([]interface{})
	require.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/cameras/"+sid, nil)
	_, body = doRequest(f, req)
	require.Equal(t, statusOK, body.Status)

	req = httptest.NewRequest(http.MethodDelete, "/api/cameras/"+sid, nil)
	_, body = doRequest(f, req)
	require.Equal(t, statusOK, body.Status)
	assert.Equal(t, []string{sid}, deleted)

	_, err := f.d.GetSourceBySid(sid)
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestCameraAddRollsBackOnBackendFailure(t *testing.T) {
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 9, "msg": "node full"})
	}))
	defer analysis.Close()

	f := newFixture(t, analysis.URL)

	payload, _ := json.Marshal(cameraAddReq{
		Name: "gate", URL: "rtsp://10.0.0.9/ch1", GrabType: 1, MinFace: 40,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cameras", bytes.NewReader(payload))
	_, body := doRequest(f, req)
	assert.Equal(t, statusFail, body.Status)

	sources, err := f.d.LoadSources()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec, _ := doRequest(f, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	f.d.Close()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec, _ = doRequest(f, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
