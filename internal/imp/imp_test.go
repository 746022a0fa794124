package imp

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestDirFilterAcceptsBySizeExtAndPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"张三_110101.jpg": "large enough",
		"李四_220202.JPG": "large enough",
		"tiny_330303.jpg": "x",
		"张三_110101.png": "large enough",
		"badname.jpg":     "large enough",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	f := NewDirFilter(dir, []string{"jpg"}, regexp.MustCompile(`^(.+)_(\d+)$`), 4)
	require.NoError(t, f.Scan())

	assert.Equal(t, 6, f.Count)
	require.Len(t, f.Targets, 2)
	assert.Equal(t, 0, f.Targets[0].Index)
	assert.Equal(t, 1, f.Targets[1].Index)
	assert.Len(t, f.GoodSamples, 2)
	assert.NotEmpty(t, f.BadSamples)
}

func TestDirFilterEmptyExtListAcceptsAll(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"王五_440404.bmp": "large enough",
	})

	f := NewDirFilter(dir, nil, regexp.MustCompile(`^(.+)_(\d+)$`), 0)
	require.NoError(t, f.Scan())
	assert.Len(t, f.Targets, 1)
}

func TestPersonInfoFromFilename(t *testing.T) {
	re := regexp.MustCompile(`^(.+)-([男女])-(\d+)$`)
	props := []string{"name", "sex", "idcard"}

	info, err := PersonInfoFromFilename("李四-女-330102199001011234.jpg", re, props)
	require.NoError(t, err)
	assert.Equal(t, "李四", info.Name)
	assert.Equal(t, 2, info.Gender)
	assert.Equal(t, "330102199001011234", info.IdentityCard)

	_, err = PersonInfoFromFilename("nomatch.jpg", re, props)
	assert.Error(t, err)
}

func TestPersonInfoNameFallsBackToIdcard(t *testing.T) {
	re := regexp.MustCompile(`^(\d+)$`)
	info, err := PersonInfoFromFilename("110101.jpg", re, []string{"idcard"})
	require.NoError(t, err)
	assert.Equal(t, "110101", info.Name)
}

func TestCheckProps(t *testing.T) {
	assert.True(t, CheckProps([]string{"name", "Sex", "IDCARD", "memo"}))
	assert.True(t, CheckProps(nil))
	assert.False(t, CheckProps([]string{"name", "age"}))
}

func TestStageStatFlowsCountsDownstream(t *testing.T) {
	s := NewStageStat(3, 3)

	s.ProcessEvent(StageEvent{Stage: 0, Succ: 1})
	s.ProcessEvent(StageEvent{Stage: 0, Succ: 1})
	s.ProcessEvent(StageEvent{Stage: 0, Fail: 1})
	assert.False(t, s.IsDone())

	// the two detect successes become the create stage workload
	s.ProcessEvent(StageEvent{Stage: 1, Succ: 2})
	s.ProcessEvent(StageEvent{Stage: 2, Succ: 1, Fail: 1})
	assert.True(t, s.IsDone())

	assert.Equal(t, 3, s.TaskCount())
	assert.Equal(t, 1, s.TaskSucc())
}

func TestStageStatShortCircuitsOnStarvedStage(t *testing.T) {
	s := NewStageStat(3, 2)
	s.ProcessEvent(StageEvent{Stage: 0, Fail: 2})
	assert.True(t, s.IsDone())
	assert.Equal(t, 0, s.TaskSucc())
}

func TestPipelineEnrollsPersons(t *testing.T) {
	imgDir := t.TempDir()
	imgRoot := t.TempDir()
	writeFiles(t, imgDir, map[string]string{
		"张三_110101.jpg": "face bytes one",
		"李四_220202.jpg": "face bytes two",
	})

	var mu sync.Mutex
	var createdIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detect":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 0,
				"faces": []map[string]interface{}{{
					"aligned": base64.StdEncoding.EncodeToString([]byte("crop")),
					"feature": "ZmVhdHVyZQ==",
					"quality": 0.88,
				}},
			})
		case "/create_persons":
			var req struct {
				Db  string   `json:"db"`
				IDs []string `json:"ids"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			createdIDs = append(createdIDs, req.IDs...)
			mu.Unlock()

			persons := make([]map[string]interface{}, 0, len(req.IDs))
			for _, id := range req.IDs {
				persons = append(persons, map[string]interface{}{
					"id": id, "faces": []int64{7},
				})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "persons": persons})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	d, err := dao.Open(filepath.Join(t.TempDir(), "imp.db"))
	require.NoError(t, err)
	defer d.Close()

	re := regexp.MustCompile(`^(.+)_(\d+)$`)
	props := []string{"name", "idcard"}

	filter := NewDirFilter(imgDir, []string{"jpg"}, re, 0)
	require.NoError(t, filter.Scan())
	require.Len(t, filter.Targets, 2)

	files := queue.New[FileItem]()
	feaQ := queue.New[*FeaItem]()
	createQ := queue.New[*CreateItem]()
	statQ := queue.New[StageEvent]()
	for _, item := range filter.Targets {
		files.Push(item)
	}

	recg := backend.NewRecognitionClient(srv.URL)
	exits := runtime.NewBroadcast()
	repo := runtime.NewRepo(exits)

	repo.Start("stat", NewStageStatService(len(filter.Targets), statQ, exits))
	repo.Start("detect", NewDetector(imgDir, imgRoot, 0, recg, files, feaQ, statQ))
	repo.Start("create", NewCreator("db-imp", imgRoot, 10, 0, recg, feaQ, createQ, statQ))
	repo.Start("save", NewSaver("db-imp", "imp-2026", 80, 10, re, props, d, createQ, statQ))

	joined := make(chan struct{})
	go func() {
		repo.Join()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	mu.Lock()
	ids := append([]string(nil), createdIDs...)
	mu.Unlock()
	require.Len(t, ids, 2)

	names := map[string]bool{}
	for _, id := range ids {
		po, err := d.GetPoiBySid(id)
		require.NoError(t, err)
		names[po.Name] = true
		assert.Equal(t, "db-imp", po.DbSid)
		assert.Equal(t, 80, po.Threshold)
		assert.Equal(t, "imp-2026", po.ImpTag)
		assert.Equal(t, "7:0.88", po.FeatureIds)

		// aligned crop renamed to the assigned face id
		_, err = os.Stat(imgstore.PersonImgPath(imgRoot, id, 7))
		assert.NoError(t, err)
	}
	assert.True(t, names["张三"])
	assert.True(t, names["李四"])
}
