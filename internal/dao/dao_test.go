package dao

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDao(t *testing.T) *Dao {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleFacetrack(sid string, capture time.Time) *CfFacetrack {
	now := time.Now()
	return &CfFacetrack{
		FtSid:       sid,
		SrcSid:      "cam-1",
		ImgIds:      "1:0.9",
		CaptureTime: capture,
		GmtCreate:   now,
		GmtModified: now,
	}
}

func TestFacetrackInsertUpdateLoad(t *testing.T) {
	d := openTestDao(t)

	id, err := d.SaveFacetrack(sampleFacetrack("T1", time.Now()))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	upd := sampleFacetrack("T1", time.Now())
	upd.ImgIds = "1:0.9,2:0.8"
	upd.Age = 33
	require.NoError(t, d.UpdateFacetrackImgs(upd))
	require.NoError(t, d.UpdateFacetrackJudge("T1", 1, 1, 0, "P9", 88.5, time.Now()))

	po, err := d.GetFacetrackBySid("T1")
	require.NoError(t, err)
	assert.Equal(t, "1:0.9,2:0.8", po.ImgIds)
	assert.Equal(t, 33, po.Age)
	assert.Equal(t, 1, po.Matched)
	assert.Equal(t, 1, po.Judged)
	assert.Equal(t, 0, po.Alarmed)
	assert.Equal(t, "P9", po.MostPerson)
	assert.InDelta(t, 88.5, po.MostScore, 0.001)
}

func TestUpdateFacetrackImgsRequiresRow(t *testing.T) {
	d := openTestDao(t)
	err := d.UpdateFacetrackImgs(sampleFacetrack("missing", time.Now()))
	assert.Error(t, err)
}

func TestFacetrackCountsAndEldest(t *testing.T) {
	d := openTestDao(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		po := sampleFacetrack("T"+string(rune('A'+i)), base.Add(time.Duration(i)*time.Minute))
		_, err := d.SaveFacetrack(po)
		require.NoError(t, err)
	}
	require.NoError(t, d.UpdateFacetrackJudge("TA", 1, 1, 1, "P1", 90, time.Now()))

	total, alarmed, err := d.CountFacetracks()
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(1), alarmed)

	eldest, err := d.LoadEldestFacetracks(2)
	require.NoError(t, err)
	require.Len(t, eldest, 2)
	assert.Equal(t, "TA", eldest[0].Sid)

	deleted, err := d.DeleteFacetracksUpTo(eldest[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	total, _, err = d.CountFacetracks()
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestLatestFacetracksOrder(t *testing.T) {
	d := openTestDao(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		po := sampleFacetrack("T"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
		_, err := d.SaveFacetrack(po)
		require.NoError(t, err)
	}

	latest, err := d.LoadLatestFacetracks(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "T2", latest[0].FtSid)
	assert.Equal(t, "T1", latest[1].FtSid)
}

func TestCartrackRoundTrip(t *testing.T) {
	d := openTestDao(t)
	now := time.Now()

	po := &CfCartrack{
		Sid:          "C1",
		SrcSid:       "cam-2",
		ImgIds:       "1:1",
		PlateJudged:  1,
		PlateContent: "粤B9BR03",
		PlateType:    "blue",
		CaptureTime:  now,
		GmtCreate:    now,
		GmtModified:  now,
	}
	_, err := d.SaveCartrack(po)
	require.NoError(t, err)

	po.ImgIds = "1:1,2:1"
	po.VehicleJudged = 1
	po.CarColor = "white"
	require.NoError(t, d.UpdateCartrackImgs(po))
	require.NoError(t, d.UpdateCartrackJudge("C1", 1, "V7", time.Now()))

	got, err := d.GetCartrackBySid("C1")
	require.NoError(t, err)
	assert.Equal(t, "1:1,2:1", got.ImgIds)
	assert.Equal(t, 1, got.Alarmed)
	assert.Equal(t, "V7", got.MostCoi)
	assert.Equal(t, "粤B9BR03", got.PlateContent)
	assert.Equal(t, "white", got.CarColor)
}

func TestPoiBatchSaveTolerance(t *testing.T) {
	d := openTestDao(t)
	now := time.Now()

	mk := func(sid string) CfPoi {
		return CfPoi{
			PoiSid:      sid,
			DbSid:       "db-1",
			Name:        "name-" + sid,
			FeatureIds:  "1:1",
			GmtCreate:   now,
			GmtModified: now,
		}
	}

	// duplicate sid in one batch exercises per-row tolerance
	batch := []CfPoi{mk("p1"), mk("p2"), mk("p1")}
	var failed []string
	succ, err := d.SavePoisBatch(batch, func(po *CfPoi, err error) {
		failed = append(failed, po.PoiSid)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, succ)
	assert.Equal(t, []string{"p1"}, failed)

	got, err := d.GetPoiBySid("p2")
	require.NoError(t, err)
	assert.Equal(t, "name-p2", got.Name)
}

func TestAutoMatchDbFilter(t *testing.T) {
	d := openTestDao(t)

	_, err := d.InsertDfdb(&CfDfdb{DbSid: "db-a", Name: "a", NodeSid: "n", AutoMatch: 1, FpFlag: 1, BwFlag: 1})
	require.NoError(t, err)
	_, err = d.InsertDfdb(&CfDfdb{DbSid: "db-b", Name: "b", NodeSid: "n", AutoMatch: 0, FpFlag: 1, BwFlag: 2})
	require.NoError(t, err)
	_, err = d.InsertDfdb(&CfDfdb{DbSid: "db-c", Name: "c", NodeSid: "n", AutoMatch: 1, FpFlag: 0, BwFlag: 2})
	require.NoError(t, err)

	all, err := d.LoadDfdbs()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	auto, err := d.LoadAutoMatchDbs()
	require.NoError(t, err)
	require.Len(t, auto, 1)
	assert.Equal(t, "db-a", auto[0].DbSid)
}

func TestCoiLookupByPlate(t *testing.T) {
	d := openTestDao(t)

	_, err := d.InsertCoiGroup(&CfCoiGroup{Sid: "g-black", Name: "black", BwFlag: 1})
	require.NoError(t, err)
	_, err = d.InsertCoi(&CfCoi{Sid: "v1", GroupSid: "g-black", PlateContent: "粤B9BR03"})
	require.NoError(t, err)

	coi, err := d.GetCoiByPlate("粤B9BR03")
	require.NoError(t, err)
	assert.Equal(t, "v1", coi.Sid)

	_, err = d.GetCoiByPlate("unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	groups, err := d.LoadCoiGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].BwFlag)
}

func TestSourceRoundTrip(t *testing.T) {
	d := openTestDao(t)

	_, err := d.InsertSource(&CfDfsource{
		SrcSid:    "cam-1",
		Name:      "gate",
		NodeSid:   "n1",
		SrcURL:    "rtsp://1",
		PushURL:   "rtmp://1",
		IP:        "10.0.0.9",
		Direction: 3,
		LaneDesc:  `{"lines":[{"top":{"x":100,"y":0},"btm":{"x":80,"y":720}},{"top":{"x":300,"y":0},"btm":{"x":320,"y":720}}]}`,
		LaneCount: 2,
	})
	require.NoError(t, err)

	src, err := d.GetSourceBySid("cam-1")
	require.NoError(t, err)
	assert.Equal(t, "gate", src.Name)
	assert.Equal(t, 3, src.Direction)

	_, err = d.GetSourceBySid("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := d.LoadSources()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
