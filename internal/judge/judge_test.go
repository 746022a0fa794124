package judge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
)

func openTestDao(t *testing.T) *dao.Dao {
	t.Helper()
	d, err := dao.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func judgeConfig(wlFace, wlCar bool) *config.Config {
	return &config.Config{
		ImgURL: "http://127.0.0.1:7001/getsingleimg",
		Track: config.TrackConfig{
			Face:    config.TrackKindConfig{WLAlarm: wlFace},
			Vehicle: config.TrackKindConfig{WLAlarm: wlCar},
		},
	}
}

func seedFaceMatch(t *testing.T, d *dao.Dao, bwFlag, threshold int) {
	t.Helper()
	now := time.Now()
	_, err := d.InsertDfdb(&dao.CfDfdb{
		DbSid: "db-a", Name: "watchlist", NodeSid: "n1",
		Capacity: 10000, AutoMatch: 1, FpFlag: 1, BwFlag: bwFlag,
	})
	require.NoError(t, err)
	_, err = d.SavePoisBatch([]dao.CfPoi{{
		PoiSid: "p1", DbSid: "db-a", Name: "张三", Threshold: threshold,
		FeatureIds: "1:0.95", Cover: 1, GmtCreate: now, GmtModified: now,
	}}, nil)
	require.NoError(t, err)
	_, err = d.SaveFacetrack(&dao.CfFacetrack{
		FtSid: "T1", SrcSid: "cam-1", ImgIds: "1:0.9",
		CaptureTime: now, GmtCreate: now, GmtModified: now,
	})
	require.NoError(t, err)
}

func matchedFaceSnap(score int64) *core.Snapshot {
	return &core.Snapshot{FT: &core.FaceSnap{
		Sid:  "T1",
		Face: core.FaceInfo{Sid: "T1", Source: "cam-1", Matched: true},
		MatchPoi: &core.PersonHit{
			Sid: "p1", Score: score, DbSid: "db-a", DbName: "watchlist", BwFlag: 1,
		},
	}}
}

func TestFaceJudgeBlacklistAlarm(t *testing.T) {
	d := openTestDao(t)
	seedFaceMatch(t, d, 1, 80)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewFaceJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	snap := matchedFaceSnap(95)
	j.judge(snap.FT)

	assert.True(t, snap.FT.Face.Judged)
	assert.True(t, snap.FT.Face.Alarmed)
	require.NotNil(t, snap.FT.MatchPoi)
	assert.Equal(t, "张三", snap.FT.MatchPoi.Name)
	assert.Equal(t, int64(80), snap.FT.MatchPoi.Threshold)
	assert.NotEmpty(t, snap.FT.MatchPoi.ImgsURL)
	assert.NotEmpty(t, snap.FT.MatchPoi.CoverURL)

	row, err := d.GetFacetrackBySid("T1")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Matched)
	assert.Equal(t, 1, row.Judged)
	assert.Equal(t, 1, row.Alarmed)
	assert.Equal(t, "p1", row.MostPerson)
	assert.InDelta(t, 95, row.MostScore, 0.001)
}

func TestFaceJudgeBelowThresholdNoAlarm(t *testing.T) {
	d := openTestDao(t)
	seedFaceMatch(t, d, 1, 80)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewFaceJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	snap := matchedFaceSnap(60)
	j.judge(snap.FT)

	assert.False(t, snap.FT.Face.Judged)
	assert.False(t, snap.FT.Face.Alarmed)
	require.NotNil(t, snap.FT.MatchPoi)
	assert.Equal(t, "张三", snap.FT.MatchPoi.Name)
}

func TestFaceJudgeWhitelistAlarmsStrangers(t *testing.T) {
	d := openTestDao(t)
	seedFaceMatch(t, d, 2, 80)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewFaceJudge(judgeConfig(true, false), d, in, out)
	require.NoError(t, err)

	// recognized whitelist member passes
	member := matchedFaceSnap(95)
	member.FT.MatchPoi.BwFlag = 2
	j.judge(member.FT)
	assert.True(t, member.FT.Face.Judged)
	assert.False(t, member.FT.Face.Alarmed)

	// unmatched face alarms
	now := time.Now()
	_, err = d.SaveFacetrack(&dao.CfFacetrack{
		FtSid: "T2", SrcSid: "cam-1", ImgIds: "1:0.9",
		CaptureTime: now, GmtCreate: now, GmtModified: now,
	})
	require.NoError(t, err)

	stranger := &core.Snapshot{FT: &core.FaceSnap{
		Sid:  "T2",
		Face: core.FaceInfo{Sid: "T2", Source: "cam-1", Matched: true},
	}}
	j.judge(stranger.FT)
	assert.False(t, stranger.FT.Face.Judged)
	assert.True(t, stranger.FT.Face.Alarmed)
}

func TestFaceJudgeVanishedPersonDropsMatch(t *testing.T) {
	d := openTestDao(t)
	seedFaceMatch(t, d, 1, 80)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewFaceJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	snap := matchedFaceSnap(95)
	snap.FT.MatchPoi.Sid = "gone"
	j.judge(snap.FT)

	assert.Nil(t, snap.FT.MatchPoi)
	assert.False(t, snap.FT.Face.Judged)
	assert.False(t, snap.FT.Face.Alarmed)
}

func TestFaceJudgeRunForwardsSnapshots(t *testing.T) {
	d := openTestDao(t)
	seedFaceMatch(t, d, 1, 80)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewFaceJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	exits := runtime.NewBroadcast()
	done := j.Run(exits.Subscribe())

	in.Push(matchedFaceSnap(95))
	select {
	case snap := <-out.Out():
		assert.True(t, snap.FT.Face.Alarmed)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot within 2s")
	}

	exits.Send(runtime.ExitCode)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("judge did not stop")
	}
}

func seedCarMatch(t *testing.T, d *dao.Dao, bwFlag int) {
	t.Helper()
	now := time.Now()
	_, err := d.InsertCoiGroup(&dao.CfCoiGroup{Sid: "g1", Name: "wanted", BwFlag: bwFlag})
	require.NoError(t, err)
	_, err = d.InsertCoi(&dao.CfCoi{
		Sid: "v1", GroupSid: "g1", PlateContent: "粤B9BR03", OwnerName: "李四",
	})
	require.NoError(t, err)
	_, err = d.SaveCartrack(&dao.CfCartrack{
		Sid: "C1", SrcSid: "cam-2", ImgIds: "1:1.0",
		CaptureTime: now, GmtCreate: now, GmtModified: now,
	})
	require.NoError(t, err)
}

func carSnap(plate string) *core.Snapshot {
	info := core.CarInfo{Sid: "C1", Source: "cam-2"}
	if plate != "" {
		info.Plate = &core.PlateHit{Content: plate, PlateType: "blue"}
	}
	return &core.Snapshot{CT: &core.CarSnap{Sid: "C1", Car: info}}
}

func TestCarJudgeBlacklistAlarm(t *testing.T) {
	d := openTestDao(t)
	seedCarMatch(t, d, 1)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewCarJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	snap := carSnap("粤B9BR03")
	j.judge(snap.CT)

	require.NotNil(t, snap.CT.MatchCoi)
	assert.Equal(t, "v1", snap.CT.MatchCoi.Sid)
	assert.Equal(t, "wanted", snap.CT.MatchCoi.GroupName)
	assert.Equal(t, "李四", snap.CT.MatchCoi.OwnerName)
	assert.True(t, snap.CT.Car.Alarmed)

	row, err := d.GetCartrackBySid("C1")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Alarmed)
	assert.Equal(t, "v1", row.MostCoi)
}

func TestCarJudgeUnknownPlateNoMatch(t *testing.T) {
	d := openTestDao(t)
	seedCarMatch(t, d, 1)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewCarJudge(judgeConfig(false, false), d, in, out)
	require.NoError(t, err)

	snap := carSnap("京A00001")
	j.judge(snap.CT)
	assert.Nil(t, snap.CT.MatchCoi)
	assert.False(t, snap.CT.Car.Alarmed)

	noPlate := carSnap("")
	j.judge(noPlate.CT)
	assert.Nil(t, noPlate.CT.MatchCoi)
	assert.False(t, noPlate.CT.Car.Alarmed)
}

func TestCarJudgeWhitelistMode(t *testing.T) {
	d := openTestDao(t)
	seedCarMatch(t, d, 2)

	in, out := queue.New[*core.Snapshot](), queue.New[*core.Snapshot]()
	j, err := NewCarJudge(judgeConfig(false, true), d, in, out)
	require.NoError(t, err)

	// registered vehicle passes
	known := carSnap("粤B9BR03")
	j.judge(known.CT)
	assert.False(t, known.CT.Car.Alarmed)

	// unregistered vehicle alarms
	unknown := carSnap("京A00001")
	j.judge(unknown.CT)
	assert.True(t, unknown.CT.Car.Alarmed)
}
