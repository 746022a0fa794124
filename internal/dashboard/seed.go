package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/snapshot"
)

// Seed rebuilds the window from the database so a restart does not
// present an empty dashboard. Rows that fail to convert are skipped;
// the window is best effort.
func Seed(urlPrefix string, cap int, d *dao.Dao) (*Window, error) {
	w := NewWindow(cap)

	totalFace, faceAlarm, err := d.CountFacetracks()
	if err != nil {
		return nil, fmt.Errorf("count face tracks: %w", err)
	}
	totalCar, carAlarm, err := d.CountCartracks()
	if err != nil {
		return nil, fmt.Errorf("count vehicle tracks: %w", err)
	}

	faces, err := d.LoadLatestFacetracks(cap)
	if err != nil {
		return nil, fmt.Errorf("load face tracks: %w", err)
	}
	cars, err := d.LoadLatestCartracks(cap)
	if err != nil {
		return nil, fmt.Errorf("load vehicle tracks: %w", err)
	}

	cameras, err := d.LoadSources()
	if err != nil {
		return nil, fmt.Errorf("load cameras: %w", err)
	}
	dbs, err := d.LoadDfdbs()
	if err != nil {
		return nil, fmt.Errorf("load libraries: %w", err)
	}
	groups, err := d.LoadCoiGroups()
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	cameraBySid := make(map[string]*dao.CfDfsource, len(cameras))
	for i := range cameras {
		cameraBySid[cameras[i].SrcSid] = &cameras[i]
	}
	dbBySid := make(map[string]*dao.CfDfdb, len(dbs))
	for i := range dbs {
		dbBySid[dbs[i].DbSid] = &dbs[i]
	}
	groupBySid := make(map[string]*dao.CfCoiGroup, len(groups))
	for i := range groups {
		groupBySid[groups[i].Sid] = &groups[i]
	}

	var list []*core.Snapshot
	for i := range faces {
		snap := seedFace(urlPrefix, d, &faces[i], cameraBySid, dbBySid)
		if snap != nil {
			list = append(list, snap)
		}
	}
	for i := range cars {
		snap := seedCar(urlPrefix, d, &cars[i], cameraBySid, groupBySid)
		if snap != nil {
			list = append(list, snap)
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return trackTime(list[i]).Before(trackTime(list[j]))
	})
	if len(list) > cap {
		list = list[len(list)-cap:]
	}

	w.buf = list
	w.stat = Stat{
		TotalFaceCount: totalFace,
		TotalFaceAlarm: faceAlarm,
		TotalCarCount:  totalCar,
		TotalCarAlarm:  carAlarm,
	}
	return w, nil
}

func seedFace(urlPrefix string, d *dao.Dao, row *dao.CfFacetrack,
	cameras map[string]*dao.CfDfsource, dbs map[string]*dao.CfDfdb) *core.Snapshot {

	ft, err := snapshot.FaceFromRow(urlPrefix, row, cameras[row.SrcSid])
	if err != nil {
		return nil
	}

	if row.MostPerson != "" {
		poi, err := d.GetPoiBySid(row.MostPerson)
		if err == nil {
			if db, ok := dbs[poi.DbSid]; ok {
				if hit, err := snapshot.PersonHit(urlPrefix, poi, row.MostScore, db); err == nil {
					ft.MatchPoi = hit
				}
			}
		} else if !errors.Is(err, dao.ErrNotFound) {
			return nil
		}
	}
	return &core.Snapshot{FT: ft}
}

func seedCar(urlPrefix string, d *dao.Dao, row *dao.CfCartrack,
	cameras map[string]*dao.CfDfsource, groups map[string]*dao.CfCoiGroup) *core.Snapshot {

	ct, err := snapshot.CarFromRow(urlPrefix, row, cameras[row.SrcSid])
	if err != nil {
		return nil
	}

	if row.PlateContent != "" {
		coi, err := d.GetCoiByPlate(row.PlateContent)
		if err == nil {
			if group, ok := groups[coi.GroupSid]; ok {
				ct.MatchCoi = snapshot.CoiHit(coi, group)
			}
		} else if !errors.Is(err, dao.ErrNotFound) {
			return nil
		}
	}
	return &core.Snapshot{CT: ct}
}

func trackTime(s *core.Snapshot) time.Time {
	if s.FT != nil {
		return s.FT.Face.Ts
	}
	return s.CT.Car.Ts
}
