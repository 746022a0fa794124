package dao

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveCartrack inserts a new vehicle track row and returns its id.
func (d *Dao) SaveCartrack(po *CfCartrack) (int64, error) {
	defer d.lock()()

	res, err := d.db.Exec(
		`insert into cf_cartrack(sid,src_sid,img_ids,alarmed,most_coi,plate_judged,vehicle_judged,move_direct,
			car_direct,plate_content,plate_confidence,plate_type,car_color,car_brand,car_top_series,car_series,
			car_top_type,car_mid_type,tag,flag,obj_id,submit_id,submit_time,is_realtime,capture_time,capture_ts,
			capture_pts,lane_num,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		po.Sid, po.SrcSid, po.ImgIds, po.Alarmed, po.MostCoi, po.PlateJudged, po.VehicleJudged, po.MoveDirect,
		po.CarDirect, po.PlateContent, po.PlateConf, po.PlateType, po.CarColor, po.CarBrand, po.CarTopSeries,
		po.CarSeries, po.CarTopType, po.CarMidType, po.Tag, po.Flag, po.ObjID, po.SubmitID,
		fmtTime(po.SubmitTime), po.IsRealtime, fmtTime(po.CaptureTime), po.CaptureTs, po.CapturePts,
		po.LaneNum, fmtTime(po.GmtCreate), fmtTime(po.GmtModified))
	if err != nil {
		return 0, fmt.Errorf("insert cf_cartrack: %w", err)
	}
	return res.LastInsertId()
}

// UpdateCartrackImgs rewrites img_ids and the plate/props columns after
// an incremental append. Exactly one row must be affected.
func (d *Dao) UpdateCartrackImgs(po *CfCartrack) error {
	defer d.lock()()

	res, err := d.db.Exec(
		`update cf_cartrack set img_ids = ?, plate_judged = ?, vehicle_judged = ?, move_direct = ?,
			car_direct = ?, plate_content = ?, plate_confidence = ?, plate_type = ?, car_color = ?,
			car_brand = ?, car_top_series = ?, car_series = ?, car_top_type = ?, car_mid_type = ?,
			lane_num = ?, gmt_modified = ?
		 where sid = ?`,
		po.ImgIds, po.PlateJudged, po.VehicleJudged, po.MoveDirect,
		po.CarDirect, po.PlateContent, po.PlateConf, po.PlateType, po.CarColor,
		po.CarBrand, po.CarTopSeries, po.CarSeries, po.CarTopType, po.CarMidType,
		po.LaneNum, fmtTime(po.GmtModified), po.Sid)
	if err != nil {
		return fmt.Errorf("update cf_cartrack imgs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("update cf_cartrack imgs %s: affected %d", po.Sid, affected)
	}
	return nil
}

// UpdateCartrackJudge writes the alarm outcome.
func (d *Dao) UpdateCartrackJudge(sid string, alarmed int, mostCoi string, modified time.Time) error {
	defer d.lock()()

	_, err := d.db.Exec(
		`update cf_cartrack set alarmed = ?, most_coi = ?, gmt_modified = ? where sid = ?`,
		alarmed, mostCoi, fmtTime(modified), sid)
	if err != nil {
		return fmt.Errorf("update cf_cartrack judge: %w", err)
	}
	return nil
}

const cartrackCols = `id,sid,src_sid,img_ids,alarmed,most_coi,plate_judged,vehicle_judged,move_direct,
	car_direct,plate_content,plate_confidence,plate_type,car_color,car_brand,car_top_series,car_series,
	car_top_type,car_mid_type,tag,flag,obj_id,submit_id,submit_time,is_realtime,capture_time,capture_ts,
	capture_pts,lane_num,gmt_create,gmt_modified`

func scanCartrack(rows *sql.Rows) (*CfCartrack, error) {
	var po CfCartrack
	var mostCoi, carDirect, plateContent, plateType, carColor, carBrand sql.NullString
	var carTopSeries, carSeries, carTopType, carMidType, tag, objID, submitID, submitTime sql.NullString
	var plateConf sql.NullFloat64
	var captureTime, gmtCreate, gmtModified string

	err := rows.Scan(&po.ID, &po.Sid, &po.SrcSid, &po.ImgIds, &po.Alarmed, &mostCoi,
		&po.PlateJudged, &po.VehicleJudged, &po.MoveDirect, &carDirect, &plateContent,
		&plateConf, &plateType, &carColor, &carBrand, &carTopSeries, &carSeries,
		&carTopType, &carMidType, &tag, &po.Flag, &objID, &submitID, &submitTime,
		&po.IsRealtime, &captureTime, &po.CaptureTs, &po.CapturePts, &po.LaneNum,
		&gmtCreate, &gmtModified)
	if err != nil {
		return nil, err
	}

	po.MostCoi = nullStr(mostCoi)
	po.CarDirect = nullStr(carDirect)
	po.PlateContent = nullStr(plateContent)
	po.PlateConf = nullFloat(plateConf)
	po.PlateType = nullStr(plateType)
	po.CarColor = nullStr(carColor)
	po.CarBrand = nullStr(carBrand)
	po.CarTopSeries = nullStr(carTopSeries)
	po.CarSeries = nullStr(carSeries)
	po.CarTopType = nullStr(carTopType)
	po.CarMidType = nullStr(carMidType)
	po.Tag = nullStr(tag)
	po.ObjID = nullStr(objID)
	po.SubmitID = nullStr(submitID)
	po.SubmitTime = parseTime(nullStr(submitTime))
	po.CaptureTime = parseTime(captureTime)
	po.GmtCreate = parseTime(gmtCreate)
	po.GmtModified = parseTime(gmtModified)
	return &po, nil
}

func (d *Dao) queryCartracks(query string, args ...interface{}) ([]CfCartrack, error) {
	defer d.lock()()

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CfCartrack
	for rows.Next() {
		po, err := scanCartrack(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *po)
	}
	return list, rows.Err()
}

// LoadLatestCartracks returns the newest rows by capture time, newest
// first.
func (d *Dao) LoadLatestCartracks(limit int) ([]CfCartrack, error) {
	return d.queryCartracks(
		`select `+cartrackCols+` from cf_cartrack order by capture_time desc limit ?`, limit)
}

// GetCartrackBySid loads one row.
func (d *Dao) GetCartrackBySid(sid string) (*CfCartrack, error) {
	list, err := d.queryCartracks(
		`select `+cartrackCols+` from cf_cartrack where sid = ?`, sid)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// CountCartracks returns (total, alarmed).
func (d *Dao) CountCartracks() (int64, int64, error) {
	defer d.lock()()

	var total, alarmed int64
	if err := d.db.QueryRow(`select count(*) from cf_cartrack`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err := d.db.QueryRow(`select count(*) from cf_cartrack where alarmed = 1`).Scan(&alarmed); err != nil {
		return 0, 0, err
	}
	return total, alarmed, nil
}

// LoadEldestCartracks returns the oldest (id, sid) pairs for the GC.
func (d *Dao) LoadEldestCartracks(limit int) ([]TrackRef, error) {
	defer d.lock()()

	rows, err := d.db.Query(`select id, sid from cf_cartrack order by id asc limit ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TrackRef
	for rows.Next() {
		var r TrackRef
		if err := rows.Scan(&r.ID, &r.Sid); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DeleteCartracksUpTo removes all rows with id <= maxID.
func (d *Dao) DeleteCartracksUpTo(maxID int64) (int64, error) {
	defer d.lock()()

	res, err := d.db.Exec(`delete from cf_cartrack where id <= ?`, maxID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
