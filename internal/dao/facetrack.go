package dao

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveFacetrack inserts a new face track row and returns its id.
func (d *Dao) SaveFacetrack(po *CfFacetrack) (int64, error) {
	defer d.lock()()

	res, err := d.db.Exec(
		`insert into cf_facetrack(ft_sid,src_sid,img_ids,matched,judged,alarmed,most_person,most_score,
			gender,age,glasses,direction,plane_score,mask,moustache,hat,tag,flag,db_flag,db_sid,feature_ids,
			obj_id,submit_id,submit_time,capture_time,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		po.FtSid, po.SrcSid, po.ImgIds, po.Matched, po.Judged, po.Alarmed, po.MostPerson, po.MostScore,
		po.Gender, po.Age, po.Glasses, po.Direction, po.PlaneScore, po.Mask, po.Moustache, po.Hat,
		po.Tag, po.Flag, po.DbFlag, po.DbSid, po.FeatureIds,
		po.ObjID, po.SubmitID, fmtTime(po.SubmitTime), fmtTime(po.CaptureTime),
		fmtTime(po.GmtCreate), fmtTime(po.GmtModified))
	if err != nil {
		return 0, fmt.Errorf("insert cf_facetrack: %w", err)
	}
	return res.LastInsertId()
}

// UpdateFacetrackImgs rewrites img_ids and the face attribute columns
// after an incremental append. Exactly one row must be affected.
func (d *Dao) UpdateFacetrackImgs(po *CfFacetrack) error {
	defer d.lock()()

	res, err := d.db.Exec(
		`update cf_facetrack set img_ids = ?, gender = ?, age = ?, glasses = ?, direction = ?, gmt_modified = ?
		 where ft_sid = ?`,
		po.ImgIds, po.Gender, po.Age, po.Glasses, po.Direction, fmtTime(po.GmtModified), po.FtSid)
	if err != nil {
		return fmt.Errorf("update cf_facetrack imgs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("update cf_facetrack imgs %s: affected %d", po.FtSid, affected)
	}
	return nil
}

// UpdateFacetrackJudge writes the match/judge/alarm outcome.
func (d *Dao) UpdateFacetrackJudge(sid string, matched, judged, alarmed int, mostPerson string, mostScore float64, modified time.Time) error {
	defer d.lock()()

	_, err := d.db.Exec(
		`update cf_facetrack set matched = ?, judged = ?, alarmed = ?, most_person = ?, most_score = ?, gmt_modified = ?
		 where ft_sid = ?`,
		matched, judged, alarmed, mostPerson, mostScore, fmtTime(modified), sid)
	if err != nil {
		return fmt.Errorf("update cf_facetrack judge: %w", err)
	}
	return nil
}

const facetrackCols = `id,ft_sid,src_sid,img_ids,matched,judged,alarmed,most_person,most_score,
	gender,age,glasses,direction,plane_score,mask,moustache,hat,tag,flag,db_flag,db_sid,feature_ids,
	obj_id,submit_id,submit_time,capture_time,gmt_create,gmt_modified`

func scanFacetrack(rows *sql.Rows) (*CfFacetrack, error) {
	var po CfFacetrack
	var matched, judged, alarmed, gender, age, glasses, direction, mask, moustache, hat, dbFlag sql.NullInt64
	var mostScore, planeScore sql.NullFloat64
	var mostPerson, tag, dbSid, featureIds, objID, submitID, submitTime sql.NullString
	var captureTime, gmtCreate, gmtModified string

	err := rows.Scan(&po.ID, &po.FtSid, &po.SrcSid, &po.ImgIds, &matched, &judged, &alarmed,
		&mostPerson, &mostScore, &gender, &age, &glasses, &direction, &planeScore,
		&mask, &moustache, &hat, &tag, &po.Flag, &dbFlag, &dbSid, &featureIds,
		&objID, &submitID, &submitTime, &captureTime, &gmtCreate, &gmtModified)
	if err != nil {
		return nil, err
	}

	po.Matched = nullInt(matched)
	po.Judged = nullInt(judged)
	po.Alarmed = nullInt(alarmed)
	po.MostPerson = nullStr(mostPerson)
	po.MostScore = nullFloat(mostScore)
	po.Gender = nullInt(gender)
	po.Age = nullInt(age)
	po.Glasses = nullInt(glasses)
	po.Direction = nullInt(direction)
	po.PlaneScore = nullFloat(planeScore)
	po.Mask = nullInt(mask)
	po.Moustache = nullInt(moustache)
	po.Hat = nullInt(hat)
	po.Tag = nullStr(tag)
	po.DbFlag = nullInt(dbFlag)
	po.DbSid = nullStr(dbSid)
	po.FeatureIds = nullStr(featureIds)
	po.ObjID = nullStr(objID)
	po.SubmitID = nullStr(submitID)
	po.SubmitTime = parseTime(nullStr(submitTime))
	po.CaptureTime = parseTime(captureTime)
	po.GmtCreate = parseTime(gmtCreate)
	po.GmtModified = parseTime(gmtModified)
	return &po, nil
}

func (d *Dao) queryFacetracks(query string, args ...interface{}) ([]CfFacetrack, error) {
	defer d.lock()()

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CfFacetrack
	for rows.Next() {
		po, err := scanFacetrack(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *po)
	}
	return list, rows.Err()
}

// LoadLatestFacetracks returns the newest rows by capture time, newest
// first.
func (d *Dao) LoadLatestFacetracks(limit int) ([]CfFacetrack, error) {
	return d.queryFacetracks(
		`select `+facetrackCols+` from cf_facetrack order by capture_time desc limit ?`, limit)
}

// GetFacetrackBySid loads one row.
func (d *Dao) GetFacetrackBySid(sid string) (*CfFacetrack, error) {
	list, err := d.queryFacetracks(
		`select `+facetrackCols+` from cf_facetrack where ft_sid = ?`, sid)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// CountFacetracks returns (total, alarmed).
func (d *Dao) CountFacetracks() (int64, int64, error) {
	defer d.lock()()

	var total, alarmed int64
	if err := d.db.QueryRow(`select count(*) from cf_facetrack`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err := d.db.QueryRow(`select count(*) from cf_facetrack where alarmed = 1`).Scan(&alarmed); err != nil {
		return 0, 0, err
	}
	return total, alarmed, nil
}

// LoadEldestFacetracks returns the oldest (id, sid) pairs for the GC.
func (d *Dao) LoadEldestFacetracks(limit int) ([]TrackRef, error) {
	defer d.lock()()

	rows, err := d.db.Query(`select id, ft_sid from cf_facetrack order by id asc limit ?`, limit)
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

// DeleteFacetracksUpTo removes all rows with id <= maxID.
func (d *Dao) DeleteFacetracksUpTo(maxID int64) (int64, error) {
	defer d.lock()()

	res, err := d.db.Exec(`delete from cf_facetrack where id <= ?`, maxID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
