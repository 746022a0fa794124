package dao

import (
	"database/sql"
	"time"
)

const sourceCols = `id,src_sid,name,node_sid,src_url,push_url,ip,src_state,src_config,grab_type,io_flag,
	direction,tp_id,upload_flag,location_name,resolution_ratio,coordinate,sort_num,trip_line,rtcp_utc,
	lane_desc,lane_count,memo,gmt_create,gmt_modified`

func scanSource(scan func(dest ...interface{}) error) (*CfDfsource, error) {
	var po CfDfsource
	var tpID, locationName, resolutionRatio, coordinate, laneDesc, memo sql.NullString
	var gmtCreate, gmtModified string

	err := scan(&po.ID, &po.SrcSid, &po.Name, &po.NodeSid, &po.SrcURL, &po.PushURL, &po.IP,
		&po.SrcState, &po.SrcConfig, &po.GrabType, &po.IoFlag, &po.Direction, &tpID,
		&po.UploadFlag, &locationName, &resolutionRatio, &coordinate, &po.SortNum,
		&po.TripLine, &po.RtcpUtc, &laneDesc, &po.LaneCount, &memo, &gmtCreate, &gmtModified)
	if err != nil {
		return nil, err
	}

	po.TpID = nullStr(tpID)
	po.LocationName = nullStr(locationName)
	po.ResolutionRatio = nullStr(resolutionRatio)
	po.Coordinate = nullStr(coordinate)
	po.LaneDesc = nullStr(laneDesc)
	po.Memo = nullStr(memo)
	po.GmtCreate = parseTime(gmtCreate)
	po.GmtModified = parseTime(gmtModified)
	return &po, nil
}

// GetSourceBySid loads one camera row.
func (d *Dao) GetSourceBySid(sid string) (*CfDfsource, error) {
	defer d.lock()()

	row := d.db.QueryRow(`select `+sourceCols+` from cf_dfsource where src_sid = ?`, sid)
	po, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return po, nil
}

// GetSourceByName finds a camera by its display name; names are unique.
func (d *Dao) GetSourceByName(name string) (*CfDfsource, error) {
	defer d.lock()()

	row := d.db.QueryRow(`select `+sourceCols+` from cf_dfsource where name = ?`, name)
	po, err := scanSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return po, nil
}

// LoadSources returns every camera row ordered for display.
func (d *Dao) LoadSources() ([]CfDfsource, error) {
	defer d.lock()()

	rows, err := d.db.Query(`select ` + sourceCols + ` from cf_dfsource order by sort_num asc, id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CfDfsource
	for rows.Next() {
		po, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *po)
	}
	return list, rows.Err()
}

// InsertSource inserts a camera row.
func (d *Dao) InsertSource(po *CfDfsource) (int64, error) {
	defer d.lock()()

	now := time.Now()
	if po.GmtCreate.IsZero() {
		po.GmtCreate = now
	}
	if po.GmtModified.IsZero() {
		po.GmtModified = now
	}
	res, err := d.db.Exec(
		`insert into cf_dfsource(src_sid,name,node_sid,src_url,push_url,ip,src_state,src_config,grab_type,
			io_flag,direction,tp_id,upload_flag,location_name,resolution_ratio,coordinate,sort_num,trip_line,
			rtcp_utc,lane_desc,lane_count,memo,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		po.SrcSid, po.Name, po.NodeSid, po.SrcURL, po.PushURL, po.IP, po.SrcState, po.SrcConfig,
		po.GrabType, po.IoFlag, po.Direction, po.TpID, po.UploadFlag, po.LocationName,
		po.ResolutionRatio, po.Coordinate, po.SortNum, po.TripLine, po.RtcpUtc, po.LaneDesc,
		po.LaneCount, po.Memo, fmtTime(po.GmtCreate), fmtTime(po.GmtModified))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteSource removes a camera row.
func (d *Dao) DeleteSource(sid string) error {
	defer d.lock()()

	res, err := d.db.Exec(`delete from cf_dfsource where src_sid = ?`, sid)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
