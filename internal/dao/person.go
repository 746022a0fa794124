package dao

import (
	"database/sql"
	"fmt"
	"time"
)

// GetPoiBySid loads one person row.
func (d *Dao) GetPoiBySid(sid string) (*CfPoi, error) {
	defer d.lock()()

	row := d.db.QueryRow(
		`select id,poi_sid,db_sid,name,gender,identity_card,threshold,tp_id,feature_ids,cover,tag,imp_tag,memo,flag,gmt_create,gmt_modified
		 from cf_poi where poi_sid = ?`, sid)

	var po CfPoi
	var gender, cover, flag sql.NullInt64
	var identityCard, tpID, tag, impTag, memo sql.NullString
	var gmtCreate, gmtModified string

	err := row.Scan(&po.ID, &po.PoiSid, &po.DbSid, &po.Name, &gender, &identityCard,
		&po.Threshold, &tpID, &po.FeatureIds, &cover, &tag, &impTag, &memo, &flag,
		&gmtCreate, &gmtModified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	po.Gender = nullInt(gender)
	po.IdentityCard = nullStr(identityCard)
	po.TpID = nullStr(tpID)
	po.Cover = nullInt(cover)
	po.Tag = nullStr(tag)
	po.ImpTag = nullStr(impTag)
	po.Memo = nullStr(memo)
	po.Flag = nullInt(flag)
	po.GmtCreate = parseTime(gmtCreate)
	po.GmtModified = parseTime(gmtModified)
	return &po, nil
}

// InsertPoi inserts one person row within tx.
func insertPoi(tx *sql.Tx, po *CfPoi) (int64, error) {
	res, err := tx.Exec(
		`insert into cf_poi(poi_sid,db_sid,name,gender,identity_card,threshold,tp_id,feature_ids,cover,tag,imp_tag,memo,flag,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		po.PoiSid, po.DbSid, po.Name, po.Gender, po.IdentityCard, po.Threshold, po.TpID,
		po.FeatureIds, po.Cover, po.Tag, po.ImpTag, po.Memo, po.Flag,
		fmtTime(po.GmtCreate), fmtTime(po.GmtModified))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SavePoisBatch inserts the batch inside a single transaction. Per-row
// failures are counted but do not abort the transaction. Returns the
// number of rows inserted.
func (d *Dao) SavePoisBatch(persons []CfPoi, onRowErr func(po *CfPoi, err error)) (int, error) {
	defer d.lock()()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	succ := 0
	for i := range persons {
		if _, err := insertPoi(tx, &persons[i]); err != nil {
			if onRowErr != nil {
				onRowErr(&persons[i], err)
			}
			continue
		}
		succ++
	}

	if err := tx.Commit(); err != nil {
		return succ, fmt.Errorf("commit: %w", err)
	}
	return succ, nil
}

// LoadDfdbs returns all face libraries.
func (d *Dao) LoadDfdbs() ([]CfDfdb, error) {
	return d.queryDfdbs(`select id,db_sid,name,node_sid,capacity,auto_match,bw_flag,fp_flag,sort_num,gmt_create,gmt_modified from cf_dfdb`)
}

// LoadAutoMatchDbs returns libraries participating in 1:N search.
func (d *Dao) LoadAutoMatchDbs() ([]CfDfdb, error) {
	return d.queryDfdbs(`select id,db_sid,name,node_sid,capacity,auto_match,bw_flag,fp_flag,sort_num,gmt_create,gmt_modified
		from cf_dfdb where auto_match = 1 and fp_flag = 1`)
}

func (d *Dao) queryDfdbs(query string) ([]CfDfdb, error) {
	defer d.lock()()

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CfDfdb
	for rows.Next() {
		var db CfDfdb
		var sortNum sql.NullInt64
		var gmtCreate, gmtModified string
		if err := rows.Scan(&db.ID, &db.DbSid, &db.Name, &db.NodeSid, &db.Capacity,
			&db.AutoMatch, &db.BwFlag, &db.FpFlag, &sortNum, &gmtCreate, &gmtModified); err != nil {
			return nil, err
		}
		db.SortNum = nullInt(sortNum)
		db.GmtCreate = parseTime(gmtCreate)
		db.GmtModified = parseTime(gmtModified)
		list = append(list, db)
	}
	return list, rows.Err()
}

// InsertDfdb inserts a library row (used by tests and bootstrap tooling).
func (d *Dao) InsertDfdb(db *CfDfdb) (int64, error) {
	defer d.lock()()

	now := time.Now()
	if db.GmtCreate.IsZero() {
		db.GmtCreate = now
	}
	if db.GmtModified.IsZero() {
		db.GmtModified = now
	}
	res, err := d.db.Exec(
		`insert into cf_dfdb(db_sid,name,node_sid,capacity,auto_match,bw_flag,fp_flag,sort_num,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?)`,
		db.DbSid, db.Name, db.NodeSid, db.Capacity, db.AutoMatch, db.BwFlag, db.FpFlag,
		db.SortNum, fmtTime(db.GmtCreate), fmtTime(db.GmtModified))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
