package dao

import (
	"database/sql"
	"time"
)

// GetCoiByPlate finds a vehicle-of-interest by normalized plate content.
func (d *Dao) GetCoiByPlate(plate string) (*CfCoi, error) {
	defer d.lock()()

	row := d.db.QueryRow(
		`select id,sid,group_sid,plate_content,plate_type,car_brand,car_series,car_size,car_type,
			owner_name,owner_idcard,owner_phone,owner_address,flag,tag,imp_tag,memo,gmt_create,gmt_modified
		 from cf_coi where plate_content = ?`, plate)

	var po CfCoi
	var plateType, carBrand, carSeries, carSize, carType sql.NullString
	var ownerName, ownerIdcard, ownerPhone, ownerAddress, tag, impTag, memo sql.NullString
	var gmtCreate, gmtModified string

	err := row.Scan(&po.ID, &po.Sid, &po.GroupSid, &po.PlateContent, &plateType,
		&carBrand, &carSeries, &carSize, &carType, &ownerName, &ownerIdcard,
		&ownerPhone, &ownerAddress, &po.Flag, &tag, &impTag, &memo,
		&gmtCreate, &gmtModified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	po.PlateType = nullStr(plateType)
	po.CarBrand = nullStr(carBrand)
	po.CarSeries = nullStr(carSeries)
	po.CarSize = nullStr(carSize)
	po.CarType = nullStr(carType)
	po.OwnerName = nullStr(ownerName)
	po.OwnerIdcard = nullStr(ownerIdcard)
	po.OwnerPhone = nullStr(ownerPhone)
	po.OwnerAddress = nullStr(ownerAddress)
	po.Tag = nullStr(tag)
	po.ImpTag = nullStr(impTag)
	po.Memo = nullStr(memo)
	po.GmtCreate = parseTime(gmtCreate)
	po.GmtModified = parseTime(gmtModified)
	return &po, nil
}

// LoadCoiGroups returns all vehicle-of-interest groups.
func (d *Dao) LoadCoiGroups() ([]CfCoiGroup, error) {
	defer d.lock()()

	rows, err := d.db.Query(`select id,sid,name,bw_flag,memo,gmt_create,gmt_modified from cf_coi_group`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []CfCoiGroup
	for rows.Next() {
		var g CfCoiGroup
		var memo sql.NullString
		var gmtCreate, gmtModified string
		if err := rows.Scan(&g.ID, &g.Sid, &g.Name, &g.BwFlag, &memo, &gmtCreate, &gmtModified); err != nil {
			return nil, err
		}
		g.Memo = nullStr(memo)
		g.GmtCreate = parseTime(gmtCreate)
		g.GmtModified = parseTime(gmtModified)
		list = append(list, g)
	}
	return list, rows.Err()
}

// InsertCoi inserts a vehicle-of-interest row.
func (d *Dao) InsertCoi(po *CfCoi) (int64, error) {
	defer d.lock()()

	now := time.Now()
	if po.GmtCreate.IsZero() {
		po.GmtCreate = now
	}
	if po.GmtModified.IsZero() {
		po.GmtModified = now
	}
	res, err := d.db.Exec(
		`insert into cf_coi(sid,group_sid,plate_content,plate_type,car_brand,car_series,car_size,car_type,
			owner_name,owner_idcard,owner_phone,owner_address,flag,tag,imp_tag,memo,gmt_create,gmt_modified)
		 values(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		po.Sid, po.GroupSid, po.PlateContent, po.PlateType, po.CarBrand, po.CarSeries,
		po.CarSize, po.CarType, po.OwnerName, po.OwnerIdcard, po.OwnerPhone, po.OwnerAddress,
		po.Flag, po.Tag, po.ImpTag, po.Memo, fmtTime(po.GmtCreate), fmtTime(po.GmtModified))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertCoiGroup inserts a group row.
func (d *Dao) InsertCoiGroup(g *CfCoiGroup) (int64, error) {
	defer d.lock()()

	now := time.Now()
	if g.GmtCreate.IsZero() {
		g.GmtCreate = now
	}
	if g.GmtModified.IsZero() {
		g.GmtModified = now
	}
	res, err := d.db.Exec(
		`insert into cf_coi_group(sid,name,bw_flag,memo,gmt_create,gmt_modified) values(?,?,?,?,?,?)`,
		g.Sid, g.Name, g.BwFlag, g.Memo, fmtTime(g.GmtCreate), fmtTime(g.GmtModified))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
