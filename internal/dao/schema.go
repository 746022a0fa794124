package dao

// The original deployment shipped a prebuilt database file; here the
// schema is created on first open so a fresh worker can start on an
// empty path.

var schemaStatements = []string{
	`create table if not exists cf_facetrack (
		id integer primary key autoincrement,
		ft_sid text not null unique,
		src_sid text not null,
		img_ids text not null,
		matched integer,
		judged integer,
		alarmed integer,
		most_person text,
		most_score real,
		gender integer,
		age integer,
		glasses integer,
		direction integer,
		plane_score real,
		mask integer,
		moustache integer,
		hat integer,
		tag text,
		flag integer not null default 0,
		db_flag integer,
		db_sid text,
		feature_ids text,
		obj_id text,
		submit_id text,
		submit_time text,
		capture_time text not null,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_cartrack (
		id integer primary key autoincrement,
		sid text not null unique,
		src_sid text not null,
		img_ids text not null,
		alarmed integer not null default 0,
		most_coi text,
		plate_judged integer not null default 0,
		vehicle_judged integer not null default 0,
		move_direct integer not null default 0,
		car_direct text,
		plate_content text,
		plate_confidence real,
		plate_type text,
		car_color text,
		car_brand text,
		car_top_series text,
		car_series text,
		car_top_type text,
		car_mid_type text,
		tag text,
		flag integer not null default 0,
		obj_id text,
		submit_id text,
		submit_time text,
		is_realtime integer not null default 0,
		capture_time text not null,
		capture_ts integer not null default 0,
		capture_pts integer not null default 0,
		lane_num integer not null default 0,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_poi (
		id integer primary key autoincrement,
		poi_sid text not null unique,
		db_sid text not null,
		name text not null,
		gender integer,
		identity_card text,
		threshold integer not null default 0,
		tp_id text,
		feature_ids text not null,
		cover integer,
		tag text,
		imp_tag text,
		memo text,
		flag integer,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_dfdb (
		id integer primary key autoincrement,
		db_sid text not null unique,
		name text not null,
		node_sid text not null,
		capacity integer not null default 0,
		auto_match integer not null default 0,
		bw_flag integer not null default 0,
		fp_flag integer not null default 0,
		sort_num integer,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_dfsource (
		id integer primary key autoincrement,
		src_sid text not null unique,
		name text not null,
		node_sid text not null,
		src_url text not null,
		push_url text not null,
		ip text not null,
		src_state integer not null default 0,
		src_config text not null default '',
		grab_type integer not null default 0,
		io_flag integer not null default 0,
		direction integer not null default 0,
		tp_id text,
		upload_flag integer not null default 0,
		location_name text,
		resolution_ratio text,
		coordinate text,
		sort_num integer not null default 0,
		trip_line integer not null default 0,
		rtcp_utc integer not null default 0,
		lane_desc text,
		lane_count integer not null default 0,
		memo text,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_coi (
		id integer primary key autoincrement,
		sid text not null unique,
		group_sid text not null,
		plate_content text not null,
		plate_type text,
		car_brand text,
		car_series text,
		car_size text,
		car_type text,
		owner_name text,
		owner_idcard text,
		owner_phone text,
		owner_address text,
		flag integer not null default 0,
		tag text,
		imp_tag text,
		memo text,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create table if not exists cf_coi_group (
		id integer primary key autoincrement,
		sid text not null unique,
		name text not null,
		bw_flag integer not null default 0,
		memo text,
		gmt_create text not null,
		gmt_modified text not null
	)`,
	`create index if not exists idx_facetrack_capture on cf_facetrack(capture_time)`,
	`create index if not exists idx_cartrack_capture on cf_cartrack(capture_time)`,
	`create index if not exists idx_coi_plate on cf_coi(plate_content)`,
}

func (d *Dao) ensureSchema() error {
	defer d.lock()()
	for _, stmt := range schemaStatements {
		if _, err := d.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
