package dao

import "time"

// Row models mirror the sqlite schema. Nullable columns are represented
// by zero values; the scan helpers translate NULLs.

// CfFacetrack is one face track row.
type CfFacetrack struct {
	ID          int64
	FtSid       string
	SrcSid      string
	ImgIds      string
	Matched     int
	Judged      int
	Alarmed     int
	MostPerson  string
	MostScore   float64
	Gender      int
	Age         int
	Glasses     int
	Direction   int
	PlaneScore  float64
	Mask        int
	Moustache   int
	Hat         int
	Tag         string
	Flag        int
	DbFlag      int
	DbSid       string
	FeatureIds  string
	ObjID       string
	SubmitID    string
	SubmitTime  time.Time
	CaptureTime time.Time
	GmtCreate   time.Time
	GmtModified time.Time
}

// CfCartrack is one vehicle track row.
type CfCartrack struct {
	ID            int64
	Sid           string
	SrcSid        string
	ImgIds        string
	Alarmed       int
	MostCoi       string
	PlateJudged   int
	VehicleJudged int
	MoveDirect    int
	CarDirect     string
	PlateContent  string
	PlateConf     float64
	PlateType     string
	CarColor      string
	CarBrand      string
	CarTopSeries  string
	CarSeries     string
	CarTopType    string
	CarMidType    string
	Tag           string
	Flag          int
	ObjID         string
	SubmitID      string
	SubmitTime    time.Time
	IsRealtime    int
	CaptureTime   time.Time
	CaptureTs     int64
	CapturePts    int64
	LaneNum       int
	GmtCreate     time.Time
	GmtModified   time.Time
}

// CfPoi is a person-of-interest row.
type CfPoi struct {
	ID           int64
	PoiSid       string
	DbSid        string
	Name         string
	Gender       int
	IdentityCard string
	Threshold    int
	TpID         string
	FeatureIds   string
	Cover        int
	Tag          string
	ImpTag       string
	Memo         string
	Flag         int
	GmtCreate    time.Time
	GmtModified  time.Time
}

// CfDfdb is a face library row.
type CfDfdb struct {
	ID          int64
	DbSid       string
	Name        string
	NodeSid     string
	Capacity    int64
	AutoMatch   int
	BwFlag      int
	FpFlag      int
	SortNum     int
	GmtCreate   time.Time
	GmtModified time.Time
}

// CfDfsource is a camera row.
type CfDfsource struct {
	ID              int64
	SrcSid          string
	Name            string
	NodeSid         string
	SrcURL          string
	PushURL         string
	IP              string
	SrcState        int
	SrcConfig       string
	GrabType        int
	IoFlag          int
	Direction       int
	TpID            string
	UploadFlag      int
	LocationName    string
	ResolutionRatio string
	Coordinate      string
	SortNum         int
	TripLine        int64
	RtcpUtc         int
	LaneDesc        string
	LaneCount       int
	Memo            string
	GmtCreate       time.Time
	GmtModified     time.Time
}

// CfCoi is a vehicle-of-interest row.
type CfCoi struct {
	ID           int64
	Sid          string
	GroupSid     string
	PlateContent string
	PlateType    string
	CarBrand     string
	CarSeries    string
	CarSize      string
	CarType      string
	OwnerName    string
	OwnerIdcard  string
	OwnerPhone   string
	OwnerAddress string
	Flag         int
	Tag          string
	ImpTag       string
	Memo         string
	GmtCreate    time.Time
	GmtModified  time.Time
}

// CfCoiGroup is a vehicle-of-interest group row.
type CfCoiGroup struct {
	ID          int64
	Sid         string
	Name        string
	BwFlag      int
	Memo        string
	GmtCreate   time.Time
	GmtModified time.Time
}

// TrackRef is an (id, sid) pair used by the disk GC.
type TrackRef struct {
	ID  int64
	Sid string
}
