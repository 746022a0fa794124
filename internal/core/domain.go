// Package core holds the domain types shared across the pipeline: the
// notification payloads received from the analysis back-end, the track
// events handed to the coalescers and the snapshots published downstream.
package core

import "time"

// Kind discriminates the two track pipelines.
type Kind int

const (
	KindFace    Kind = 0
	KindVehicle Kind = 1
)

func (k Kind) String() string {
	if k == KindVehicle {
		return "vehicle"
	}
	return "face"
}

// CameraInfo is the camera block embedded in published snapshots.
type CameraInfo struct {
	ID    int64  `json:"id"`
	Sid   string `json:"sid"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	State int    `json:"state"`
	Memo  string `json:"memo,omitempty"`
}

// FaceItem describes one detection inside a face snapshot.
type FaceItem struct {
	Index   int64   `json:"index"`
	Feature string  `json:"feature,omitempty"`
	Quality float64 `json:"quality"`
	SImgURL string  `json:"s_img_url"`
	LImgURL string  `json:"l_img_url"`
}

type FaceProps struct {
	Age       int64 `json:"age"`
	Gender    int64 `json:"gender"`
	Glasses   int64 `json:"glasses"`
	Direction int64 `json:"direction"`
}

// FaceInfo is the track block of a face snapshot.
type FaceInfo struct {
	Sid     string     `json:"sid"`
	Source  string     `json:"source"`
	Faces   []FaceItem `json:"faces"`
	Props   *FaceProps `json:"props"`
	BgURL   string     `json:"bg_url"`
	Ts      time.Time  `json:"ts"`
	Matched bool       `json:"matched"`
	Judged  bool       `json:"judged"`
	Alarmed bool       `json:"alarmed"`
}

// PersonHit is the matched-person block filled by search and judgement.
type PersonHit struct {
	ID        int64    `json:"id"`
	Sid       string   `json:"sid"`
	Name      string   `json:"name"`
	IDCard    string   `json:"id_card"`
	Gender    int64    `json:"gender"`
	Cover     int64    `json:"cover"`
	CoverURL  string   `json:"cover_url"`
	ImgsURL   []string `json:"imgs_url"`
	Threshold int64    `json:"threshold"`
	Score     int64    `json:"score"`
	DbSid     string   `json:"db_sid"`
	DbName    string   `json:"db_name"`
	BwFlag    int64    `json:"bw_flag"`
}

// FaceSnap is the published representation of a face track.
type FaceSnap struct {
	Sid      string      `json:"sid"`
	Face     FaceInfo    `json:"face"`
	Camera   *CameraInfo `json:"camera"`
	MatchPoi *PersonHit  `json:"match_poi"`
}

// PlateHit describes the plate block of a vehicle snapshot.
type PlateHit struct {
	Content   string `json:"content"`
	PlateType string `json:"plate_type"`
	ImgURL    string `json:"img_url"`
}

// VehicleProps carries the recognized vehicle attributes.
type VehicleProps struct {
	Color      string `json:"color"`
	Brand      string `json:"brand"`
	TopSeries  string `json:"top_series"`
	Series     string `json:"series"`
	TopType    string `json:"top_type"`
	MidType    string `json:"mid_type"`
	Direct     string `json:"direct"`
	MoveDirect int64  `json:"move_direct"`
}

// CarInfo is the track block of a vehicle snapshot.
type CarInfo struct {
	Sid     string        `json:"sid"`
	Source  string        `json:"source"`
	ImgURLs []string      `json:"img_urls"`
	Plate   *PlateHit     `json:"plate"`
	Props   *VehicleProps `json:"props"`
	BgURL   string        `json:"bg_url"`
	Ts      time.Time     `json:"ts"`
	Alarmed bool          `json:"alarmed"`
}

// CoiHit is the matched vehicle-of-interest block.
type CoiHit struct {
	ID           int64  `json:"id"`
	Sid          string `json:"sid"`
	PlateContent string `json:"plate_content"`
	PlateType    string `json:"plate_type,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	OwnerPhone   string `json:"owner_phone,omitempty"`
	OwnerAddress string `json:"owner_address,omitempty"`
	GroupSid     string `json:"group_sid"`
	GroupName    string `json:"group_name"`
	BwFlag       int64  `json:"bw_flag"`
}

// CarSnap is the published representation of a vehicle track.
type CarSnap struct {
	Sid      string      `json:"sid"`
	Car      CarInfo     `json:"car"`
	Camera   *CameraInfo `json:"camera"`
	MatchCoi *CoiHit     `json:"match_coi"`
}

// Snapshot tags a published track for fan-out; exactly one of FT/CT is
// set.
type Snapshot struct {
	FT *FaceSnap `json:"ft,omitempty"`
	CT *CarSnap  `json:"ct,omitempty"`
}

func (s Snapshot) Sid() string {
	if s.FT != nil {
		return s.FT.Sid
	}
	if s.CT != nil {
		return s.CT.Sid
	}
	return ""
}

func (s Snapshot) Kind() Kind {
	if s.CT != nil {
		return KindVehicle
	}
	return KindFace
}
