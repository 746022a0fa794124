package core

import "time"

// Rect is a bounding rectangle in frame coordinates.
type Rect struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	W int64 `json:"w"`
	H int64 `json:"h"`
}

// ------------------- face notification -------------------

type FaceBackground struct {
	ImageFile string `json:"image_file"`
	Rect      Rect   `json:"rect"`
	Width     int64  `json:"width"`
	Height    int64  `json:"height"`
}

// NotifyFace references the image parts of one detection by multipart
// part name. FeatureFile absent, null or empty all mean "no feature".
type NotifyFace struct {
	AlignedFile string  `json:"aligned_file"`
	DisplayFile string  `json:"display_file"`
	FeatureFile string  `json:"feature_file"`
	Quality     float64 `json:"quality"`
}

type FaceNotifyProps struct {
	Age           int64 `json:"age"`
	Gender        int64 `json:"gender"`
	Glasses       int64 `json:"glasses"`
	MoveDirection int64 `json:"move_direction"`
}

// FaceNotify is the json part of a facetrack upload.
type FaceNotify struct {
	ID         string           `json:"id"`
	Index      int64            `json:"index"`
	Source     string           `json:"source"`
	Background FaceBackground   `json:"background"`
	Faces      []NotifyFace     `json:"faces"`
	Props      *FaceNotifyProps `json:"props"`
}

// FacePayload carries the resolved bytes for one detection, parallel to
// FaceNotify.Faces. Feature holds the raw feature file bytes.
type FacePayload struct {
	Aligned []byte
	Display []byte
	Feature []byte
}

// FaceTrackEvent is one intake arrival for a face track.
type FaceTrackEvent struct {
	Notify FaceNotify
	Bg     []byte
	Faces  []FacePayload
	Ts     time.Time
}

// ------------------- vehicle notification -------------------

type CarBackground struct {
	ImageFile   string `json:"image_file"`
	VideoWidth  int64  `json:"video_width"`
	VideoHeight int64  `json:"video_height"`
	Width       int64  `json:"width"`
	Height      int64  `json:"height"`
	Rect        Rect   `json:"rect"`
}

type NotifyVehicle struct {
	ImageFile string `json:"image_file"`
}

type ValueConf struct {
	Value string  `json:"value"`
	Conf  float64 `json:"conf"`
}

type PlateNotifyInfo struct {
	ImageFile  string        `json:"image_file"`
	BinaryFile string        `json:"binary_file"`
	Text       string        `json:"text"`
	Type       ValueConf     `json:"type"`
	Bits       [][]ValueConf `json:"bits"`
}

type ValueScore struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

type CarNotifyProps struct {
	Color         []ValueScore `json:"color"`
	Brand         []ValueScore `json:"brand"`
	TopSeries     []ValueScore `json:"top_series"`
	Series        []ValueScore `json:"series"`
	TopType       []ValueScore `json:"top_type"`
	MidType       []ValueScore `json:"mid_type"`
	Direction     []ValueScore `json:"direction"`
	MoveDirection int64        `json:"move_direction"`
}

// CarNotify is the json part of a vehicletrack upload.
type CarNotify struct {
	ID         string           `json:"id"`
	Index      int64            `json:"index"`
	Source     string           `json:"source"`
	Background CarBackground    `json:"background"`
	Vehicles   []NotifyVehicle  `json:"vehicles"`
	PlateInfo  *PlateNotifyInfo `json:"plate_info"`
	Props      *CarNotifyProps  `json:"props"`
}

// HasPlateInfo reports whether the notification carries a usable plate.
func (n *CarNotify) HasPlateInfo() bool {
	return n.PlateInfo != nil && n.PlateInfo.Text != ""
}

// HasPlateBinary reports whether a plate-binary image part is referenced.
func (n *CarNotify) HasPlateBinary() bool {
	return n.PlateInfo != nil && n.PlateInfo.BinaryFile != ""
}

// HasProps reports whether vehicle attributes are present.
func (n *CarNotify) HasProps() bool {
	return n.Props != nil
}

// PlateTuple returns content and plate type, with spaces stripped from
// the content.
func (n *CarNotify) PlateTuple() (string, string) {
	if n.PlateInfo == nil {
		return "", ""
	}
	content := stripSpaces(n.PlateInfo.Text)
	return content, n.PlateInfo.Type.Value
}

// PropsTuple flattens the per-attribute candidate lists to their first
// (highest-score) values.
func (n *CarNotify) PropsTuple() VehicleProps {
	if n.Props == nil {
		return VehicleProps{}
	}
	return VehicleProps{
		Color:      firstValue(n.Props.Color),
		Brand:      firstValue(n.Props.Brand),
		TopSeries:  firstValue(n.Props.TopSeries),
		Series:     firstValue(n.Props.Series),
		TopType:    firstValue(n.Props.TopType),
		MidType:    firstValue(n.Props.MidType),
		Direct:     firstValue(n.Props.Direction),
		MoveDirect: n.Props.MoveDirection,
	}
}

func firstValue(list []ValueScore) string {
	if len(list) == 0 {
		return ""
	}
	return list[0].Value
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// CarTrackEvent is one intake arrival for a vehicle track.
type CarTrackEvent struct {
	Notify   CarNotify
	Bg       []byte
	Vehicles [][]byte
	Plate    []byte
	PlateBin []byte
	Ts       time.Time
}
