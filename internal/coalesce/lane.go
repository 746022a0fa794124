package coalesce

import (
	"encoding/json"
	"fmt"
)

// LanePoint is one endpoint of a lane divider, in video coordinates.
type LanePoint struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// LaneLine is a lane divider, top point first.
type LaneLine struct {
	Top LanePoint `json:"top"`
	Btm LanePoint `json:"btm"`
}

// Lanes is the per-camera lane annotation stored in lane_desc.
type Lanes struct {
	Lines []LaneLine `json:"lines"`
}

// ParseLanes decodes a lane_desc JSON string.
func ParseLanes(s string) (*Lanes, error) {
	var lanes Lanes
	if err := json.Unmarshal([]byte(s), &lanes); err != nil {
		return nil, fmt.Errorf("parse lane desc: %w", err)
	}
	return &lanes, nil
}

// LaneNum returns the lane the point falls in, counted from the left
// starting at 1. 0 means outside the annotated lanes.
func (l *Lanes) LaneNum(p LanePoint) int {
	index := int64(-1)
	for i, v := range l.Lines {
		// tmp = (y1-y2)*x + (x2-x1)*y + x1*y2 - x2*y1
		// tmp > 0 left of the line, = 0 on it, < 0 right of it
		tmp := (v.Top.Y-v.Btm.Y)*p.X + (v.Btm.X-v.Top.X)*p.Y +
			v.Top.X*v.Btm.Y - v.Btm.X*v.Top.Y
		if tmp < 0 {
			index = int64(i)
		} else {
			break
		}
	}

	index++

	// index 0 is left of the leftmost divider, index len(lines) is
	// right of the rightmost one; both are outside the lanes.
	if index == 0 || index >= int64(len(l.Lines)) {
		return 0
	}
	return int(index)
}

// VehicleLaneNum numbers lanes from the road center outward. sameDirect
// is true when the camera faces the vehicle's tail.
func (l *Lanes) VehicleLaneNum(p LanePoint, sameDirect bool) int {
	lane := l.LaneNum(p)
	if lane == 0 || sameDirect {
		return lane
	}
	return len(l.Lines) - lane
}

// VehicleLane parses desc and returns the lane number for (x, y).
func VehicleLane(x, y int64, desc string, sameDirect bool) (int, error) {
	lanes, err := ParseLanes(desc)
	if err != nil {
		return 0, err
	}
	return lanes.VehicleLaneNum(LanePoint{X: x, Y: y}, sameDirect), nil
}
