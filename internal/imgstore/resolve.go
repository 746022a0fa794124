package imgstore

import (
	"errors"
	"strconv"
)

// ErrUnknownCombo is returned when (cat, type, subid) do not form a valid
// image reference.
var ErrUnknownCombo = errors.New("imgstore: unknown cat/type combination")

// ResolvePath maps external URL query parameters back onto the layout.
// Valid combinations: (0, s|l|bg), (1, s|c), (2, s|p|bg|bin). subid is
// required for type s and l.
func ResolvePath(root string, cat int, typ, id, subid string) (string, error) {
	needSub := typ == "s" || typ == "l"
	var sub int64
	if needSub {
		v, err := strconv.ParseInt(subid, 10, 64)
		if err != nil {
			return "", ErrUnknownCombo
		}
		sub = v
	}

	switch cat {
	case CatFaceTrack:
		switch typ {
		case "s":
			return FaceTrackSmallPath(root, id, sub), nil
		case "l":
			return FaceTrackLargePath(root, id, sub), nil
		case "bg":
			return FaceTrackBgPath(root, id), nil
		}
	case CatPerson:
		switch typ {
		case "s":
			return PersonImgPath(root, id, sub), nil
		case "c":
			return PersonCoverPath(root, id), nil
		}
	case CatCarTrack:
		switch typ {
		case "s":
			return CarTrackImgPath(root, id, sub), nil
		case "p":
			return CarTrackPlatePath(root, id), nil
		case "bg":
			return CarTrackBgPath(root, id), nil
		case "bin":
			return CarTrackPlateBinPath(root, id), nil
		}
	}
	return "", ErrUnknownCombo
}
