package imgstore

import "fmt"

// External image URLs all share one query scheme over a single endpoint:
//
//	<prefix>?cat={0|1|2}&type={s|l|bg|c|p|bin}&id=<id>[&subid=<n>]
//
// cat 0 is facetrack, cat 1 is person, cat 2 is cartrack.
const (
	CatFaceTrack = 0
	CatPerson    = 1
	CatCarTrack  = 2
)

func FaceTrackSmallURL(prefix, sid string, index int64) string {
	return fmt.Sprintf("%s?cat=0&type=s&id=%s&subid=%d", prefix, sid, index)
}

func FaceTrackLargeURL(prefix, sid string, index int64) string {
	return fmt.Sprintf("%s?cat=0&type=l&id=%s&subid=%d", prefix, sid, index)
}

func FaceTrackBgURL(prefix, sid string) string {
	return fmt.Sprintf("%s?cat=0&type=bg&id=%s", prefix, sid)
}

func PersonImgURL(prefix, sid string, faceID int64) string {
	return fmt.Sprintf("%s?cat=1&type=s&id=%s&subid=%d", prefix, sid, faceID)
}

func PersonCoverURL(prefix, sid string) string {
	return fmt.Sprintf("%s?cat=1&type=c&id=%s", prefix, sid)
}

func CarTrackImgURL(prefix, sid string, index int64) string {
	return fmt.Sprintf("%s?cat=2&type=s&id=%s&subid=%d", prefix, sid, index)
}

func CarTrackBgURL(prefix, sid string) string {
	return fmt.Sprintf("%s?cat=2&type=bg&id=%s", prefix, sid)
}

func CarTrackPlateURL(prefix, sid string) string {
	return fmt.Sprintf("%s?cat=2&type=p&id=%s", prefix, sid)
}

func CarTrackPlateBinURL(prefix, sid string) string {
	return fmt.Sprintf("%s?cat=2&type=bin&id=%s", prefix, sid)
}
