// Package imgstore implements the on-disk image layout, the external URL
// scheme that maps back onto it, and the image write path with BMP
// normalization.
//
// Layout, sharded on the first four characters of the ID:
//
//	<root>/facetrack/<shard>/<id>/<id>_bg.jpg
//	<root>/facetrack/<shard>/<id>/<id>_<n>_S.jpg
//	<root>/facetrack/<shard>/<id>/<id>_<n>_L.jpg
//	<root>/cartrack/<shard>/<id>/<id>_bg.jpg
//	<root>/cartrack/<shard>/<id>/<id>_<n>_S.jpg
//	<root>/cartrack/<shard>/<id>/<id>_p.jpg
//	<root>/cartrack/<shard>/<id>/<id>_bin.jpg
//	<root>/person/<shard>/<id>/<id>_<faceId>.jpg
//	<root>/person/<shard>/<id>/<id>_c.jpg
package imgstore

import (
	"fmt"
	"path/filepath"
)

const (
	dirFaceTrack = "facetrack"
	dirCarTrack  = "cartrack"
	dirPerson    = "person"
)

// shard returns the two-level shard component for an ID. IDs of four
// characters or fewer shard under themselves.
func shard(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}

func FaceTrackDir(root, sid string) string {
	return filepath.Join(root, dirFaceTrack, shard(sid), sid)
}

func FaceTrackBgPath(root, sid string) string {
	return filepath.Join(FaceTrackDir(root, sid), sid+"_bg.jpg")
}

func FaceTrackSmallPath(root, sid string, index int64) string {
	return filepath.Join(FaceTrackDir(root, sid), fmt.Sprintf("%s_%d_S.jpg", sid, index))
}

func FaceTrackLargePath(root, sid string, index int64) string {
	return filepath.Join(FaceTrackDir(root, sid), fmt.Sprintf("%s_%d_L.jpg", sid, index))
}

func CarTrackDir(root, sid string) string {
	return filepath.Join(root, dirCarTrack, shard(sid), sid)
}

func CarTrackBgPath(root, sid string) string {
	return filepath.Join(CarTrackDir(root, sid), sid+"_bg.jpg")
}

func CarTrackImgPath(root, sid string, index int64) string {
	return filepath.Join(CarTrackDir(root, sid), fmt.Sprintf("%s_%d_S.jpg", sid, index))
}

func CarTrackPlatePath(root, sid string) string {
	return filepath.Join(CarTrackDir(root, sid), sid+"_p.jpg")
}

func CarTrackPlateBinPath(root, sid string) string {
	return filepath.Join(CarTrackDir(root, sid), sid+"_bin.jpg")
}

func PersonDir(root, sid string) string {
	return filepath.Join(root, dirPerson, shard(sid), sid)
}

func PersonImgPath(root, sid string, faceID int64) string {
	return filepath.Join(PersonDir(root, sid), fmt.Sprintf("%s_%d.jpg", sid, faceID))
}

func PersonCoverPath(root, sid string) string {
	return filepath.Join(PersonDir(root, sid), sid+"_c.jpg")
}
