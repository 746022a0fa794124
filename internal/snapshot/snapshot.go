// Package snapshot builds the published track representations from
// database rows and cached library metadata.
package snapshot

import (
	"fmt"

	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imgstore"
)

// Camera converts a camera row to its snapshot block. nil in, nil out.
func Camera(po *dao.CfDfsource) *core.CameraInfo {
	if po == nil {
		return nil
	}
	return &core.CameraInfo{
		ID:    po.ID,
		Sid:   po.SrcSid,
		Name:  po.Name,
		URL:   po.SrcURL,
		State: po.SrcState,
		Memo:  po.Memo,
	}
}

// PersonHit builds the matched-person block from a person row, the
// match score and the library the person belongs to.
func PersonHit(urlPrefix string, po *dao.CfPoi, score float64, db *dao.CfDfdb) (*core.PersonHit, error) {
	ids, err := imgstore.ParseIDScores(po.FeatureIds)
	if err != nil {
		return nil, fmt.Errorf("person %s feature_ids: %w", po.PoiSid, err)
	}

	imgsURL := make([]string, 0, len(ids))
	for _, it := range ids {
		imgsURL = append(imgsURL, imgstore.PersonImgURL(urlPrefix, po.PoiSid, it.ID))
	}

	coverURL := ""
	if po.Cover != 0 {
		coverURL = imgstore.PersonCoverURL(urlPrefix, po.PoiSid)
	}

	return &core.PersonHit{
		ID:        po.ID,
		Sid:       po.PoiSid,
		Name:      po.Name,
		IDCard:    po.IdentityCard,
		Gender:    int64(po.Gender),
		Cover:     int64(po.Cover),
		CoverURL:  coverURL,
		ImgsURL:   imgsURL,
		Threshold: int64(po.Threshold),
		Score:     int64(score),
		DbSid:     db.DbSid,
		DbName:    db.Name,
		BwFlag:    int64(db.BwFlag),
	}, nil
}

// CoiHit builds the matched-vehicle block from a VOI row and its group.
func CoiHit(po *dao.CfCoi, group *dao.CfCoiGroup) *core.CoiHit {
	return &core.CoiHit{
		ID:           po.ID,
		Sid:          po.Sid,
		PlateContent: po.PlateContent,
		PlateType:    po.PlateType,
		OwnerName:    po.OwnerName,
		OwnerPhone:   po.OwnerPhone,
		OwnerAddress: po.OwnerAddress,
		GroupSid:     group.Sid,
		GroupName:    group.Name,
		BwFlag:       int64(group.BwFlag),
	}
}

// FaceFromRow rebuilds a face snapshot from its persisted row, used to
// seed the dashboard window at startup. Features are not recoverable
// from the row and stay empty.
func FaceFromRow(urlPrefix string, po *dao.CfFacetrack, camera *dao.CfDfsource) (*core.FaceSnap, error) {
	ids, err := imgstore.ParseIDScores(po.ImgIds)
	if err != nil {
		return nil, fmt.Errorf("facetrack %s img_ids: %w", po.FtSid, err)
	}

	faces := make([]core.FaceItem, 0, len(ids))
	for _, it := range ids {
		faces = append(faces, core.FaceItem{
			Index:   it.ID,
			Quality: it.Score,
			SImgURL: imgstore.FaceTrackSmallURL(urlPrefix, po.FtSid, it.ID),
			LImgURL: imgstore.FaceTrackLargeURL(urlPrefix, po.FtSid, it.ID),
		})
	}

	return &core.FaceSnap{
		Sid: po.FtSid,
		Face: core.FaceInfo{
			Sid:    po.FtSid,
			Source: po.SrcSid,
			Faces:  faces,
			Props: &core.FaceProps{
				Age:       int64(po.Age),
				Gender:    int64(po.Gender),
				Glasses:   int64(po.Glasses),
				Direction: int64(po.Direction),
			},
			BgURL:   imgstore.FaceTrackBgURL(urlPrefix, po.FtSid),
			Ts:      po.CaptureTime,
			Matched: po.Matched == 1,
			Judged:  po.Judged == 1,
			Alarmed: po.Alarmed == 1,
		},
		Camera: Camera(camera),
	}, nil
}

// CarFromRow rebuilds a vehicle snapshot from its persisted row.
func CarFromRow(urlPrefix string, po *dao.CfCartrack, camera *dao.CfDfsource) (*core.CarSnap, error) {
	ids, err := imgstore.ParseIDScores(po.ImgIds)
	if err != nil {
		return nil, fmt.Errorf("cartrack %s img_ids: %w", po.Sid, err)
	}

	imgURLs := make([]string, 0, len(ids))
	for _, it := range ids {
		imgURLs = append(imgURLs, imgstore.CarTrackImgURL(urlPrefix, po.Sid, it.ID))
	}

	var plate *core.PlateHit
	if po.PlateJudged == 1 {
		plate = &core.PlateHit{
			Content:   po.PlateContent,
			PlateType: po.PlateType,
			ImgURL:    imgstore.CarTrackPlateURL(urlPrefix, po.Sid),
		}
	}

	var props *core.VehicleProps
	if po.VehicleJudged == 1 {
		props = &core.VehicleProps{
			Color:      po.CarColor,
			Brand:      po.CarBrand,
			TopSeries:  po.CarTopSeries,
			Series:     po.CarSeries,
			TopType:    po.CarTopType,
			MidType:    po.CarMidType,
			Direct:     po.CarDirect,
			MoveDirect: int64(po.MoveDirect),
		}
	}

	return &core.CarSnap{
		Sid: po.Sid,
		Car: core.CarInfo{
			Sid:     po.Sid,
			Source:  po.SrcSid,
			ImgURLs: imgURLs,
			Plate:   plate,
			Props:   props,
			BgURL:   imgstore.CarTrackBgURL(urlPrefix, po.Sid),
			Ts:      po.CaptureTime,
			Alarmed: po.Alarmed == 1,
		},
		Camera: Camera(camera),
	}, nil
}
