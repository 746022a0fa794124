package backend

import (
	"context"
	"time"
)

// RecognitionClient talks to the recognition back-end that owns face
// libraries, persons and 1:1 / 1:N matching.
type RecognitionClient struct {
	client
}

func NewRecognitionClient(base string) *RecognitionClient {
	return &RecognitionClient{client: newClient(base, defaultTimeout)}
}

func NewRecognitionClientTimeout(base string, timeout time.Duration) *RecognitionClient {
	return &RecognitionClient{client: newClient(base, timeout)}
}

// FeatureQuality is one feature vector with its source image quality.
// Features travel base64-encoded.
type FeatureQuality struct {
	Feature string  `json:"feature"`
	Quality float64 `json:"quality"`
}

// DetectFace is one face found by detect / get_features.
type DetectFace struct {
	Aligned string  `json:"aligned"`
	Display string  `json:"display,omitempty"`
	Feature string  `json:"feature,omitempty"`
	Quality float64 `json:"quality"`
}

type detectReq struct {
	Image   string `json:"image"`
	Fast    bool   `json:"fast"`
	Feature bool   `json:"feature"`
}

type detectRes struct {
	Status
	Faces []DetectFace `json:"faces"`
}

// Detect finds faces in a single base64 image.
func (c *RecognitionClient) Detect(ctx context.Context, image string, fast, feature bool) ([]DetectFace, error) {
	var res detectRes
	if err := c.post(ctx, "detect", detectReq{Image: image, Fast: fast, Feature: feature}, &res); err != nil {
		return nil, err
	}
	if err := res.err("detect"); err != nil {
		return nil, err
	}
	return res.Faces, nil
}

type getFeaturesReq struct {
	Images []string `json:"images"`
	Fast   bool     `json:"fast"`
}

type getFeaturesRes struct {
	Status
	Faces [][]DetectFace `json:"faces"`
}

// GetFeatures extracts features from a batch of base64 images; the
// result is parallel to the input.
func (c *RecognitionClient) GetFeatures(ctx context.Context, images []string, fast bool) ([][]DetectFace, error) {
	var res getFeaturesRes
	if err := c.post(ctx, "get_features", getFeaturesReq{Images: images, Fast: fast}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_features"); err != nil {
		return nil, err
	}
	return res.Faces, nil
}

type createDbReq struct {
	Sid      string `json:"sid,omitempty"`
	Capacity int64  `json:"capacity"`
}

type createDbRes struct {
	Status
	Sid string `json:"sid"`
}

// CreateDb creates a face library. sid may be empty to let the
// back-end allocate one.
func (c *RecognitionClient) CreateDb(ctx context.Context, sid string, capacity int64) (string, error) {
	var res createDbRes
	if err := c.post(ctx, "create_db", createDbReq{Sid: sid, Capacity: capacity}, &res); err != nil {
		return "", err
	}
	if err := res.err("create_db"); err != nil {
		return "", err
	}
	return res.Sid, nil
}

type dbReq struct {
	Sid string `json:"sid"`
}

// DeleteDb removes a face library.
func (c *RecognitionClient) DeleteDb(ctx context.Context, sid string) error {
	var res Status
	if err := c.post(ctx, "delete_db", dbReq{Sid: sid}, &res); err != nil {
		return err
	}
	return res.err("delete_db")
}

// FlushDb persists a library's in-memory state.
func (c *RecognitionClient) FlushDb(ctx context.Context, sid string) error {
	var res Status
	if err := c.post(ctx, "flush_db", dbReq{Sid: sid}, &res); err != nil {
		return err
	}
	return res.err("flush_db")
}

type getDbsRes struct {
	Status
	Dbs []string `json:"dbs"`
}

// GetDbs lists library sids.
func (c *RecognitionClient) GetDbs(ctx context.Context) ([]string, error) {
	var res getDbsRes
	if err := c.post(ctx, "get_dbs", struct{}{}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_dbs"); err != nil {
		return nil, err
	}
	return res.Dbs, nil
}

// DbInfo describes one face library.
type DbInfo struct {
	Sid      string `json:"sid"`
	Capacity int64  `json:"capacity"`
	Used     int64  `json:"used"`
}

type getDbInfoRes struct {
	Status
	Db *DbInfo `json:"db"`
}

// GetDbInfo loads one library.
func (c *RecognitionClient) GetDbInfo(ctx context.Context, sid string) (*DbInfo, error) {
	var res getDbInfoRes
	if err := c.post(ctx, "get_db_info", dbReq{Sid: sid}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_db_info"); err != nil {
		return nil, err
	}
	return res.Db, nil
}

// PersonRecord is one enrolled person as the back-end reports it.
type PersonRecord struct {
	ID    string  `json:"id"`
	Faces []int64 `json:"faces"`
}

type getDbPersonsReq struct {
	Db     string `json:"db"`
	Offset int64  `json:"offset"`
	Limit  int64  `json:"limit"`
}

type personsRes struct {
	Status
	Persons []PersonRecord `json:"persons"`
}

// GetDbPersons pages through a library's persons.
func (c *RecognitionClient) GetDbPersons(ctx context.Context, db string, offset, limit int64) ([]PersonRecord, error) {
	var res personsRes
	if err := c.post(ctx, "get_db_persons", getDbPersonsReq{Db: db, Offset: offset, Limit: limit}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_db_persons"); err != nil {
		return nil, err
	}
	return res.Persons, nil
}

type personReq struct {
	Db string `json:"db"`
	ID string `json:"id"`
}

type getPersonInfoRes struct {
	Status
	Person *PersonRecord `json:"person"`
}

// GetPersonInfo loads one person.
func (c *RecognitionClient) GetPersonInfo(ctx context.Context, db, id string) (*PersonRecord, error) {
	var res getPersonInfoRes
	if err := c.post(ctx, "get_person_info", personReq{Db: db, ID: id}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_person_info"); err != nil {
		return nil, err
	}
	return res.Person, nil
}

type createPersonsReq struct {
	Db       string             `json:"db"`
	IDs      []string           `json:"ids"`
	Features [][]FeatureQuality `json:"features"`
}

// CreatePersons enrolls a batch of persons with their features. The
// response is parallel to ids; each record carries the face IDs the
// back-end assigned.
func (c *RecognitionClient) CreatePersons(ctx context.Context, db string, ids []string, features [][]FeatureQuality) ([]PersonRecord, error) {
	var res personsRes
	if err := c.post(ctx, "create_persons", createPersonsReq{Db: db, IDs: ids, Features: features}, &res); err != nil {
		return nil, err
	}
	if err := res.err("create_persons"); err != nil {
		return nil, err
	}
	return res.Persons, nil
}

// DeletePerson removes one person.
func (c *RecognitionClient) DeletePerson(ctx context.Context, db, id string) error {
	var res Status
	if err := c.post(ctx, "delete_person", personReq{Db: db, ID: id}, &res); err != nil {
		return err
	}
	return res.err("delete_person")
}

type deleteFeatureReq struct {
	Db     string `json:"db"`
	ID     string `json:"id"`
	FaceID int64  `json:"face_id"`
}

// DeletePersonFeature removes one feature from a person.
func (c *RecognitionClient) DeletePersonFeature(ctx context.Context, db, id string, faceID int64) error {
	var res Status
	if err := c.post(ctx, "delete_person_feature", deleteFeatureReq{Db: db, ID: id, FaceID: faceID}, &res); err != nil {
		return err
	}
	return res.err("delete_person_feature")
}

type addFeaturesReq struct {
	Db       string           `json:"db"`
	ID       string           `json:"id"`
	Features []FeatureQuality `json:"features"`
}

type addFeaturesRes struct {
	Status
	Faces []int64 `json:"faces"`
}

// AddFeaturesToPerson appends features to an existing person and
// returns the assigned face IDs.
func (c *RecognitionClient) AddFeaturesToPerson(ctx context.Context, db, id string, features []FeatureQuality) ([]int64, error) {
	var res addFeaturesRes
	if err := c.post(ctx, "add_features_to_person", addFeaturesReq{Db: db, ID: id, Features: features}, &res); err != nil {
		return nil, err
	}
	if err := res.err("add_features_to_person"); err != nil {
		return nil, err
	}
	return res.Faces, nil
}

type movePersonsReq struct {
	SrcDb string   `json:"src_db"`
	DstDb string   `json:"dst_db"`
	IDs   []string `json:"ids"`
}

// MovePersons moves persons between libraries.
func (c *RecognitionClient) MovePersons(ctx context.Context, srcDb, dstDb string, ids []string) error {
	var res Status
	if err := c.post(ctx, "move_persons", movePersonsReq{SrcDb: srcDb, DstDb: dstDb, IDs: ids}, &res); err != nil {
		return err
	}
	return res.err("move_persons")
}

type compareReq struct {
	ImageA string `json:"image_a"`
	ImageB string `json:"image_b"`
}

type compareRes struct {
	Status
	Score float64 `json:"score"`
}

// Compare scores two base64 images 1:1.
func (c *RecognitionClient) Compare(ctx context.Context, imageA, imageB string) (float64, error) {
	var res compareRes
	if err := c.post(ctx, "compare", compareReq{ImageA: imageA, ImageB: imageB}, &res); err != nil {
		return 0, err
	}
	if err := res.err("compare"); err != nil {
		return 0, err
	}
	return res.Score, nil
}

type compareNReq struct {
	Image    string   `json:"image"`
	Features []string `json:"features"`
}

type compareNRes struct {
	Status
	Scores []float64 `json:"scores"`
}

// CompareN scores one image against a list of features.
func (c *RecognitionClient) CompareN(ctx context.Context, image string, features []string) ([]float64, error) {
	var res compareNRes
	if err := c.post(ctx, "compare_n", compareNReq{Image: image, Features: features}, &res); err != nil {
		return nil, err
	}
	if err := res.err("compare_n"); err != nil {
		return nil, err
	}
	return res.Scores, nil
}

// SearchHit is one match in a 1:N search.
type SearchHit struct {
	ID    string  `json:"id"`
	Db    string  `json:"db"`
	Score float64 `json:"score"`
}

type searchReq struct {
	Dbs        []string           `json:"dbs"`
	Tops       []int64            `json:"tops"`
	Thresholds []int64            `json:"thresholds"`
	Persons    [][]FeatureQuality `json:"persons"`
}

type searchRes struct {
	Status
	Persons [][]SearchHit `json:"persons"`
}

// Search runs 1:N over the given libraries. Element i of the result
// lists the hits for input person i, best first.
func (c *RecognitionClient) Search(ctx context.Context, dbs []string, tops, thresholds []int64, persons [][]FeatureQuality) ([][]SearchHit, error) {
	var res searchRes
	if err := c.post(ctx, "search", searchReq{Dbs: dbs, Tops: tops, Thresholds: thresholds, Persons: persons}, &res); err != nil {
		return nil, err
	}
	if err := res.err("search"); err != nil {
		return nil, err
	}
	return res.Persons, nil
}
