package imgstore

import (
	"bytes"
	"image"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestShardLayout(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/r", "facetrack", "abcd", "abcdef", "abcdef_bg.jpg"),
		FaceTrackBgPath("/r", "abcdef"))

	// short IDs shard under themselves
	assert.Equal(t,
		filepath.Join("/r", "facetrack", "ab", "ab", "ab_1_S.jpg"),
		FaceTrackSmallPath("/r", "ab", 1))

	assert.Equal(t,
		filepath.Join("/r", "cartrack", "1234", "123456", "123456_p.jpg"),
		CarTrackPlatePath("/r", "123456"))

	assert.Equal(t,
		filepath.Join("/r", "person", "uuid", "uuid-x", "uuid-x_3.jpg"),
		PersonImgPath("/r", "uuid-x", 3))
}

func TestURLResolveRoundTrip(t *testing.T) {
	root := "/data/imgs"
	prefix := "http://10.0.0.1:7001/getsingleimg"

	cases := []struct {
		rawurl string
		want   string
	}{
		{FaceTrackSmallURL(prefix, "T100", 2), FaceTrackSmallPath(root, "T100", 2)},
		{FaceTrackLargeURL(prefix, "T100", 2), FaceTrackLargePath(root, "T100", 2)},
		{FaceTrackBgURL(prefix, "T100"), FaceTrackBgPath(root, "T100")},
		{PersonImgURL(prefix, "P200", 7), PersonImgPath(root, "P200", 7)},
		{PersonCoverURL(prefix, "P200"), PersonCoverPath(root, "P200")},
		{CarTrackImgURL(prefix, "C300", 1), CarTrackImgPath(root, "C300", 1)},
		{CarTrackBgURL(prefix, "C300"), CarTrackBgPath(root, "C300")},
		{CarTrackPlateURL(prefix, "C300"), CarTrackPlatePath(root, "C300")},
		{CarTrackPlateBinURL(prefix, "C300"), CarTrackPlateBinPath(root, "C300")},
	}

	for _, tc := range cases {
		u, err := url.Parse(tc.rawurl)
		require.NoError(t, err)
		q := u.Query()
		cat, err := strconv.Atoi(q.Get("cat"))
		require.NoError(t, err)

		got, err := ResolvePath(root, cat, q.Get("type"), q.Get("id"), q.Get("subid"))
		require.NoError(t, err, tc.rawurl)
		assert.Equal(t, tc.want, got, tc.rawurl)
	}
}

func TestResolveRejectsUnknownCombos(t *testing.T) {
	_, err := ResolvePath("/r", 0, "p", "id", "")
	assert.ErrorIs(t, err, ErrUnknownCombo)

	_, err = ResolvePath("/r", 1, "bg", "id", "")
	assert.ErrorIs(t, err, ErrUnknownCombo)

	// subid missing for small image
	_, err = ResolvePath("/r", 0, "s", "id", "")
	assert.ErrorIs(t, err, ErrUnknownCombo)

	_, err = ResolvePath("/r", 3, "s", "id", "1")
	assert.ErrorIs(t, err, ErrUnknownCombo)
}

func TestIDScoresRoundTrip(t *testing.T) {
	in := []IDScore{{1, 0.9}, {2, 0.75}}
	enc := EncodeIDScores(in)
	assert.Equal(t, "1:0.9,2:0.75", enc)

	out, err := ParseIDScores(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseIDScoresToleratesTrailingComma(t *testing.T) {
	out, err := ParseIDScores("1:1,2:1,")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[1].ID)
}

func TestParseIDScoresRejectsGarbage(t *testing.T) {
	_, err := ParseIDScores("nope")
	assert.Error(t, err)
}

func encodeBMP(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func TestWriteJpgNormalizesBMP(t *testing.T) {
	data := encodeBMP(t)
	require.True(t, IsBMP(data))

	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, WriteJpg(path, data))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, byte(0xFF), got[0])
	assert.Equal(t, byte(0xD8), got[1])
}

func TestWriteJpgPassthrough(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, WriteJpg(path, data))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPrepareDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, PrepareDir(dir))
	require.NoError(t, PrepareDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
