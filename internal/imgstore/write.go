package imgstore

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"

	"golang.org/x/image/bmp"
)

const jpegQuality = 85

// IsBMP checks the BMP magic.
func IsBMP(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x42 && data[1] == 0x4D
}

// WriteJpg writes an image payload to path. BMP input is decoded and
// re-encoded as JPEG; everything else is written verbatim.
func WriteJpg(path string, data []byte) error {
	if IsBMP(data) {
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode bmp: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// PrepareDir creates dir and its parents if absent.
func PrepareDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
