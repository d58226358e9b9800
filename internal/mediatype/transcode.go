package mediatype

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/jdeng/goheif"
)

// jpegQuality matches what the CMS uses for its own processed images.
const jpegQuality = 85

// transcodeToJPEG decodes a HEIC/HEIF buffer and re-encodes it as JPEG.
func transcodeToJPEG(body []byte) ([]byte, error) {
	img, err := goheif.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode heic: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
