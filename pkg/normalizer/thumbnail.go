package normalizer

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// Thumbnail shrinks an upload so that neither side exceeds maxDim and
// re-encodes it as JPEG. Images already within bounds, or ones that cannot
// be decoded, are returned untouched with resized=false.
func Thumbnail(data []byte, mediaType string, maxDim, quality int) (out []byte, outType string, resized bool) {
	img, err := Decode(data)
	if err != nil {
		return data, mediaType, false
	}

	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return data, mediaType, false
	}

	fitted := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := EncodeImage(&buf, fitted, "image/jpeg", quality); err != nil {
		return data, mediaType, false
	}
	return buf.Bytes(), "image/jpeg", true
}
