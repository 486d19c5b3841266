package ocr

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"mime"
	"strings"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// SourceImage is a decoded input image plus its orientation hint.
type SourceImage struct {
	Image  image.Image
	Format string

	// Orientation is only meaningful when HasOrientation is true.
	Orientation    Orientation
	HasOrientation bool
}

// DecodeSource reads r fully, decodes the pixels and looks for an EXIF
// orientation hint in the same bytes. Decode failures and empty canvases
// wrap ErrInvalidImage; missing metadata does not fail.
func DecodeSource(r io.Reader) (*SourceImage, error) {
	return DecodeSourceLimit(r, 0)
}

// DecodeSourceLimit is DecodeSource with a cap on width*height. The header
// is checked before any pixel is decoded; oversized images wrap
// ErrInvalidImage. A maxPixels of zero disables the cap.
func DecodeSourceLimit(r io.Reader, maxPixels int) (*SourceImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, invalidImagef("read failed: %v", err)
	}
	return decodeSource(data, maxPixels)
}

// DecodeSourceBytes is DecodeSource over an in-memory payload.
func DecodeSourceBytes(data []byte) (*SourceImage, error) {
	return decodeSource(data, 0)
}

func decodeSource(data []byte, maxPixels int) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, invalidImagef("empty input")
	}

	if maxPixels > 0 {
		hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, invalidImagef("decode failed: %v", err)
		}
		if int64(hdr.Width)*int64(hdr.Height) > int64(maxPixels) {
			return nil, invalidImagef("%dx%d exceeds the %d pixel limit", hdr.Width, hdr.Height, maxPixels)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalidImagef("decode failed: %v", err)
	}
	if err := checkDimensions(img); err != nil {
		return nil, err
	}

	o, ok := ReadOrientation(data)
	return &SourceImage{
		Image:          img,
		Format:         format,
		Orientation:    o,
		HasOrientation: ok,
	}, nil
}

// CheckMediaType accepts image/* types plus the empty and generic binary
// types, which are left to the decoder. Anything else wraps ErrInvalidImage.
func CheckMediaType(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if contentType == "" || (err == nil && mt == "application/octet-stream") {
		return nil
	}
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return invalidImagef("unsupported media type %q", contentType)
	}
	return nil
}

func checkDimensions(img image.Image) error {
	if img == nil {
		return invalidImagef("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return invalidImagef("degenerate dimensions %dx%d", b.Dx(), b.Dy())
	}
	return nil
}
