package ocr

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF Orientation tag value, conventionally 1 to 8.
type Orientation int

// Orientation codes acted upon by CorrectOrientation.
const (
	OrientationNormal     Orientation = 1
	OrientationUpsideDown Orientation = 3
	OrientationRotated6   Orientation = 6
	OrientationRotated8   Orientation = 8
)

// ReadOrientation extracts the EXIF orientation from an encoded image.
// A missing container, a missing tag, an unreadable value or a malformed
// payload all report ok == false.
func ReadOrientation(data []byte) (o Orientation, ok bool) {
	defer func() {
		// goexif panics on some truncated IFDs.
		if recover() != nil {
			o, ok = 0, false
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x == nil {
		return 0, false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil || tag == nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return Orientation(v), true
}

// CorrectOrientation rotates img according to the hint. Rotations are
// counter-clockwise and produce a new canvas sized to the rotated content;
// img is never modified.
//
//	3 -> 180 degrees
//	6 -> 270 degrees
//	8 -> 90 degrees
//
// Without a hint, or for any other code, img is returned as is.
func CorrectOrientation(img image.Image, o Orientation, ok bool) image.Image {
	if !ok {
		return img
	}
	switch o {
	case OrientationUpsideDown:
		return imaging.Rotate180(img)
	case OrientationRotated6:
		return imaging.Rotate270(img)
	case OrientationRotated8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Corrected applies CorrectOrientation to the source's own hint.
func (s *SourceImage) Corrected() image.Image {
	return CorrectOrientation(s.Image, s.Orientation, s.HasOrientation)
}

// Rotates reports whether o changes the image under CorrectOrientation.
func (o Orientation) Rotates() bool {
	return o == OrientationUpsideDown || o == OrientationRotated6 || o == OrientationRotated8
}
