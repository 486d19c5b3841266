package ocr

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markedImage() *image.NRGBA {
	// 4x2 canvas, red marker at the top-left corner.
	img := imaging.New(4, 2, color.White)
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0 && b == 0
}

func TestReadOrientation(t *testing.T) {
	img := markedImage()
	for _, code := range []uint16{1, 2, 3, 4, 5, 6, 7, 8} {
		o, ok := ReadOrientation(jpegWithOrientation(t, img, code))
		require.True(t, ok, "code %d", code)
		assert.Equal(t, Orientation(code), o)
	}
}

func TestReadOrientationAbsent(t *testing.T) {
	img := markedImage()
	tests := []struct {
		name string
		data []byte
	}{
		{"png without metadata", encodePNG(t, img)},
		{"jpeg without metadata", encodeJPEG(t, img)},
		{"garbage", []byte("definitely not an image")},
		{"empty", nil},
		{"truncated exif", append([]byte{0xFF, 0xD8}, exifOrientationSegment(6)[:14]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, ok := ReadOrientation(tt.data)
			assert.False(t, ok)
			assert.Zero(t, o)
		})
	}
}

func TestCorrectOrientation(t *testing.T) {
	tests := []struct {
		name       string
		code       Orientation
		ok         bool
		wantSize   image.Point
		wantMarker image.Point
	}{
		{"no hint", 6, false, image.Pt(4, 2), image.Pt(0, 0)},
		{"normal", 1, true, image.Pt(4, 2), image.Pt(0, 0)},
		{"upside down", 3, true, image.Pt(4, 2), image.Pt(3, 1)},
		{"code 6 turns 270", 6, true, image.Pt(2, 4), image.Pt(1, 0)},
		{"code 8 turns 90", 8, true, image.Pt(2, 4), image.Pt(0, 3)},
		{"mirrored code ignored", 2, true, image.Pt(4, 2), image.Pt(0, 0)},
		{"code 5 ignored", 5, true, image.Pt(4, 2), image.Pt(0, 0)},
		{"code 7 ignored", 7, true, image.Pt(4, 2), image.Pt(0, 0)},
		{"out of range ignored", 42, true, image.Pt(4, 2), image.Pt(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := markedImage()
			before := imaging.Clone(src)

			got := CorrectOrientation(src, tt.code, tt.ok)

			assert.Equal(t, tt.wantSize, got.Bounds().Size())
			b := got.Bounds()
			assert.True(t, isRed(got.At(b.Min.X+tt.wantMarker.X, b.Min.Y+tt.wantMarker.Y)),
				"marker not at %v", tt.wantMarker)
			assert.Equal(t, before.Pix, src.Pix, "input must not be mutated")
		})
	}
}

func TestCorrectOrientationWithoutHintIsIdentical(t *testing.T) {
	src := renderText("ABC", 2)
	got := CorrectOrientation(src, 0, false)
	samePixels(t, src, got)
}

func TestSourceImageCorrected(t *testing.T) {
	src, err := DecodeSourceBytes(jpegWithOrientation(t, imaging.New(30, 10, color.White), 8))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", src.Format)
	assert.True(t, src.HasOrientation)
	assert.Equal(t, OrientationRotated8, src.Orientation)
	assert.Equal(t, image.Pt(10, 30), src.Corrected().Bounds().Size())
}

func TestDecodeSourceInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("GIF89a but not really")},
		{"truncated png", encodePNG(t, markedImage())[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSourceBytes(tt.data)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestDecodeSourceLimit(t *testing.T) {
	data := encodePNG(t, markedImage())
	size := markedImage().Bounds().Size()
	pixels := size.X * size.Y

	src, err := DecodeSourceLimit(bytes.NewReader(data), pixels)
	require.NoError(t, err)
	assert.Equal(t, size, src.Image.Bounds().Size())

	_, err = DecodeSourceLimit(bytes.NewReader(data), pixels-1)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = DecodeSourceLimit(bytes.NewReader(data), 0)
	assert.NoError(t, err)

	_, err = DecodeSourceLimit(bytes.NewReader([]byte("not an image")), 100)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestCheckMediaType(t *testing.T) {
	for _, ok := range []string{"", "image/png", "image/jpeg", "image/webp; q=1", "application/octet-stream"} {
		assert.NoError(t, CheckMediaType(ok), ok)
	}
	for _, bad := range []string{"application/pdf", "text/plain; charset=utf-8", "video/mp4", ";;"} {
		assert.ErrorIs(t, CheckMediaType(bad), ErrInvalidImage, bad)
	}
}

func TestOrientationRotates(t *testing.T) {
	assert.True(t, OrientationUpsideDown.Rotates())
	assert.True(t, OrientationRotated6.Rotates())
	assert.True(t, OrientationRotated8.Rotates())
	assert.False(t, OrientationNormal.Rotates())
	assert.False(t, Orientation(2).Rotates())
}
