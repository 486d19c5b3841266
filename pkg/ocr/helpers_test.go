package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// renderText draws s in black on white with the 7x13 bitmap face, then
// scales it up with nearest-neighbour so strokes are scale pixels wide.
func renderText(s string, scale int) *image.NRGBA {
	const margin = 4
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil() + 2*margin
	h := face.Height + 2*margin

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(margin, margin+face.Ascent),
	}
	d.DrawString(s)

	return imaging.Resize(img, w*scale, h*scale, imaging.NearestNeighbor)
}

// blankWithRects returns a white canvas with solid black rectangles.
func blankWithRects(w, h int, rects ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	for _, r := range rects {
		draw.Draw(img, r, &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

// exifOrientationSegment builds an APP1 segment holding a little-endian
// TIFF header and a single IFD0 Orientation entry.
func exifOrientationSegment(code uint16) []byte {
	tiff := []byte{
		'I', 'I', 0x2A, 0x00, // byte order, magic
		0x08, 0x00, 0x00, 0x00, // IFD0 offset
		0x01, 0x00, // one entry
		0x12, 0x01, // tag 0x0112 Orientation
		0x03, 0x00, // SHORT
		0x01, 0x00, 0x00, 0x00, // count
		byte(code), byte(code >> 8), 0x00, 0x00, // value
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	n := len(payload) + 2
	return append([]byte{0xFF, 0xE1, byte(n >> 8), byte(n)}, payload...)
}

// jpegWithOrientation encodes img as JPEG and inserts an EXIF orientation
// segment right after SOI.
func jpegWithOrientation(t *testing.T, img image.Image, code uint16) []byte {
	t.Helper()
	raw := encodeJPEG(t, img)
	out := append([]byte{}, raw[:2]...)
	out = append(out, exifOrientationSegment(code)...)
	return append(out, raw[2:]...)
}

// binaryFromImage thresholds any image at mid-gray into a Gray buffer.
func binaryFromImage(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y >= 128 {
				out.SetGray(x, y, color.Gray{Y: White})
			}
		}
	}
	return out
}

// components counts 8-connected groups of Black pixels.
func components(img *image.Gray) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	seen := make([]bool, w*h)
	count := 0
	for start := range seen {
		if seen[start] || img.Pix[img.PixOffset(start%w, start/w)] != Black {
			continue
		}
		count++
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if seen[n] || img.Pix[img.PixOffset(nx, ny)] != Black {
						continue
					}
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return count
}

func samePixels(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size())
	a, b := imaging.Clone(want), imaging.Clone(got)
	require.Equal(t, a.Pix, b.Pix)
}
