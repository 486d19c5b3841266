package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Output levels of a normalized image.
const (
	Black uint8 = 0
	White uint8 = 255
)

// gaussian3x3 is the separable [1 2 1] kernel, normalized by Convolve3x3.
var gaussian3x3 = [9]float64{
	1, 2, 1,
	2, 4, 2,
	1, 2, 1,
}

// Normalize turns a corrected image into a two-level buffer for OCR.
// The stages run in a fixed order: luminance conversion, 3x3 Gaussian
// smoothing, Otsu binarization and non-local-means denoising. The result
// has the input's width and height, origin (0,0), and holds only Black
// and White pixels.
func Normalize(img image.Image, cfg NormalizeConfig) (*image.Gray, error) {
	if err := checkDimensions(img); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gray := imaging.Grayscale(flatten(img))
	smoothed := imaging.Convolve3x3(gray, gaussian3x3, &imaging.ConvolveOptions{Normalize: true})
	luma := grayFromNRGBA(smoothed)

	Binarize(luma, OtsuThreshold(Histogram(luma)))

	return Denoise(luma, cfg.Denoise), nil
}

// flatten composites images with transparency onto a white page so
// transparent pixels read as background whatever their stored color.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	page := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(page, img, image.Point{}, 1)
}

// grayFromNRGBA copies the red channel of an already gray NRGBA image.
func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[di+x] = src.Pix[si+4*x]
		}
	}
	return dst
}

// Histogram counts pixel intensities.
func Histogram(img *image.Gray) [256]int {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold returns the intensity that maximizes the between-class
// variance of hist. On ties the lowest intensity wins. A single-valued
// histogram yields 0.
func OtsuThreshold(hist [256]int) uint8 {
	var total, sumAll float64
	for i, c := range hist {
		total += float64(c)
		sumAll += float64(i) * float64(c)
	}

	var (
		weightB, sumB float64
		best          = -1.0
		threshold     int
	)
	for i := 0; i < 256; i++ {
		weightB += float64(hist[i])
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])

		meanB := sumB / weightB
		meanF := (sumAll - sumB) / weightF
		between := weightB * weightF * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = i
		}
	}
	return uint8(threshold)
}

// Binarize maps pixels above t to White and the rest to Black, in place.
func Binarize(img *image.Gray, t uint8) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i, v := range row {
			if v > t {
				row[i] = White
			} else {
				row[i] = Black
			}
		}
	}
}

// Levels returns the distinct intensities present in img, ascending.
func Levels(img *image.Gray) []uint8 {
	hist := Histogram(img)
	var levels []uint8
	for i, c := range hist {
		if c > 0 {
			levels = append(levels, uint8(i))
		}
	}
	return levels
}
