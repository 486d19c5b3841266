package ocr

import (
	"image"
	"math"
)

// weightThreshold drops patch weights too small to matter.
const weightThreshold = 0.001

// Denoise runs a non-local-means pass over img and snaps the result back to
// Black and White. Each pixel becomes the weighted mean of the centers of
// the TemplateWindow patches found in its SearchWindow neighbourhood, with
// weight exp(-d/h^2) where d is the mean squared patch difference. Borders
// are mirrored without repeating the edge pixel.
//
// Two-level input takes a table-driven path: every patch difference is a
// multiple of 255^2, so weights depend only on the count of mismatched
// template pixels. When even one mismatch drops below the weight threshold
// only identical patches contribute and the input is returned unchanged.
//
// img is not modified. The returned image has origin (0,0).
func Denoise(img *image.Gray, cfg DenoiseConfig) *image.Gray {
	if !isTwoLevel(img) {
		return denoiseGray(img, cfg)
	}

	table := mismatchWeights(cfg)
	if len(table) < 2 {
		return cloneGray(img)
	}
	return denoiseTwoLevel(img, cfg, table)
}

// mismatchWeights returns the patch weight for k mismatched template
// pixels, k = 0..TemplateWindow^2, truncated after the last weight at or
// above weightThreshold.
func mismatchWeights(cfg DenoiseConfig) []float64 {
	area := cfg.TemplateWindow * cfg.TemplateWindow
	hh := cfg.Strength * cfg.Strength
	table := make([]float64, 0, area+1)
	for k := 0; k <= area; k++ {
		ssd := int64(k) * int64(White) * int64(White)
		weight := math.Exp(-(float64(ssd) / float64(area)) / hh)
		if weight < weightThreshold {
			break
		}
		table = append(table, weight)
	}
	return table
}

func denoiseTwoLevel(img *image.Gray, cfg DenoiseConfig, table []float64) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tr := cfg.TemplateWindow / 2
	sr := cfg.SearchWindow / 2
	pad := tr + sr

	padded, pw := padReflect101(img, pad)

	rw, rh := w+2*tr, h+2*tr
	integral := make([]int32, (rw+1)*(rh+1))
	sums := make([]float64, w*h)
	weights := make([]float64, w*h)
	maxK := int32(len(table) - 1)

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			// integral counts mismatched pixels over the region rectangle.
			for y := 0; y < rh; y++ {
				py := y + sr
				var rowSum int32
				base := py * pw
				nbase := (py + dy) * pw
				for x := 0; x < rw; x++ {
					px := x + sr
					if padded[base+px] != padded[nbase+px+dx] {
						rowSum++
					}
					integral[(y+1)*(rw+1)+x+1] = integral[y*(rw+1)+x+1] + rowSum
				}
			}

			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					x0, y0 := x, y
					x1, y1 := x+2*tr+1, y+2*tr+1
					k := integral[y1*(rw+1)+x1] - integral[y0*(rw+1)+x1] -
						integral[y1*(rw+1)+x0] + integral[y0*(rw+1)+x0]
					if k > maxK {
						continue
					}
					weight := table[k]
					center := padded[(y+pad+dy)*pw+x+pad+dx]
					i := y*w + x
					sums[i] += weight * float64(center)
					weights[i] += weight
				}
			}
		}
	}
	return snap(sums, weights, w, h)
}

// denoiseGray is the direct computation for arbitrary gray input.
func denoiseGray(img *image.Gray, cfg DenoiseConfig) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tr := cfg.TemplateWindow / 2
	sr := cfg.SearchWindow / 2
	pad := tr + sr

	padded, pw := padReflect101(img, pad)

	// Region over which squared differences are needed: every template
	// pixel of every output pixel.
	rw, rh := w+2*tr, h+2*tr
	integral := make([]int64, (rw+1)*(rh+1))
	sums := make([]float64, w*h)
	weights := make([]float64, w*h)

	area := float64(cfg.TemplateWindow * cfg.TemplateWindow)
	hh := cfg.Strength * cfg.Strength

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			// integral[(y+1)*(rw+1)+(x+1)] = sum of squared differences over
			// the region rectangle [0,x]x[0,y].
			for y := 0; y < rh; y++ {
				py := y + sr
				var rowSum int64
				base := py * pw
				nbase := (py + dy) * pw
				for x := 0; x < rw; x++ {
					px := x + sr
					d := int64(padded[base+px]) - int64(padded[nbase+px+dx])
					rowSum += d * d
					integral[(y+1)*(rw+1)+x+1] = integral[y*(rw+1)+x+1] + rowSum
				}
			}

			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					// Template of output pixel (x,y) spans region [x, x+2tr].
					x0, y0 := x, y
					x1, y1 := x+2*tr+1, y+2*tr+1
					ssd := integral[y1*(rw+1)+x1] - integral[y0*(rw+1)+x1] -
						integral[y1*(rw+1)+x0] + integral[y0*(rw+1)+x0]

					weight := math.Exp(-(float64(ssd) / area) / hh)
					if weight < weightThreshold {
						continue
					}
					center := padded[(y+pad+dy)*pw+x+pad+dx]
					i := y*w + x
					sums[i] += weight * float64(center)
					weights[i] += weight
				}
			}
		}
	}
	return snap(sums, weights, w, h)
}

// snap turns the accumulated weighted means into a two-level image.
func snap(sums, weights []float64, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range out.Pix {
		// The zero offset always contributes weight 1.
		v := sums[i] / weights[i]
		if v >= 127.5 {
			out.Pix[i] = White
		} else {
			out.Pix[i] = Black
		}
	}
	return out
}

// isTwoLevel reports whether img holds only Black and White pixels.
func isTwoLevel(img *image.Gray) bool {
	hist := Histogram(img)
	b := img.Bounds()
	return hist[Black]+hist[White] == b.Dx()*b.Dy()
}

// cloneGray copies img into a new buffer with origin (0,0).
func cloneGray(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[out.PixOffset(0, y):out.PixOffset(b.Dx(), y)],
			img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):img.PixOffset(b.Max.X, b.Min.Y+y)])
	}
	return out
}

// padReflect101 copies img into a buffer with pad pixels of mirrored border
// on every side and returns it with its stride.
func padReflect101(img *image.Gray, pad int) ([]uint8, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pw, ph := w+2*pad, h+2*pad
	buf := make([]uint8, pw*ph)
	for y := 0; y < ph; y++ {
		sy := reflect101(y-pad, h)
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+sy):]
		for x := 0; x < pw; x++ {
			buf[y*pw+x] = src[reflect101(x-pad, w)]
		}
	}
	return buf, pw
}

// reflect101 maps i into [0, n) mirroring around the edge pixels
// (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
