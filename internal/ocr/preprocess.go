package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"sort"

	"github.com/rs/zerolog/log"
)

// Enhancer cleans up rendered page images before recognition. The pipeline
// is grayscale, median denoise, contrast stretch, Otsu binarization; each
// step can be switched off. Scans come in noisy and low-contrast, and
// tesseract does markedly better on clean black-on-white input.
type Enhancer struct {
	Denoise         bool
	EnhanceContrast bool
	Binarize        bool
}

// NewEnhancer returns an Enhancer with all steps enabled.
func NewEnhancer() *Enhancer {
	return &Enhancer{Denoise: true, EnhanceContrast: true, Binarize: true}
}

// Enhance runs the enabled steps and returns the cleaned grayscale image.
func (e *Enhancer) Enhance(img image.Image) *image.Gray {
	gray := toGray(img)
	if e.Denoise {
		gray = medianDenoise(gray)
	}
	if e.EnhanceContrast {
		gray = stretchContrast(gray)
	}
	if e.Binarize {
		gray = otsuBinarize(gray)
	}
	return gray
}

// EnhanceBytes decodes an encoded page image, enhances it and re-encodes it
// as PNG for the recognizer.
func (e *Enhancer) EnhanceBytes(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	gray := e.Enhance(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode enhanced image: %w", err)
	}
	log.Debug().Int("in_bytes", len(data)).Int("out_bytes", buf.Len()).Msg("page image enhanced")
	return buf.Bytes(), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(g.Bounds())
		copy(out.Pix, g.Pix)
		return out
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// medianDenoise applies a 3x3 median filter, which removes salt-and-pepper
// speckle without blurring glyph edges the way a box filter would.
func medianDenoise(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	var window [9]byte
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					window[n] = g.GrayAt(px, py).Y
					n++
				}
			}
			sort.Slice(window[:n], func(i, j int) bool { return window[i] < window[j] })
			out.SetGray(x, y, color.Gray{Y: window[n/2]})
		}
	}
	return out
}

// stretchContrast maps the 2nd..98th percentile of the histogram onto the
// full 0..255 range. The percentile cut keeps a few stray dark or bright
// pixels from pinning the scale.
func stretchContrast(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return g
	}
	cut := total / 50

	lo, acc := 0, 0
	for i := 0; i < 256; i++ {
		acc += hist[i]
		if acc > cut {
			lo = i
			break
		}
	}
	hi, acc := 255, 0
	for i := 255; i >= 0; i-- {
		acc += hist[i]
		if acc > cut {
			hi = i
			break
		}
	}
	if hi <= lo {
		return g
	}

	out := image.NewGray(g.Bounds())
	scale := 255.0 / float64(hi-lo)
	for i, v := range g.Pix {
		switch {
		case int(v) <= lo:
			out.Pix[i] = 0
		case int(v) >= hi:
			out.Pix[i] = 255
		default:
			out.Pix[i] = uint8(float64(int(v)-lo)*scale + 0.5)
		}
	}
	return out
}

// otsuBinarize thresholds at the level that maximizes between-class variance,
// producing pure black-on-white output.
func otsuBinarize(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return g
	}

	var sum float64
	for i := 0; i < 256; i++ {
		sum += float64(i) * float64(hist[i])
	}

	var sumB, wB float64
	var best float64
	threshold := 127
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}

	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if int(v) <= threshold {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}
