package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestEnhanceProducesBlackAndWhite(t *testing.T) {
	// Horizontal gradient, no pure black or white anywhere.
	img := image.NewGray(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(60 + 2*x)})
		}
	}

	out := NewEnhancer().Enhance(img)
	for i, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d = %d, want pure black or white after binarization", i, v)
		}
	}
}

func TestStretchContrastExpandsRange(t *testing.T) {
	// Low-contrast scan: everything between 100 and 140.
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(100 + x)})
		}
	}

	out := stretchContrast(img)
	min, max := uint8(255), uint8(0)
	for _, v := range out.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min != 0 || max != 255 {
		t.Fatalf("range after stretch = [%d, %d], want [0, 255]", min, max)
	}
}

func TestMedianDenoiseRemovesSpeckle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(8, 8, color.Gray{Y: 0}) // lone pepper pixel

	out := medianDenoise(img)
	if got := out.GrayAt(8, 8).Y; got != 255 {
		t.Fatalf("speckle survived denoising: pixel = %d, want 255", got)
	}
}

func TestEnhanceKeepsText(t *testing.T) {
	data := renderTextPNG(t, "TOTAL 99")

	enhanced, err := NewEnhancer().EnhanceBytes(data)
	if err != nil {
		t.Fatalf("EnhanceBytes() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(enhanced))
	if err != nil {
		t.Fatalf("enhanced output is not valid PNG: %v", err)
	}

	dark := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g, _, _, _ := img.At(x, y).RGBA(); g == 0 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatal("glyph pixels lost during enhancement")
	}
}

func TestEnhanceBytesRejectsGarbage(t *testing.T) {
	if _, err := NewEnhancer().EnhanceBytes([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnhanceStepsCanBeDisabled(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 120
	}

	out := (&Enhancer{}).Enhance(img)
	for i, v := range out.Pix {
		if v != 120 {
			t.Fatalf("pixel %d = %d, want untouched 120 with all steps off", i, v)
		}
	}
}
