package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

// renderTextPNG draws a short string on a white background and returns the
// encoded PNG.
func renderTextPNG(t *testing.T, text string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	data := renderTextPNG(t, "INVOICE 42")
	res, err := NewEngine().Recognize(context.Background(), Input{
		Data:      data,
		Languages: []string{"eng"},
		DPI:       300,
	})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	got := strings.ToLower(res.Text)
	if !strings.Contains(got, "invoice") {
		t.Fatalf("unexpected OCR output: %q", res.Text)
	}
	if res.WordCount == 0 {
		t.Fatal("expected a non-zero word count")
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Fatalf("confidence %f out of [0,1]", res.Confidence)
	}
}

func TestEngineRecognizeAllJoinsWithSeparators(t *testing.T) {
	ensureTesseractAvailable(t)

	inputs := []Input{
		{Data: renderTextPNG(t, "first page"), Languages: []string{"eng"}, DPI: 300},
		{Data: renderTextPNG(t, "second page"), Languages: []string{"eng"}, DPI: 300},
	}
	joined, results, err := NewEngine().RecognizeAll(context.Background(), inputs, []int{0, 3})
	if err != nil {
		t.Fatalf("RecognizeAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(joined, "=== Page 1 ===") || !strings.Contains(joined, "=== Page 4 ===") {
		t.Fatalf("missing page separators in joined text:\n%s", joined)
	}
}

func TestEngineRecognizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Recognize(ctx, Input{Data: []byte("ignored")})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
