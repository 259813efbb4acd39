package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	"github.com/local/docextract/internal/metrics"
)

// Input is one encoded page image to recognize.
type Input struct {
	Data      []byte
	Languages []string // tesseract language codes, e.g. "fra", "eng"
	PSM       int      // page segmentation mode, 0 keeps the tesseract default
	DPI       int      // hint for images without density metadata
}

// Result is the recognition output for one image.
type Result struct {
	Text       string
	Confidence float64 // mean word confidence, 0..1
	WordCount  int
	Duration   time.Duration
}

// Engine runs local OCR through gosseract.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// IsAvailable reports whether the tesseract binary is installed.
func IsAvailable() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// Recognize runs OCR on a single image.
func (e *Engine) Recognize(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	start := time.Now()
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Data); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.PSM > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("tessedit_pageseg_mode"), fmt.Sprint(in.PSM)); err != nil {
			return Result{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	res := Result{
		Text:     strings.TrimSpace(text),
		Duration: time.Since(start),
	}
	res.WordCount = len(strings.Fields(res.Text))
	res.Confidence = meanWordConfidence(c)

	metrics.ObserveOCR(res.Duration)
	log.Debug().
		Int("words", res.WordCount).
		Float64("confidence", res.Confidence).
		Dur("duration", res.Duration).
		Msg("ocr page done")

	return res, nil
}

// RecognizeAll runs OCR over a sequence of page images with one client per
// page, joining the texts with page separators. pageIndex gives the 0-based
// document index of each image for the separator labels.
func (e *Engine) RecognizeAll(ctx context.Context, inputs []Input, pageIndex []int) (string, []Result, error) {
	results := make([]Result, 0, len(inputs))
	var joined strings.Builder

	for n, in := range inputs {
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return "", nil, fmt.Errorf("ocr page %d: %w", n, err)
		}
		if n > 0 {
			joined.WriteString("\n\n")
		}
		label := n
		if n < len(pageIndex) {
			label = pageIndex[n]
		}
		joined.WriteString(fmt.Sprintf("=== Page %d ===\n", label+1))
		joined.WriteString(res.Text)
		results = append(results, res)
	}

	return joined.String(), results, nil
}

// meanWordConfidence averages per-word confidences, normalized to 0..1.
func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
