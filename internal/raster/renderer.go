package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"sort"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/docextract/internal/metrics"
)

// ColorMode defines the color mode for rendering.
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Options controls page rendering. DPI is the zoom factor relative to the
// PDF's base 72-DPI coordinate space.
type Options struct {
	DPI       int
	Format    string // "png" (default) or "jpeg"
	Quality   int    // jpeg only
	ColorMode string // "rgb" (default) or "gray"
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 150
	}
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 85
	}
	if o.ColorMode == "" {
		o.ColorMode = string(ColorRGB)
	}
	return o
}

// PageImage is one rendered page: encoded bitmap bytes plus a 0-based page index.
type PageImage struct {
	Index  int
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Base64 returns the encoded image as a base64 string for JSON transports.
func (p PageImage) Base64() string { return base64.StdEncoding.EncodeToString(p.Data) }

// PageCount returns the number of pages of a PDF using pdfcpu. An unreadable
// or corrupt file surfaces as an error.
func PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// RenderDocument renders every page of a PDF at the configured DPI, in page
// order. A zero-page document yields an empty slice, not an error.
func RenderDocument(pdfPath string, opts Options) ([]PageImage, error) {
	return RenderPages(pdfPath, nil, opts)
}

// RenderPages renders the given 0-based page subset of a PDF in ascending
// page order. A nil subset means all pages. Indices outside the document are
// skipped silently, matching subset semantics of the CLI page selector.
func RenderPages(pdfPath string, pages []int, opts Options) ([]PageImage, error) {
	opts = opts.withDefaults()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	idx := normalizePages(pages, total)

	out := make([]PageImage, 0, len(idx))
	for _, i := range idx {
		img, err := doc.ImageDPI(i, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}
		encoded, mime, w, h, err := encode(img, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, PageImage{Index: i, Data: encoded, MIME: mime, Width: w, Height: h})

		log.Debug().
			Int("page", i).
			Int("width", w).
			Int("height", h).
			Int("dpi", opts.DPI).
			Str("format", opts.Format).
			Int("bytes", len(encoded)).
			Msg("rendered page")
	}

	metrics.AddPagesRendered(len(out))
	return out, nil
}

// LoadImageFile wraps an already-encoded raster image as a single-page
// sequence, bypassing the renderer.
func LoadImageFile(path, mimeType string) ([]PageImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return []PageImage{{Index: 0, Data: data, MIME: mimeType, Width: cfg.Width, Height: cfg.Height}}, nil
}

func encode(img image.Image, opts Options) ([]byte, string, int, int, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var finalImg image.Image = img
	if opts.ColorMode == string(ColorGray) {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		finalImg = grayImg
	}

	var buf bytes.Buffer
	switch opts.Format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: opts.Quality}); err != nil {
			return nil, "", 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		return buf.Bytes(), "image/jpeg", width, height, nil
	case "png":
		if err := png.Encode(&buf, finalImg); err != nil {
			return nil, "", 0, 0, fmt.Errorf("failed to encode PNG: %w", err)
		}
		return buf.Bytes(), "image/png", width, height, nil
	default:
		return nil, "", 0, 0, fmt.Errorf("unsupported raster format: %s", opts.Format)
	}
}

// normalizePages returns the ascending, deduplicated, in-range subset to
// render. nil means all pages.
func normalizePages(pages []int, total int) []int {
	if pages == nil {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 0 || p >= total {
			continue
		}
		seen[p] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
