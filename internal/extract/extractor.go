package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/docextract/internal/ai"
	"github.com/local/docextract/internal/config"
	"github.com/local/docextract/internal/docfile"
	"github.com/local/docextract/internal/ocr"
	"github.com/local/docextract/internal/pdfinfo"
	"github.com/local/docextract/internal/pdftext"
	"github.com/local/docextract/internal/raster"
)

// Engine selects the extraction path for a document.
type Engine string

const (
	// EngineVision rasterizes pages and sends them to a vision model.
	EngineVision Engine = "vision"
	// EngineOCR rasterizes pages and runs local Tesseract.
	EngineOCR Engine = "ocr"
	// EngineText reads the embedded PDF text layer, no model call.
	EngineText Engine = "text"
	// EngineAuto probes the text layer and picks text or vision.
	EngineAuto Engine = "auto"
)

// ErrUnsupportedFile marks inputs that are neither PDFs nor raster images.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Options tune a single extraction run.
type Options struct {
	Engine    Engine
	Pages     []int // 0-based page subset, nil for all
	DPI       int
	Model     string
	MaxTokens int
	Password  string // PDF user password, decrypted before rendering
	Raster    raster.Options
}

// Result is the outcome of one extraction run.
type Result struct {
	Text      string         `json:"text"`
	JSON      map[string]any `json:"json,omitempty"`
	Engine    Engine         `json:"engine"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	PageCount int            `json:"page_count"`
	TokensIn  int            `json:"tokens_in,omitempty"`
	TokensOut int            `json:"tokens_out,omitempty"`
	Duration  time.Duration  `json:"-"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// Extractor runs the document pipeline: detect, render, recognize, extract.
type Extractor struct {
	client   ai.Client
	detector *docfile.Detector
	text     *pdftext.Extractor
	ocrEng   *ocr.Engine
	enhancer *ocr.Enhancer // nil disables preprocessing
	ocrCfg   config.OCRConfig
}

// New builds an Extractor around a provider client.
func New(client ai.Client, ocrCfg config.OCRConfig) *Extractor {
	e := &Extractor{
		client:   client,
		detector: docfile.New(),
		text:     pdftext.New(),
		ocrEng:   ocr.NewEngine(),
		ocrCfg:   ocrCfg,
	}
	if ocrCfg.Preprocess {
		e.enhancer = ocr.NewEnhancer()
	}
	return e
}

// Extract runs free-text extraction. An empty prompt uses the default
// full-text instruction. The text and ocr engines return local text as-is
// for the default prompt and only call the model when a custom prompt asks
// for something beyond the raw text.
func (e *Extractor) Extract(ctx context.Context, path, prompt string, opts Options) (*Result, error) {
	start := time.Now()

	localPath, kind, cleanup, err := e.prepare(path, opts.Password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	engine := e.resolveEngine(localPath, kind, opts.Engine)
	res := &Result{Engine: engine}

	customPrompt := prompt != ""
	if !customPrompt {
		prompt = defaultFreePrompt
	}

	switch engine {
	case EngineText:
		text, err := e.text.ExtractPages(localPath, opts.Pages)
		if err != nil {
			return nil, err
		}
		res.Text = text
		res.PageCount = countPages(localPath, kind, opts.Pages)
		if customPrompt {
			if err := e.askAboutText(ctx, res, text, prompt, opts); err != nil {
				return nil, err
			}
		}

	case EngineOCR:
		text, pages, err := e.runOCR(ctx, localPath, kind, opts)
		if err != nil {
			return nil, err
		}
		res.Text = text
		res.PageCount = pages
		if customPrompt {
			if err := e.askAboutText(ctx, res, text, prompt, opts); err != nil {
				return nil, err
			}
		}

	case EngineVision:
		images, err := e.renderInputs(localPath, kind, opts)
		if err != nil {
			return nil, err
		}
		res.PageCount = len(images)
		// A zero-page document extracts to nothing, no model call.
		if len(images) > 0 {
			if err := e.askAboutImages(ctx, res, images, prompt, opts); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}

	res.Duration = time.Since(start)
	log.Info().
		Str("engine", string(res.Engine)).
		Int("pages", res.PageCount).
		Int("chars", len(res.Text)).
		Dur("duration", res.Duration).
		Msg("extraction done")
	return res, nil
}

// ExtractStructured runs schema-constrained extraction. The model response
// is fence-stripped, parsed, validated against the schema (violations are
// warnings, not failures) and pruned to the schema's fields.
func (e *Extractor) ExtractStructured(ctx context.Context, path string, schema *Schema, opts Options) (*Result, error) {
	start := time.Now()

	localPath, kind, cleanup, err := e.prepare(path, opts.Password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	engine := e.resolveEngine(localPath, kind, opts.Engine)
	res := &Result{Engine: engine}
	prompt := SchemaPrompt(schema)

	switch engine {
	case EngineText:
		text, err := e.text.ExtractPages(localPath, opts.Pages)
		if err != nil {
			return nil, err
		}
		res.PageCount = countPages(localPath, kind, opts.Pages)
		if err := e.askAboutText(ctx, res, text, prompt, opts); err != nil {
			return nil, err
		}

	case EngineOCR:
		text, pages, err := e.runOCR(ctx, localPath, kind, opts)
		if err != nil {
			return nil, err
		}
		res.PageCount = pages
		if err := e.askAboutText(ctx, res, text, prompt, opts); err != nil {
			return nil, err
		}

	case EngineVision:
		images, err := e.renderInputs(localPath, kind, opts)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("document has no pages to extract from")
		}
		res.PageCount = len(images)
		if err := e.askAboutImages(ctx, res, images, prompt, opts); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}

	parsed, err := ParseJSONResponse(res.Text)
	if err != nil {
		return nil, err
	}
	res.Warnings = schema.Validate(parsed)
	res.JSON = schema.PruneUnknown(parsed)
	res.Duration = time.Since(start)

	log.Info().
		Str("engine", string(res.Engine)).
		Int("pages", res.PageCount).
		Int("fields", len(res.JSON)).
		Int("warnings", len(res.Warnings)).
		Dur("duration", res.Duration).
		Msg("structured extraction done")
	return res, nil
}

// ExtractInvoice extracts with the built-in invoice schema into a typed struct.
func (e *Extractor) ExtractInvoice(ctx context.Context, path string, opts Options) (*Invoice, *Result, error) {
	res, err := e.ExtractStructured(ctx, path, InvoiceSchema(), opts)
	if err != nil {
		return nil, nil, err
	}
	var inv Invoice
	if err := decodeInto(res.JSON, &inv); err != nil {
		return nil, nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &inv, res, nil
}

// ExtractContract extracts with the built-in contract schema into a typed struct.
func (e *Extractor) ExtractContract(ctx context.Context, path string, opts Options) (*Contract, *Result, error) {
	res, err := e.ExtractStructured(ctx, path, ContractSchema(), opts)
	if err != nil {
		return nil, nil, err
	}
	var c Contract
	if err := decodeInto(res.JSON, &c); err != nil {
		return nil, nil, fmt.Errorf("decode contract: %w", err)
	}
	return &c, res, nil
}

// Classify determines the document type.
func (e *Extractor) Classify(ctx context.Context, path string, opts Options) (*Classification, *Result, error) {
	start := time.Now()

	localPath, kind, cleanup, err := e.prepare(path, opts.Password)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	// Classification always goes through the model, on images or on text.
	engine := e.resolveEngine(localPath, kind, opts.Engine)
	res := &Result{Engine: engine}

	switch engine {
	case EngineText:
		text, err := e.text.ExtractPages(localPath, opts.Pages)
		if err != nil {
			return nil, nil, err
		}
		res.PageCount = countPages(localPath, kind, opts.Pages)
		if err := e.askAboutText(ctx, res, text, classificationPrompt, opts); err != nil {
			return nil, nil, err
		}
	case EngineOCR:
		text, pages, err := e.runOCR(ctx, localPath, kind, opts)
		if err != nil {
			return nil, nil, err
		}
		res.PageCount = pages
		if err := e.askAboutText(ctx, res, text, classificationPrompt, opts); err != nil {
			return nil, nil, err
		}
	default:
		images, err := e.renderInputs(localPath, kind, opts)
		if err != nil {
			return nil, nil, err
		}
		res.PageCount = len(images)
		res.Engine = EngineVision
		if err := e.askAboutImages(ctx, res, images, classificationPrompt, opts); err != nil {
			return nil, nil, err
		}
	}

	parsed, err := ParseJSONResponse(res.Text)
	if err != nil {
		return nil, nil, err
	}
	schema := ClassificationSchema()
	res.Warnings = schema.Validate(parsed)
	res.JSON = schema.PruneUnknown(parsed)
	res.Duration = time.Since(start)

	var cls Classification
	if err := decodeInto(res.JSON, &cls); err != nil {
		return nil, nil, fmt.Errorf("decode classification: %w", err)
	}
	return &cls, res, nil
}

// prepare detects the input type and, for password-protected PDFs, decrypts
// to a temp copy. cleanup removes the temp copy.
func (e *Extractor) prepare(path, password string) (string, docfile.Kind, func(), error) {
	noop := func() {}

	info, err := e.detector.Detect(path)
	if err != nil {
		return "", "", noop, err
	}
	if !info.IsSupported() {
		return "", "", noop, fmt.Errorf("%w: %s", ErrUnsupportedFile, info.MIMEType)
	}

	if info.Kind == docfile.KindPDF && password != "" {
		tmp, err := os.CreateTemp("", "docextract-*.pdf")
		if err != nil {
			return "", "", noop, fmt.Errorf("create temp pdf: %w", err)
		}
		tmp.Close()

		conf := model.NewDefaultConfiguration()
		conf.UserPW = password
		if err := api.DecryptFile(path, tmp.Name(), conf); err != nil {
			os.Remove(tmp.Name())
			return "", "", noop, fmt.Errorf("decrypt pdf: %w", err)
		}
		name := tmp.Name()
		return name, info.Kind, func() { os.Remove(name) }, nil
	}

	return path, info.Kind, noop, nil
}

// resolveEngine applies the auto heuristic and forces vision/ocr semantics
// for raster image inputs, which have no text layer to read.
func (e *Extractor) resolveEngine(path string, kind docfile.Kind, requested Engine) Engine {
	if requested == "" {
		requested = EngineVision
	}
	if kind == docfile.KindImage {
		if requested == EngineOCR {
			return EngineOCR
		}
		return EngineVision
	}
	if requested != EngineAuto {
		return requested
	}

	ok, report, err := pdfinfo.HasExtractableText(path, 0, nil)
	if err != nil {
		log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("text probe failed, falling back to vision")
		return EngineVision
	}
	log.Debug().Bool("extractable", ok).Int("sample_chars", report.SampleChars).Msg("text probe")
	if ok {
		return EngineText
	}
	return EngineVision
}

func (e *Extractor) renderInputs(path string, kind docfile.Kind, opts Options) ([]raster.PageImage, error) {
	if kind == docfile.KindImage {
		info, err := e.detector.Detect(path)
		if err != nil {
			return nil, err
		}
		return raster.LoadImageFile(path, info.MIMEType)
	}

	ropts := opts.Raster
	if opts.DPI > 0 {
		ropts.DPI = opts.DPI
	}
	return raster.RenderPages(path, opts.Pages, ropts)
}

func (e *Extractor) runOCR(ctx context.Context, path string, kind docfile.Kind, opts Options) (string, int, error) {
	images, err := e.renderInputs(path, kind, opts)
	if err != nil {
		return "", 0, err
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = e.ocrCfg.DPIHint
	}
	inputs := make([]ocr.Input, len(images))
	pageIndex := make([]int, len(images))
	for i, img := range images {
		data := img.Data
		if e.enhancer != nil {
			enhanced, err := e.enhancer.EnhanceBytes(data)
			if err != nil {
				log.Warn().Err(err).Int("page", img.Index).Msg("preprocessing failed, using raw image")
			} else {
				data = enhanced
			}
		}
		inputs[i] = ocr.Input{
			Data:      data,
			Languages: e.ocrCfg.Languages,
			PSM:       e.ocrCfg.PSM,
			DPI:       dpi,
		}
		pageIndex[i] = img.Index
	}

	text, _, err := e.ocrEng.RecognizeAll(ctx, inputs, pageIndex)
	if err != nil {
		return "", 0, err
	}
	return text, len(images), nil
}

func (e *Extractor) askAboutImages(ctx context.Context, res *Result, images []raster.PageImage, prompt string, opts Options) error {
	req := ai.Request{
		Model:        opts.Model,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		MaxTokens:    opts.MaxTokens,
		Images:       make([]ai.ImagePart, len(images)),
	}
	for i, img := range images {
		req.Images[i] = ai.ImagePart{Base64: img.Base64(), MIME: img.MIME}
	}

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return err
	}
	res.Text = resp.Text
	res.Provider = e.client.Name()
	res.Model = opts.Model
	res.TokensIn = resp.TokensIn
	res.TokensOut = resp.TokensOut
	return nil
}

func (e *Extractor) askAboutText(ctx context.Context, res *Result, docText, prompt string, opts Options) error {
	resp, err := e.client.Do(ctx, ai.Request{
		Model:        opts.Model,
		SystemPrompt: systemPrompt,
		Prompt:       TextDocumentPrompt(docText, prompt),
		MaxTokens:    opts.MaxTokens,
	})
	if err != nil {
		return err
	}
	res.Text = resp.Text
	res.Provider = e.client.Name()
	res.Model = opts.Model
	res.TokensIn = resp.TokensIn
	res.TokensOut = resp.TokensOut
	return nil
}

func countPages(path string, kind docfile.Kind, pages []int) int {
	if kind == docfile.KindImage {
		return 1
	}
	total, err := raster.PageCount(path)
	if err != nil {
		return 0
	}
	if pages == nil {
		return total
	}
	n := 0
	seen := map[int]bool{}
	for _, p := range pages {
		if p >= 0 && p < total && !seen[p] {
			seen[p] = true
			n++
		}
	}
	return n
}
