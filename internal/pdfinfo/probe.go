package pdfinfo

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// DefaultThreshold is the minimum number of non-whitespace runes across the
// sampled pages for a PDF to count as text-extractable.
const DefaultThreshold = 300

// PageSample is the probe result for one sampled page.
type PageSample struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Report describes a text-extractability probe. The pipeline uses it to pick
// between the embedded-text path and rasterize+vision/OCR.
type Report struct {
	FilePath    string       `json:"file_path"`
	TotalPages  int          `json:"total_pages"`
	Sampled     []int        `json:"sampled_pages"`
	SampleChars int          `json:"sample_chars"`
	Threshold   int          `json:"threshold"`
	Samples     []PageSample `json:"samples"`
	Extractable bool         `json:"extractable"`
	DurationMs  int64        `json:"duration_ms"`
}

// Doc abstracts an open PDF so the probe can be tested without real files.
type Doc interface {
	NumPage() int
	PageText(i int) (string, error)
	Close() error
}

// Opener opens a path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is set by doc_fitz.go.
var defaultOpener Opener

func setDefaultOpener(o Opener) { defaultOpener = o }

var whitespaceRe = regexp.MustCompile(`\s+`)

// HasExtractableText samples a few pages of a PDF and reports whether their
// embedded text crosses the rune threshold. threshold <= 0 means
// DefaultThreshold. pages nil means the standard sampling heuristic
// (first, middle, last plus random fill up to five).
func HasExtractableText(pdfPath string, threshold int, pages []int) (bool, *Report, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if defaultOpener == nil {
		return false, nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	doc, err := defaultOpener.Open(pdfPath)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	report := &Report{
		FilePath:   pdfPath,
		TotalPages: total,
		Sampled:    []int{},
		Threshold:  threshold,
	}
	if total <= 0 {
		report.DurationMs = time.Since(start).Milliseconds()
		return false, report, nil
	}

	if pages != nil {
		report.Sampled = clampPages(pages, total)
	} else {
		report.Sampled = sampleIndices(total)
	}

	for _, idx := range report.Sampled {
		sample := PageSample{PageIndex: idx}
		text, terr := doc.PageText(idx)
		if terr != nil {
			sample.Err = terr.Error()
			report.Samples = append(report.Samples, sample)
			continue
		}
		// Unicode-aware count after stripping whitespace
		sample.CharCount = len([]rune(whitespaceRe.ReplaceAllString(text, "")))
		report.SampleChars += sample.CharCount
		report.Samples = append(report.Samples, sample)

		if report.SampleChars >= threshold {
			break
		}
	}

	report.Extractable = report.SampleChars >= threshold
	report.DurationMs = time.Since(start).Milliseconds()
	return report.Extractable, report, nil
}

// sampleIndices picks up to 5 pages: all of them when total <= 5, otherwise
// first, middle, last plus random distinct fill.
func sampleIndices(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	picked := map[int]struct{}{0: {}, total / 2: {}, total - 1: {}}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(picked) < 5 {
		cand := rnd.Intn(total)
		if _, ok := picked[cand]; ok {
			continue
		}
		picked[cand] = struct{}{}
	}

	out := make([]int, 0, 5)
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func clampPages(pages []int, total int) []int {
	m := make(map[int]struct{})
	for _, p := range pages {
		if p < 0 || p >= total {
			continue
		}
		m[p] = struct{}{}
	}
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
