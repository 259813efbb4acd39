package pdftext

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Extractor pulls the embedded text layer out of a PDF using go-fitz.
// It backs the "text" engine: no OCR, no remote call.
type Extractor struct{}

// New creates a new embedded-text extractor.
func New() *Extractor {
	return &Extractor{}
}

// PageCount returns the number of pages in a PDF.
func (e *Extractor) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// ExtractPage extracts and cleans the text of one 0-based page.
func (e *Extractor) ExtractPage(pdfPath string, page int) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, doc.NumPage())
	}

	raw, err := doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	return cleanText(raw, page+1), nil
}

// ExtractPages extracts the given 0-based pages (nil for all), cleans each
// one and joins them with page separators. Page order is preserved.
func (e *Extractor) ExtractPages(pdfPath string, pages []int) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if pages == nil {
		pages = make([]int, total)
		for i := range pages {
			pages[i] = i
		}
	}

	var result strings.Builder
	written := 0
	for _, i := range pages {
		if i < 0 || i >= total {
			continue
		}
		pageText, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("failed to extract text from page")
			continue
		}
		if written > 0 {
			result.WriteString("\n\n")
		}
		result.WriteString(fmt.Sprintf("=== Page %d ===\n", i+1))
		result.WriteString(cleanText(pageText, i+1))
		written++
	}

	text := result.String()
	log.Debug().Int("chars", len(text)).Int("pages", written).Msg("extracted embedded text")
	return text, nil
}

// cleanText removes page numbers, headers/footers and noise lines, then
// rejoins sentences broken across lines.
func cleanText(text string, pageNum int) string {
	lines := strings.Split(text, "\n")
	var kept []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isPageNumber(trimmed, pageNum) || isHeaderFooter(trimmed) || isNoise(trimmed) {
			continue
		}
		kept = append(kept, line)
	}

	result := fixBrokenLines(strings.Join(kept, "\n"))
	return strings.TrimSpace(result)
}

func isPageNumber(line string, pageNum int) bool {
	if line == fmt.Sprintf("%d", pageNum) {
		return true
	}
	patterns := []string{
		fmt.Sprintf("Page %d", pageNum),
		fmt.Sprintf("- %d -", pageNum),
		fmt.Sprintf("[%d]", pageNum),
	}
	for _, pattern := range patterns {
		if strings.EqualFold(line, pattern) {
			return true
		}
	}
	return false
}

func isHeaderFooter(line string) bool {
	if len(line) < 3 {
		return true
	}
	if len(line) < 50 && strings.ToUpper(line) == line {
		if len(strings.Fields(line)) <= 2 {
			return true
		}
	}
	footerPatterns := []string{
		"CONFIDENTIAL",
		"COPYRIGHT",
		"ALL RIGHTS RESERVED",
		"PROPRIETARY",
	}
	upperLine := strings.ToUpper(line)
	for _, pattern := range footerPatterns {
		if strings.Contains(upperLine, pattern) && len(line) < 100 {
			return true
		}
	}
	return false
}

func isNoise(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func fixBrokenLines(text string) string {
	lines := strings.Split(text, "\n")
	var fixed []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if i < len(lines)-1 {
			trimmed := strings.TrimSpace(line)
			nextTrimmed := strings.TrimSpace(lines[i+1])

			if trimmed != "" && nextTrimmed != "" {
				lastChar := trimmed[len(trimmed)-1]
				isSentenceEnd := lastChar == '.' || lastChar == '!' || lastChar == '?' || lastChar == ':' || lastChar == ';'

				if !isSentenceEnd {
					firstChar := nextTrimmed[0]
					startsWithLower := firstChar >= 'a' && firstChar <= 'z'

					if startsWithLower && !strings.HasSuffix(trimmed, "-") {
						fixed = append(fixed, trimmed+" "+nextTrimmed)
						i++ // consumed the next line
						continue
					}
				}
			}
		}

		fixed = append(fixed, line)
	}

	return strings.Join(fixed, "\n")
}
