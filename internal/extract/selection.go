package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePageSelection parses the CLI page selector into 0-based page indices.
// The selector is a comma-separated list where each element is either a single
// page or an inclusive "a-b" range, so "0,2-4" yields [0 2 3 4]. An empty
// selector means all pages (nil). Indices beyond the end of the document are
// skipped later by the renderer, not rejected here.
func ParsePageSelection(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(s, ",") {
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, err := parsePageIndex(bounds[0])
			if err != nil {
				return nil, err
			}
			hi, err := parsePageIndex(bounds[1])
			if err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid page range %q: end before start", strings.TrimSpace(part))
			}
			for p := lo; p <= hi; p++ {
				pages = append(pages, p)
			}
			continue
		}
		p, err := parsePageIndex(part)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func parsePageIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page index %q", s)
	}
	if p < 0 {
		return 0, fmt.Errorf("invalid page index %d: must be >= 0", p)
	}
	return p, nil
}
