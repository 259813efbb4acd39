package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotJSON marks model output that could not be parsed as a JSON object
// after fence stripping. Callers distinguish it from transport errors.
var ErrNotJSON = errors.New("model response is not valid JSON")

// StripCodeFence removes a single leading ```json or ``` fence and a single
// trailing ``` fence from a model response. Stripping is applied exactly
// once, so fenced and unfenced responses with the same payload clean to the
// same string.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = s[7:]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}

	return strings.TrimSpace(s)
}

// ParseJSONResponse strips fences and decodes the response into a JSON
// object. A response that is valid JSON but not an object is rejected too.
func ParseJSONResponse(s string) (map[string]any, error) {
	cleaned := StripCodeFence(s)

	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return m, nil
}
