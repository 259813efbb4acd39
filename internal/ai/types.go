package ai

import (
    "context"
    "errors"
    "time"
)

// ImagePart is one encoded page image attached to a vision request.
type ImagePart struct {
    Base64 string // base64-encoded image bytes
    MIME   string // e.g. image/png
}

// Request is a single-shot multimodal inference request. Images are sent
// before the prompt text so the model reads the pages first and the
// instruction last.
type Request struct {
    Model        string
    SystemPrompt string
    Prompt       string
    Images       []ImagePart
    MaxTokens    int
    Timeout      time.Duration
}

type Response struct {
    Text      string
    TokensIn  int
    TokensOut int
}

// Client interface for providers like Gemini, OpenAI.
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var (
    ErrRateLimited    = errors.New("rate_limited")
    ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }
