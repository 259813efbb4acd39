package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/local/docextract/internal/metrics"
)

// GeminiClient calls the Gemini generateContent API. With an API key it uses
// the Google AI endpoint; with a project plus access token it uses Vertex AI.
type GeminiClient struct {
    http        *http.Client
    apiKey      string
    accessToken string
    project     string
    location    string

    // BaseURL overrides the endpoint host, used in tests.
    BaseURL string
}

type GeminiOptions struct {
    APIKey      string
    AccessToken string
    Project     string
    Location    string
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
    loc := opts.Location
    if loc == "" { loc = "europe-west1" }
    return &GeminiClient{
        http:        &http.Client{},
        apiKey:      opts.APIKey,
        accessToken: opts.AccessToken,
        project:     opts.Project,
        location:    loc,
    }
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
    Text       string            `json:"text,omitempty"`
    InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
    MIMEType string `json:"mime_type"`
    Data     string `json:"data"`
}

type geminiContent struct {
    Role  string       `json:"role,omitempty"`
    Parts []geminiPart `json:"parts"`
}

type geminiReq struct {
    Contents          []geminiContent `json:"contents"`
    SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
    GenerationConfig  struct {
        Temperature     float64 `json:"temperature"`
        MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
    } `json:"generationConfig"`
}

type geminiResp struct {
    Candidates []struct {
        Content struct {
            Parts []struct {
                Text string `json:"text"`
            } `json:"parts"`
        } `json:"content"`
        FinishReason string `json:"finishReason"`
    } `json:"candidates"`
    UsageMetadata struct {
        PromptTokenCount     int `json:"promptTokenCount"`
        CandidatesTokenCount int `json:"candidatesTokenCount"`
    } `json:"usageMetadata"`
}

func (c *GeminiClient) endpoint(model string) (string, error) {
    if c.BaseURL != "" {
        return fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, model), nil
    }
    if c.apiKey != "" {
        return fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model), nil
    }
    if c.accessToken != "" && c.project != "" {
        return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
            c.location, c.project, c.location, model), nil
    }
    return "", errors.New("gemini: no API key and no project/access token configured")
}

func (c *GeminiClient) Do(ctx context.Context, req Request) (Response, error) {
    url, err := c.endpoint(req.Model)
    if err != nil { return Response{}, err }

    // Image parts first, instruction text last
    parts := make([]geminiPart, 0, len(req.Images)+1)
    for _, img := range req.Images {
        parts = append(parts, geminiPart{InlineData: &geminiInlineData{MIMEType: img.MIME, Data: img.Base64}})
    }
    parts = append(parts, geminiPart{Text: req.Prompt})

    payload := geminiReq{Contents: []geminiContent{{Role: "user", Parts: parts}}}
    if req.SystemPrompt != "" {
        payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
    }
    payload.GenerationConfig.Temperature = 0
    payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

    body, _ := json.Marshal(payload)
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
    if err != nil { return Response{}, err }
    httpReq.Header.Set("Content-Type", "application/json")
    if c.apiKey != "" {
        httpReq.Header.Set("x-goog-api-key", c.apiKey)
    } else if c.accessToken != "" {
        httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
    }

    start := time.Now()
    resp, err := c.http.Do(httpReq)
    if err != nil {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, err
    }
    defer resp.Body.Close()

    if resp.StatusCode == http.StatusTooManyRequests {
        metrics.ObserveProvider(c.Name(), req.Model, "rate_limited", time.Since(start))
        return Response{}, ErrRateLimited
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, fmt.Errorf("gemini status %d", resp.StatusCode)
    }

    var r geminiResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, err
    }
    if len(r.Candidates) == 0 {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, errors.New("gemini: no candidates")
    }
    cand := r.Candidates[0]
    if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
        metrics.ObserveProvider(c.Name(), req.Model, "refused", time.Since(start))
        return Response{}, ErrContentRefused
    }

    var text string
    for _, p := range cand.Content.Parts {
        text += p.Text
    }

    metrics.ObserveProvider(c.Name(), req.Model, "ok", time.Since(start))
    return Response{
        Text:      text,
        TokensIn:  r.UsageMetadata.PromptTokenCount,
        TokensOut: r.UsageMetadata.CandidatesTokenCount,
    }, nil
}
