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

type OpenAIClient struct {
    http   *http.Client
    apiKey string

    // BaseURL overrides the endpoint, used in tests.
    BaseURL string
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
    return &OpenAIClient{http: &http.Client{}, apiKey: apiKey}
}

func (c *OpenAIClient) Name() string { return "openai" }

type openAIMessage struct {
    Role    string                   `json:"role"`
    Content []map[string]interface{} `json:"content"`
}

type openAIChatReq struct {
    Model       string          `json:"model"`
    Messages    []openAIMessage `json:"messages"`
    Temperature float64         `json:"temperature"`
    MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIChatResp struct {
    Choices []struct {
        Message struct {
            Content string `json:"content"`
        } `json:"message"`
        FinishReason string `json:"finish_reason"`
    } `json:"choices"`
    Usage struct {
        PromptTokens     int `json:"prompt_tokens"`
        CompletionTokens int `json:"completion_tokens"`
    } `json:"usage"`
}

func (c *OpenAIClient) Do(ctx context.Context, req Request) (Response, error) {
    if c.apiKey == "" {
        return Response{}, errors.New("missing OPENAI_API_KEY")
    }

    var messages []openAIMessage

    if req.SystemPrompt != "" {
        messages = append(messages, openAIMessage{
            Role: "system",
            Content: []map[string]interface{}{
                {"type": "text", "text": req.SystemPrompt},
            },
        })
    }

    // Image parts first, instruction text last
    var userContent []map[string]interface{}
    for _, img := range req.Images {
        imageURL := fmt.Sprintf("data:%s;base64,%s", img.MIME, img.Base64)
        userContent = append(userContent, map[string]interface{}{
            "type":      "image_url",
            "image_url": map[string]string{"url": imageURL},
        })
    }
    userContent = append(userContent, map[string]interface{}{
        "type": "text",
        "text": req.Prompt,
    })

    messages = append(messages, openAIMessage{Role: "user", Content: userContent})

    maxTokens := req.MaxTokens
    if maxTokens <= 0 { maxTokens = 4096 }
    payload := openAIChatReq{
        Model:       req.Model,
        Messages:    messages,
        Temperature: 0,
        MaxTokens:   maxTokens,
    }

    url := c.BaseURL
    if url == "" { url = "https://api.openai.com/v1" }
    url += "/chat/completions"

    body, _ := json.Marshal(payload)
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
    if err != nil { return Response{}, err }
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
    httpReq.Header.Set("Content-Type", "application/json")

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
        return Response{}, fmt.Errorf("openai status %d", resp.StatusCode)
    }

    var r openAIChatResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, err
    }
    if len(r.Choices) == 0 {
        metrics.ObserveProvider(c.Name(), req.Model, "error", time.Since(start))
        return Response{}, errors.New("no choices")
    }
    if r.Choices[0].FinishReason == "content_filter" {
        metrics.ObserveProvider(c.Name(), req.Model, "refused", time.Since(start))
        return Response{}, ErrContentRefused
    }

    metrics.ObserveProvider(c.Name(), req.Model, "ok", time.Since(start))
    return Response{
        Text:      r.Choices[0].Message.Content,
        TokensIn:  r.Usage.PromptTokens,
        TokensOut: r.Usage.CompletionTokens,
    }, nil
}
