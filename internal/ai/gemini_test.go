package ai

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
)

func TestGeminiImagesBeforePrompt(t *testing.T) {
    var got geminiReq
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Header.Get("x-goog-api-key") != "test-key" {
            t.Errorf("missing api key header")
        }
        if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
            t.Errorf("decode request: %v", err)
        }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`))
    }))
    defer srv.Close()

    c := NewGeminiClient(GeminiOptions{APIKey: "test-key"})
    c.BaseURL = srv.URL

    resp, err := c.Do(context.Background(), Request{
        Model:  "gemini-2.0-flash-001",
        Prompt: "Extract all text.",
        Images: []ImagePart{
            {Base64: "aW1nMQ==", MIME: "image/png"},
            {Base64: "aW1nMg==", MIME: "image/png"},
        },
    })
    if err != nil {
        t.Fatalf("Do() error = %v", err)
    }
    if resp.Text != "ok" {
        t.Fatalf("Text = %q, want ok", resp.Text)
    }
    if resp.TokensIn != 5 || resp.TokensOut != 2 {
        t.Fatalf("token counts = %d/%d, want 5/2", resp.TokensIn, resp.TokensOut)
    }

    if len(got.Contents) != 1 {
        t.Fatalf("contents = %d, want 1", len(got.Contents))
    }
    parts := got.Contents[0].Parts
    if len(parts) != 3 {
        t.Fatalf("parts = %d, want 3 (2 images + prompt)", len(parts))
    }
    for i := 0; i < 2; i++ {
        if parts[i].InlineData == nil || parts[i].Text != "" {
            t.Fatalf("part %d should be an image part, got %+v", i, parts[i])
        }
    }
    if parts[2].InlineData != nil || parts[2].Text != "Extract all text." {
        t.Fatalf("last part should be the prompt, got %+v", parts[2])
    }
}

func TestGeminiRateLimited(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTooManyRequests)
    }))
    defer srv.Close()

    c := NewGeminiClient(GeminiOptions{APIKey: "test-key"})
    c.BaseURL = srv.URL

    _, err := c.Do(context.Background(), Request{Model: "m", Prompt: "p"})
    if !IsRateLimited(err) {
        t.Fatalf("expected ErrRateLimited, got %v", err)
    }
}

func TestGeminiContentRefused(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
    }))
    defer srv.Close()

    c := NewGeminiClient(GeminiOptions{APIKey: "test-key"})
    c.BaseURL = srv.URL

    _, err := c.Do(context.Background(), Request{Model: "m", Prompt: "p"})
    if !IsContentRefused(err) {
        t.Fatalf("expected ErrContentRefused, got %v", err)
    }
}

func TestGeminiNoCredentials(t *testing.T) {
    c := NewGeminiClient(GeminiOptions{})
    if _, err := c.Do(context.Background(), Request{Model: "m", Prompt: "p"}); err == nil {
        t.Fatal("expected error without credentials")
    }
}
