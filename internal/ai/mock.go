package ai

import (
    "context"
    "strings"
    "sync"
)

// MockClient returns canned responses without any network call. It is wired
// in when VISION_USE_MOCK is set, so the pipeline can be exercised end to end
// without credentials.
type MockClient struct {
    mu        sync.Mutex
    calls     []Request

    // Responses maps a prompt substring to the canned reply. The first
    // matching entry in Order wins; Default is used when nothing matches.
    Responses map[string]string
    Order     []string
    Default   string
}

func NewMockClient() *MockClient {
    return &MockClient{
        Responses: map[string]string{
            "invoice":  `{"invoice_number": "INV-2024-001", "total_amount": 1250.00, "currency": "EUR", "vendor_name": "Mock Vendor SARL"}`,
            "classif":  `{"document_type": "invoice", "confidence": 0.95}`,
            "contract": `{"parties": ["Mock Client SA", "Mock Provider SARL"], "effective_date": "2024-01-01"}`,
        },
        // "classif" first: the classification prompt enumerates document
        // types, including "invoice".
        Order:   []string{"classif", "invoice", "contract"},
        Default: "Mock extraction output.",
    }
}

func (c *MockClient) Name() string { return "mock" }

// Calls returns a copy of the requests seen so far.
func (c *MockClient) Calls() []Request {
    c.mu.Lock()
    defer c.mu.Unlock()
    out := make([]Request, len(c.calls))
    copy(out, c.calls)
    return out
}

func (c *MockClient) Do(ctx context.Context, req Request) (Response, error) {
    if err := ctx.Err(); err != nil {
        return Response{}, err
    }

    c.mu.Lock()
    c.calls = append(c.calls, req)
    c.mu.Unlock()

    lower := strings.ToLower(req.Prompt + " " + req.SystemPrompt)
    for _, key := range c.Order {
        if strings.Contains(lower, key) {
            return Response{Text: c.Responses[key], TokensIn: 10, TokensOut: 20}, nil
        }
    }
    return Response{Text: c.Default, TokensIn: 10, TokensOut: 5}, nil
}
