package extract

import (
	"errors"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	payload := `{"a": 1}`

	tests := []struct {
		name string
		in   string
	}{
		{name: "bare", in: payload},
		{name: "json fence", in: "```json\n" + payload + "\n```"},
		{name: "plain fence", in: "```\n" + payload + "\n```"},
		{name: "fence no newline", in: "```json" + payload + "```"},
		{name: "surrounding whitespace", in: "  \n```json\n" + payload + "\n```  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != payload {
				t.Fatalf("StripCodeFence(%q) = %q, want %q", tt.in, got, payload)
			}
		})
	}
}

func TestStripCodeFenceAppliedOnce(t *testing.T) {
	// A fenced response whose payload itself starts with backticks must not
	// be stripped twice.
	in := "```json\n```inner\n```"
	got := StripCodeFence(in)
	if got != "```inner" {
		t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, "```inner")
	}
}

func TestParseJSONResponse(t *testing.T) {
	m, err := ParseJSONResponse("```json\n{\"total\": 12.5, \"vendor\": \"ACME\"}\n```")
	if err != nil {
		t.Fatalf("ParseJSONResponse() error = %v", err)
	}
	if m["vendor"] != "ACME" {
		t.Fatalf("vendor = %v, want ACME", m["vendor"])
	}

	fenced, err := ParseJSONResponse("```json\n{\"a\": 1}\n```")
	if err != nil {
		t.Fatal(err)
	}
	bare, err := ParseJSONResponse(`{"a": 1}`)
	if err != nil {
		t.Fatal(err)
	}
	if fenced["a"] != bare["a"] {
		t.Fatal("fenced and bare responses should parse identically")
	}
}

func TestParseJSONResponseNotJSON(t *testing.T) {
	for _, in := range []string{
		"The total is 12.50 EUR.",
		"```json\nnot json\n```",
		`[1, 2, 3]`, // valid JSON but not an object
		"",
	} {
		if _, err := ParseJSONResponse(in); !errors.Is(err, ErrNotJSON) {
			t.Fatalf("ParseJSONResponse(%q) error = %v, want ErrNotJSON", in, err)
		}
	}
}
