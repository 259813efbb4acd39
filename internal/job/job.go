// Package job defines the queued extraction job payload shared by the HTTP
// server and the workers.
package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job is one queued extraction request.
type Job struct {
	ID  string `json:"id"`
	Ref string `json:"ref"` // local path, file://, http(s):// or s3:// reference

	Prompt  string          `json:"prompt,omitempty"`
	Schema  json.RawMessage `json:"schema,omitempty"`
	DocType string          `json:"doc_type,omitempty"` // invoice, contract
	Engine  string          `json:"engine,omitempty"`   // vision, ocr, text, auto
	Pages   string          `json:"pages,omitempty"`    // "a,b,c", "a-b" or mixed
	DPI     int             `json:"dpi,omitempty"`
	Model   string          `json:"model,omitempty"`
	Format  string          `json:"format,omitempty"` // json, csv, xlsx, text

	Password       string    `json:"password,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// Structured reports whether the job asks for schema-constrained output.
func (j *Job) Structured() bool { return len(j.Schema) > 0 || j.DocType != "" }

func (j *Job) Marshal() ([]byte, error) { return json.Marshal(j) }

func Unmarshal(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if j.ID == "" {
		return nil, fmt.Errorf("job has no id")
	}
	return &j, nil
}
