package dispatcher

import (
    "context"
    "encoding/json"
    "sync"
    "testing"
    "time"

    "github.com/local/docextract/internal/ai"
    "github.com/local/docextract/internal/config"
    "github.com/local/docextract/internal/extract"
    "github.com/local/docextract/internal/fetch"
    "github.com/local/docextract/internal/job"
    "github.com/local/docextract/internal/storage"
    "github.com/local/docextract/internal/store"
    "github.com/local/docextract/internal/testpdf"
)

type fakeQueue struct {
    mu        sync.Mutex
    acked     []string
    dlq       []string
    cancelled map[string]bool
    idemDone  []string
}

func (q *fakeQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error) {
    return "", nil, nil
}
func (q *fakeQueue) Ack(ctx context.Context, msgID string) error {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.acked = append(q.acked, msgID)
    return nil
}
func (q *fakeQueue) AddDLQ(ctx context.Context, payload []byte, reason string) error {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.dlq = append(q.dlq, reason)
    return nil
}
func (q *fakeQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.cancelled[jobID], nil
}
func (q *fakeQueue) MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.idemDone = append(q.idemDone, key)
    return nil
}
func (q *fakeQueue) Depths(ctx context.Context) (int64, int64, int64, error) { return 0, 0, 0, nil }

type fakeStatus struct {
    mu     sync.Mutex
    states map[string][]store.Status
}

func newFakeStatus() *fakeStatus { return &fakeStatus{states: map[string][]store.Status{}} }

func (s *fakeStatus) Set(ctx context.Context, jobID string, st store.Status) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.states[jobID] = append(s.states[jobID], st)
    return nil
}

func (s *fakeStatus) last(jobID string) store.Status {
    s.mu.Lock()
    defer s.mu.Unlock()
    states := s.states[jobID]
    if len(states) == 0 { return store.Status{} }
    return states[len(states)-1]
}

type fakeResults struct {
    mu          sync.Mutex
    payloads    map[string][]byte
    contentType map[string]string
}

func newFakeResults() *fakeResults {
    return &fakeResults{payloads: map[string][]byte{}, contentType: map[string]string{}}
}

func (r *fakeResults) Save(ctx context.Context, jobID string, payload []byte, contentType string) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.payloads[jobID] = payload
    r.contentType[jobID] = contentType
    return nil
}

func newTestPool(q Queue, st StatusStore, res ResultStore) *Pool {
    ex := extract.New(ai.NewMockClient(), config.OCRConfig{Languages: []string{"eng"}})
    return New(q, st, res, ex, fetch.NewResolver(nil), 1, time.Minute)
}

func TestHandleCompletesStructuredJob(t *testing.T) {
    pdf := testpdf.WriteFile(t, []string{"Invoice INV-2024-001 from Mock Vendor SARL."})

    q := &fakeQueue{cancelled: map[string]bool{}}
    st := newFakeStatus()
    res := newFakeResults()
    p := newTestPool(q, st, res)

    j := &job.Job{ID: "job-1", Ref: pdf, DocType: "invoice", Engine: "vision", Format: "json", IdempotencyKey: "idem-1"}
    payload, _ := j.Marshal()

    p.handle(context.Background(), "worker-0", "1-0", payload)

    if got := st.last("job-1").Status; got != store.StatusCompleted {
        t.Fatalf("final status = %q, want completed", got)
    }
    out, ok := res.payloads["job-1"]
    if !ok {
        t.Fatal("result not stored")
    }
    var m map[string]any
    if err := json.Unmarshal(out, &m); err != nil {
        t.Fatalf("stored payload is not JSON: %v", err)
    }
    if m["invoice_number"] != "INV-2024-001" {
        t.Fatalf("invoice_number = %v", m["invoice_number"])
    }
    if res.contentType["job-1"] != "application/json" {
        t.Fatalf("content type = %q", res.contentType["job-1"])
    }
    if len(q.acked) != 1 {
        t.Fatalf("acks = %d, want 1", len(q.acked))
    }
    if len(q.idemDone) != 1 || q.idemDone[0] != "idem-1" {
        t.Fatalf("idempotency not marked: %v", q.idemDone)
    }
    if len(q.dlq) != 0 {
        t.Fatalf("unexpected DLQ entries: %v", q.dlq)
    }
}

func TestHandleFailsToDLQOnce(t *testing.T) {
    q := &fakeQueue{cancelled: map[string]bool{}}
    st := newFakeStatus()
    res := newFakeResults()
    p := newTestPool(q, st, res)

    j := &job.Job{ID: "job-2", Ref: "/no/such/file.pdf"}
    payload, _ := j.Marshal()

    p.handle(context.Background(), "worker-0", "1-1", payload)

    if got := st.last("job-2").Status; got != store.StatusFailed {
        t.Fatalf("final status = %q, want failed", got)
    }
    // Exactly one attempt, one DLQ entry, no retries.
    if len(q.dlq) != 1 {
        t.Fatalf("dlq entries = %d, want 1", len(q.dlq))
    }
    if len(res.payloads) != 0 {
        t.Fatal("no result expected for failed job")
    }
}

func TestHandleSkipsCancelledJob(t *testing.T) {
    q := &fakeQueue{cancelled: map[string]bool{"job-3": true}}
    st := newFakeStatus()
    res := newFakeResults()
    p := newTestPool(q, st, res)

    j := &job.Job{ID: "job-3", Ref: "/irrelevant.pdf"}
    payload, _ := j.Marshal()

    p.handle(context.Background(), "worker-0", "1-2", payload)

    if got := st.last("job-3").Status; got != store.StatusCancelled {
        t.Fatalf("final status = %q, want cancelled", got)
    }
    if len(q.dlq) != 0 {
        t.Fatalf("cancelled job should not hit DLQ: %v", q.dlq)
    }
}

func TestHandleRejectsBadPayload(t *testing.T) {
    q := &fakeQueue{cancelled: map[string]bool{}}
    p := newTestPool(q, newFakeStatus(), newFakeResults())

    p.handle(context.Background(), "worker-0", "1-3", []byte("not json"))

    if len(q.dlq) != 1 {
        t.Fatalf("dlq entries = %d, want 1", len(q.dlq))
    }
}

type fakeUploader struct {
    mu   sync.Mutex
    keys []string
}

func (u *fakeUploader) Upload(ctx context.Context, key string, data []byte, password string, meta *storage.ObjectMeta) error {
    u.mu.Lock()
    defer u.mu.Unlock()
    u.keys = append(u.keys, key)
    return nil
}

func TestHandleMirrorsResultToUploader(t *testing.T) {
    pdf := testpdf.WriteFile(t, []string{"Invoice INV-2024-001 from Mock Vendor SARL."})

    q := &fakeQueue{cancelled: map[string]bool{}}
    st := newFakeStatus()
    res := newFakeResults()
    up := &fakeUploader{}
    p := newTestPool(q, st, res).WithUploader(up)

    j := &job.Job{ID: "job-5", Ref: pdf, DocType: "invoice", Engine: "vision", Format: "csv"}
    payload, _ := j.Marshal()

    p.handle(context.Background(), "worker-0", "1-5", payload)

    if got := st.last("job-5").Status; got != store.StatusCompleted {
        t.Fatalf("final status = %q, want completed", got)
    }
    if len(up.keys) != 1 || up.keys[0] != "results/job-5.csv" {
        t.Fatalf("uploaded keys = %v, want [results/job-5.csv]", up.keys)
    }
}

func TestHandleInvalidPageSelector(t *testing.T) {
    pdf := testpdf.WriteFile(t, []string{"Some ordinary page content for the test."})

    q := &fakeQueue{cancelled: map[string]bool{}}
    st := newFakeStatus()
    p := newTestPool(q, st, newFakeResults())

    j := &job.Job{ID: "job-4", Ref: pdf, Pages: "3-1"}
    payload, _ := j.Marshal()

    p.handle(context.Background(), "worker-0", "1-4", payload)

    if got := st.last("job-4").Status; got != store.StatusFailed {
        t.Fatalf("final status = %q, want failed", got)
    }
}
