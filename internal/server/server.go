package server

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/docextract/internal/job"
    "github.com/local/docextract/internal/metrics"
    "github.com/local/docextract/internal/statuscheck"
    "github.com/local/docextract/internal/store"
)

// Queue is the queue surface the API needs.
type Queue interface {
    Enqueue(ctx context.Context, payload []byte) error
    CancelJob(ctx context.Context, jobID string) error
    IsIdemDone(ctx context.Context, key string) (bool, error)
}

// StatusStore reads and writes job status.
type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// ResultStore serves finished payloads.
type ResultStore interface {
    Get(ctx context.Context, jobID string) ([]byte, string, bool, error)
}

// HealthChecker summarizes dependency readiness.
type HealthChecker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

// Server is the HTTP API for submitting and tracking extraction jobs.
type Server struct {
    queue     Queue
    status    StatusStore
    results   ResultStore
    checker   HealthChecker
    uploadDir string
}

// Options configures the Server.
type Options struct {
    Queue     Queue
    Status    StatusStore
    Results   ResultStore
    Checker   HealthChecker
    UploadDir string
}

func New(opts Options) *Server {
    dir := opts.UploadDir
    if dir == "" { dir = os.TempDir() }
    return &Server{
        queue:     opts.Queue,
        status:    opts.Status,
        results:   opts.Results,
        checker:   opts.Checker,
        uploadDir: dir,
    }
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", s.handleHealth)
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/extract_document", s.handleExtract)
    mux.HandleFunc("/extract_upload", s.handleExtractUpload)
    mux.HandleFunc("/progress/", s.handleProgress)
    mux.HandleFunc("/download_result/", s.handleDownloadResult)
    mux.HandleFunc("/webhook/cancel_job", s.handleCancelJob)
}

type extractReq struct {
    Ref            string          `json:"ref"`
    Prompt         string          `json:"prompt"`
    Schema         json.RawMessage `json:"schema"`
    DocType        string          `json:"doc_type"`
    Engine         string          `json:"engine"`
    Pages          string          `json:"pages"`
    DPI            int             `json:"dpi"`
    Model          string          `json:"model"`
    Format         string          `json:"format"`
    Password       string          `json:"password"`
    IdempotencyKey string          `json:"idempotency_key"`
}

type extractResp struct {
    Status  string `json:"status"`
    JobID   string `json:"job_id"`
    Message string `json:"message"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()

    var req extractReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        http.Error(w, "invalid json", http.StatusBadRequest); return
    }
    if req.Ref == "" {
        http.Error(w, "missing ref", http.StatusBadRequest); return
    }
    if len(req.Schema) > 0 && req.DocType != "" {
        http.Error(w, "schema and doc_type are mutually exclusive", http.StatusBadRequest); return
    }

    if req.IdempotencyKey != "" {
        if done, err := s.queue.IsIdemDone(r.Context(), req.IdempotencyKey); err == nil && done {
            writeJSON(w, http.StatusOK, extractResp{Status: "done", Message: "idempotency key already completed"})
            return
        }
    }

    s.enqueueJob(w, r, &job.Job{
        Ref:            req.Ref,
        Prompt:         req.Prompt,
        Schema:         req.Schema,
        DocType:        req.DocType,
        Engine:         req.Engine,
        Pages:          req.Pages,
        DPI:            req.DPI,
        Model:          req.Model,
        Format:         req.Format,
        Password:       req.Password,
        IdempotencyKey: req.IdempotencyKey,
    })
}

// handleExtractUpload accepts a multipart upload: the document in the "file"
// part plus the same fields as /extract_document as form values.
func (s *Server) handleExtractUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    if err := r.ParseMultipartForm(64 << 20); err != nil {
        http.Error(w, "invalid multipart form", http.StatusBadRequest); return
    }

    file, header, err := r.FormFile("file")
    if err != nil {
        http.Error(w, "missing file part", http.StatusBadRequest); return
    }
    defer file.Close()

    name := filepath.Base(header.Filename)
    if name == "" || name == "." { name = "upload" }
    dst := filepath.Join(s.uploadDir, fmt.Sprintf("%s-%s", uuid.NewString(), name))

    out, err := os.Create(dst)
    if err != nil {
        http.Error(w, "cannot store upload", http.StatusInternalServerError); return
    }
    if _, err := io.Copy(out, file); err != nil {
        out.Close()
        os.Remove(dst)
        http.Error(w, "cannot store upload", http.StatusInternalServerError); return
    }
    out.Close()

    var dpi int
    fmt.Sscan(r.FormValue("dpi"), &dpi)

    s.enqueueJob(w, r, &job.Job{
        Ref:      dst,
        Prompt:   r.FormValue("prompt"),
        Schema:   json.RawMessage(r.FormValue("schema")),
        DocType:  r.FormValue("doc_type"),
        Engine:   r.FormValue("engine"),
        Pages:    r.FormValue("pages"),
        DPI:      dpi,
        Model:    r.FormValue("model"),
        Format:   r.FormValue("format"),
        Password: r.FormValue("password"),
    })
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request, j *job.Job) {
    j.ID = uuid.NewString()
    j.EnqueuedAt = time.Now()

    payload, err := j.Marshal()
    if err != nil {
        http.Error(w, "cannot encode job", http.StatusInternalServerError); return
    }

    now := time.Now()
    _ = s.status.Set(r.Context(), j.ID, store.Status{
        Status: store.StatusQueued, Progress: 0, Message: "queued", Start: &now,
        Metadata: map[string]any{"ref": j.Ref, "engine": j.Engine},
    })

    if err := s.queue.Enqueue(r.Context(), payload); err != nil {
        log.Error().Err(err).Str("job_id", j.ID).Msg("enqueue failed")
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable); return
    }

    log.Info().Str("job_id", j.ID).Str("ref", j.Ref).Msg("job queued")
    writeJSON(w, http.StatusCreated, extractResp{Status: "queued", JobID: j.ID, Message: "job accepted"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
    jobID := strings.TrimPrefix(r.URL.Path, "/progress/")
    if jobID == "" {
        http.Error(w, "missing job id", http.StatusBadRequest); return
    }

    st, found, err := s.status.Get(r.Context(), jobID)
    if err != nil {
        http.Error(w, "status unavailable", http.StatusInternalServerError); return
    }
    if !found {
        http.Error(w, "unknown job", http.StatusNotFound); return
    }
    writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
    jobID := strings.TrimPrefix(r.URL.Path, "/download_result/")
    if jobID == "" {
        http.Error(w, "missing job id", http.StatusBadRequest); return
    }

    payload, contentType, found, err := s.results.Get(r.Context(), jobID)
    if err != nil {
        http.Error(w, "result unavailable", http.StatusInternalServerError); return
    }
    if !found {
        // Distinguish still-running jobs from unknown ones.
        if st, ok, _ := s.status.Get(r.Context(), jobID); ok && st.Status != store.StatusCompleted {
            http.Error(w, fmt.Sprintf("job is %s", st.Status), http.StatusConflict); return
        }
        http.Error(w, "unknown job", http.StatusNotFound); return
    }

    if contentType == "" { contentType = "application/octet-stream" }
    w.Header().Set("Content-Type", contentType)
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(payload)
}

type cancelReq struct {
    JobID string `json:"job_id"`
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()

    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
        http.Error(w, "missing job_id", http.StatusBadRequest); return
    }

    if err := s.queue.CancelJob(r.Context(), req.JobID); err != nil {
        http.Error(w, "cancel failed", http.StatusInternalServerError); return
    }
    log.Info().Str("job_id", req.JobID).Msg("job cancel requested")
    writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "job_id": req.JobID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
    if s.checker == nil {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
        return
    }
    summary := s.checker.Summary(r.Context())
    code := http.StatusOK
    if !summary.OK() { code = http.StatusServiceUnavailable }
    writeJSON(w, code, summary)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}
