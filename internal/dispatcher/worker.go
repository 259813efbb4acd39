package dispatcher

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/docextract/internal/export"
    "github.com/local/docextract/internal/extract"
    "github.com/local/docextract/internal/fetch"
    "github.com/local/docextract/internal/job"
    "github.com/local/docextract/internal/metrics"
    "github.com/local/docextract/internal/storage"
    "github.com/local/docextract/internal/store"
)

// Queue is the queue surface the workers need.
type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
    Ack(ctx context.Context, msgID string) error
    AddDLQ(ctx context.Context, payload []byte, reason string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
    MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
    Depths(ctx context.Context) (int64, int64, int64, error)
}

// StatusStore records job lifecycle transitions.
type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
}

// ResultStore keeps finished payloads for download.
type ResultStore interface {
    Save(ctx context.Context, jobID string, payload []byte, contentType string) error
}

// ResultUploader mirrors finished payloads to object storage.
type ResultUploader interface {
    Upload(ctx context.Context, key string, data []byte, password string, meta *storage.ObjectMeta) error
}

// Pool runs extraction jobs from the queue. Each job gets exactly one
// attempt; failures go to the DLQ with a reason.
type Pool struct {
    queue     Queue
    status    StatusStore
    results   ResultStore
    extractor *extract.Extractor
    resolver  *fetch.Resolver
    uploader  ResultUploader // optional, mirrors results to S3

    concurrency int
    jobTimeout  time.Duration

    wg     sync.WaitGroup
    cancel context.CancelFunc
}

// New builds a worker pool.
func New(q Queue, status StatusStore, results ResultStore, ex *extract.Extractor, resolver *fetch.Resolver, concurrency int, jobTimeout time.Duration) *Pool {
    if concurrency <= 0 { concurrency = 2 }
    if jobTimeout <= 0 { jobTimeout = 5 * time.Minute }
    return &Pool{
        queue:       q,
        status:      status,
        results:     results,
        extractor:   ex,
        resolver:    resolver,
        concurrency: concurrency,
        jobTimeout:  jobTimeout,
    }
}

// Start launches the workers and the queue depth reporter.
func (p *Pool) Start(ctx context.Context) {
    ctx, p.cancel = context.WithCancel(ctx)
    for i := 0; i < p.concurrency; i++ {
        p.wg.Add(1)
        go p.worker(ctx, fmt.Sprintf("worker-%d", i))
    }
    p.wg.Add(1)
    go p.reportDepths(ctx)
    log.Info().Int("workers", p.concurrency).Msg("dispatcher started")
}

// Stop waits for in-flight jobs to finish.
func (p *Pool) Stop() {
    if p.cancel != nil { p.cancel() }
    p.wg.Wait()
    log.Info().Msg("dispatcher stopped")
}

func (p *Pool) worker(ctx context.Context, consumer string) {
    defer p.wg.Done()
    for {
        select {
        case <-ctx.Done():
            return
        default:
        }

        msgID, payload, err := p.queue.Dequeue(ctx, consumer, 2*time.Second)
        if err != nil {
            if ctx.Err() != nil { return }
            log.Error().Err(err).Str("consumer", consumer).Msg("dequeue failed")
            time.Sleep(time.Second)
            continue
        }
        if payload == nil {
            if msgID != "" { _ = p.queue.Ack(ctx, msgID) }
            continue
        }

        p.handle(ctx, consumer, msgID, payload)
    }
}

func (p *Pool) handle(ctx context.Context, consumer, msgID string, payload []byte) {
    // Ack immediately: one attempt per job, failures are recorded in status
    // and the DLQ rather than redelivered.
    _ = p.queue.Ack(ctx, msgID)

    j, err := job.Unmarshal(payload)
    if err != nil {
        log.Error().Err(err).Msg("bad job payload")
        _ = p.queue.AddDLQ(ctx, payload, "unparseable payload")
        metrics.IncJob("failed")
        return
    }

    logger := log.With().Str("job_id", j.ID).Str("consumer", consumer).Logger()

    if cancelled, _ := p.queue.IsCancelled(ctx, j.ID); cancelled {
        logger.Info().Msg("job cancelled before processing")
        p.setStatus(ctx, j.ID, store.StatusCancelled, 100, "cancelled before processing")
        metrics.IncJob("cancelled")
        return
    }

    p.setStatus(ctx, j.ID, store.StatusProcessing, 10, "processing")
    start := time.Now()

    jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
    payloadOut, contentType, err := p.run(jobCtx, j)
    cancel()

    if err != nil {
        logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
        p.setStatus(ctx, j.ID, store.StatusFailed, 100, err.Error())
        _ = p.queue.AddDLQ(ctx, payload, err.Error())
        metrics.IncJob("failed")
        return
    }

    if err := p.results.Save(ctx, j.ID, payloadOut, contentType); err != nil {
        logger.Error().Err(err).Msg("failed to store result")
        p.setStatus(ctx, j.ID, store.StatusFailed, 100, "failed to store result")
        metrics.IncJob("failed")
        return
    }

    if p.uploader != nil {
        key := fmt.Sprintf("results/%s%s", j.ID, extensionFor(j.Format))
        meta := &storage.ObjectMeta{OriginalName: key, ContentType: contentType}
        if err := p.uploader.Upload(ctx, key, payloadOut, j.Password, meta); err != nil {
            logger.Warn().Err(err).Str("key", key).Msg("result upload failed")
        }
    }

    p.setStatus(ctx, j.ID, store.StatusCompleted, 100, "done")
    if j.IdempotencyKey != "" {
        _ = p.queue.MarkIdemDone(ctx, j.IdempotencyKey, 24*time.Hour)
    }
    metrics.IncJob("success")
    logger.Info().Dur("duration", time.Since(start)).Int("bytes", len(payloadOut)).Msg("job done")
}

// run resolves the document and executes the extraction a job describes.
func (p *Pool) run(ctx context.Context, j *job.Job) ([]byte, string, error) {
    localPath, cleanup, err := p.resolver.Resolve(ctx, j.Ref, j.Password)
    if err != nil {
        return nil, "", fmt.Errorf("resolve document: %w", err)
    }
    defer cleanup()

    pages, err := extract.ParsePageSelection(j.Pages)
    if err != nil {
        return nil, "", err
    }
    opts := extract.Options{
        Engine:   extract.Engine(j.Engine),
        Pages:    pages,
        DPI:      j.DPI,
        Model:    j.Model,
        Password: j.Password,
    }

    var res *extract.Result
    switch {
    case len(j.Schema) > 0:
        schema, err := extract.ParseSchema(j.Schema)
        if err != nil {
            return nil, "", err
        }
        res, err = p.extractor.ExtractStructured(ctx, localPath, schema, opts)
        if err != nil {
            return nil, "", err
        }
    case j.DocType != "":
        schema, err := extract.BuiltinSchema(j.DocType)
        if err != nil {
            return nil, "", err
        }
        res, err = p.extractor.ExtractStructured(ctx, localPath, schema, opts)
        if err != nil {
            return nil, "", err
        }
    default:
        res, err = p.extractor.Extract(ctx, localPath, j.Prompt, opts)
        if err != nil {
            return nil, "", err
        }
    }

    out, err := export.Render(res, j.Format)
    if err != nil {
        return nil, "", err
    }
    return out, contentTypeFor(j.Format), nil
}

func (p *Pool) setStatus(ctx context.Context, jobID, state string, progress int, msg string) {
    now := time.Now()
    st := store.Status{Status: state, Progress: progress, Message: msg}
    if state == store.StatusProcessing {
        st.Start = &now
    } else {
        st.End = &now
    }
    if err := p.status.Set(ctx, jobID, st); err != nil {
        log.Warn().Err(err).Str("job_id", jobID).Msg("failed to update job status")
    }
}

func (p *Pool) reportDepths(ctx context.Context) {
    defer p.wg.Done()
    ticker := time.NewTicker(10 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            stream, delayed, dlq, err := p.queue.Depths(ctx)
            if err != nil { continue }
            metrics.SetQueueDepth("stream", stream)
            metrics.SetQueueDepth("delayed", delayed)
            metrics.SetQueueDepth("dlq", dlq)
        }
    }
}

// WithUploader mirrors successful results to object storage. Upload failures
// are logged, not fatal: the result store stays the source of truth.
func (p *Pool) WithUploader(u ResultUploader) *Pool {
    p.uploader = u
    return p
}

func extensionFor(format string) string {
    switch format {
    case export.FormatCSV:
        return ".csv"
    case export.FormatXLSX:
        return ".xlsx"
    case export.FormatText:
        return ".txt"
    default:
        return ".json"
    }
}

func contentTypeFor(format string) string {
    switch format {
    case export.FormatCSV:
        return "text/csv"
    case export.FormatXLSX:
        return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
    case export.FormatText:
        return "text/plain; charset=utf-8"
    default:
        return "application/json"
    }
}
