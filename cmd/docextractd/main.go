package main

import (
    "context"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/docextract/internal/ai"
    cfgpkg "github.com/local/docextract/internal/config"
    "github.com/local/docextract/internal/dispatcher"
    "github.com/local/docextract/internal/extract"
    "github.com/local/docextract/internal/fetch"
    logpkg "github.com/local/docextract/internal/logger"
    "github.com/local/docextract/internal/metrics"
    "github.com/local/docextract/internal/queue"
    "github.com/local/docextract/internal/server"
    "github.com/local/docextract/internal/statuscheck"
    "github.com/local/docextract/internal/storage"
    "github.com/local/docextract/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Stores
    rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init status store")
    }
    defer rs.Close()

    results, err := store.NewResultStore(cfg.Queue.RedisURL, 0)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init result store")
    }
    defer results.Close()

    // Optional S3 document source
    var s3cli *storage.S3Client
    if cfg.Storage.Bucket != "" {
        s3cli, err = storage.NewS3Client(context.Background(), cfg.Storage.Bucket)
        if err != nil {
            log.Fatal().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("failed to init S3 client")
        }
    }

    // Provider client
    client, err := ai.NewClientFromConfig(cfg.Providers)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init provider client")
    }
    log.Info().Str("provider", client.Name()).Str("model", ai.DefaultModel(cfg.Providers)).Msg("provider ready")

    // HTTP API
    checker := statuscheck.New(statuscheck.Options{
        Redis:     rq,
        S3Bucket:  cfg.Storage.Bucket,
        GeminiKey: cfg.Providers.Gemini.APIKey,
        OpenAIKey: cfg.Providers.OpenAI.APIKey,
    })
    srv := server.New(server.Options{
        Queue:     rq,
        Status:    rs,
        Results:   results,
        Checker:   checker,
        UploadDir: os.Getenv("UPLOAD_DIR"),
    })
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    // Workers
    runDispatcher := os.Getenv("RUN_DISPATCHER")
    if runDispatcher == "" || runDispatcher == "1" || runDispatcher == "true" {
        ex := extract.New(client, cfg.OCR)
        pool := dispatcher.New(rq, rs, results, ex, fetch.NewResolver(s3cli), cfg.Worker.Concurrency, cfg.Worker.RequestTimeout)
        if cfg.Storage.UploadResults && s3cli != nil {
            pool = pool.WithUploader(s3cli)
        }
        pool.Start(context.Background())
        defer pool.Stop()
    }

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    httpSrv := &http.Server{Addr: ":" + port, Handler: mux}

    go func() {
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = httpSrv.Shutdown(ctx)
    log.Info().Msg("shutdown complete")
}
