package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// GeminiConfig selects the hosted vision model and its endpoint.
// When APIKey is set the Google AI endpoint is used; otherwise the Vertex
// endpoint is addressed with Project/Location and a bearer token.
type GeminiConfig struct {
    Project     string
    Location    string
    Model       string
    APIKey      string
    AccessToken string
}

// OpenAIConfig selects the secondary vision provider.
type OpenAIConfig struct {
    Model  string
    APIKey string
}

// ProvidersConfig defines the vision-LLM engines.
type ProvidersConfig struct {
    Engine  string // "gemini"|"openai"|"mock"
    UseMock bool
    Gemini  GeminiConfig
    OpenAI  OpenAIConfig
}

// OCRConfig defines the local Tesseract engine settings.
type OCRConfig struct {
    Languages  []string // e.g. ["fra"] or ["fra","eng"]
    PSM        int
    DPIHint    int
    Preprocess bool // clean up page images before recognition
}

// RasterConfig defines page rendering settings.
type RasterConfig struct {
    DPI       int
    Format    string // "png"|"jpeg"
    Quality   int    // jpeg only
    ColorMode string // "rgb"|"gray"
}

// WorkerConfig defines service-mode worker behavior.
type WorkerConfig struct {
    Concurrency    int
    RequestTimeout time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// StorageConfig defines S3 connectivity for remote documents and results.
type StorageConfig struct {
    Bucket        string
    UploadResults bool
}

// Config is the top-level configuration.
type Config struct {
    Logging   LoggingConfig
    Axiom     AxiomConfig
    Providers ProvidersConfig
    OCR       OCRConfig
    Raster    RasterConfig
    Worker    WorkerConfig
    Queue     QueueConfig
    Storage   StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/docextract.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_docextract",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Providers defaults
    cfg.Providers = ProvidersConfig{
        Engine:  strings.ToLower(getEnv("VISION_ENGINE", "gemini")),
        UseMock: parseBool(getEnv("VISION_USE_MOCK", "0")),
        Gemini: GeminiConfig{
            Project:     getEnv("GOOGLE_CLOUD_PROJECT", ""),
            Location:    getEnv("GOOGLE_CLOUD_LOCATION", "europe-west1"),
            Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
            APIKey:      getEnv("GOOGLE_API_KEY", ""),
            AccessToken: getEnv("GOOGLE_ACCESS_TOKEN", ""),
        },
        OpenAI: OpenAIConfig{
            Model:  getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
            APIKey: getEnv("OPENAI_API_KEY", ""),
        },
    }

    // OCR defaults
    cfg.OCR = OCRConfig{
        Languages:  splitLangs(getEnv("OCR_LANGUAGES", "fra")),
        PSM:        parseInt(getEnv("OCR_PSM", "6"), 6),
        DPIHint:    parseInt(getEnv("OCR_DPI_HINT", "0"), 0),
        Preprocess: parseBool(getEnv("OCR_PREPROCESS", "1")),
    }

    // Raster defaults
    cfg.Raster = RasterConfig{
        DPI:       parseInt(getEnv("RASTER_DPI", "150"), 150),
        Format:    strings.ToLower(getEnv("RASTER_FORMAT", "png")),
        Quality:   parseInt(getEnv("RASTER_JPEG_QUALITY", "85"), 85),
        ColorMode: strings.ToLower(getEnv("RASTER_COLOR_MODE", "rgb")),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency:    parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
        RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "120s"), 120*time.Second),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:extract:docs"),
        Group:        getEnv("QUEUE_GROUP", "workers:extract"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
    }

    // Storage defaults
    cfg.Storage = StorageConfig{
        Bucket:        getEnv("AWS_S3_BUCKET", ""),
        UploadResults: parseBool(getEnv("UPLOAD_RESULTS_TO_S3", "0")),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

// splitLangs accepts "fra", "fra+eng" or "fra,eng".
func splitLangs(s string) []string {
    s = strings.ReplaceAll(s, "+", ",")
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    if len(out) == 0 { out = []string{"fra"} }
    return out
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
