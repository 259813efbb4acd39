package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    providerReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docextract",
            Name:      "provider_requests_total",
            Help:      "Total vision-LLM requests by provider, model and result",
        },
        []string{"provider", "model", "result"},
    )

    providerLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "docextract",
            Name:      "provider_request_duration_seconds",
            Help:      "Duration of vision-LLM requests by provider and model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"provider", "model"},
    )

    pagesRendered = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "docextract",
            Name:      "pages_rendered_total",
            Help:      "Total PDF pages rasterized to images",
        },
    )

    ocrDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "docextract",
            Name:      "ocr_duration_seconds",
            Help:      "Duration of local OCR per image",
            Buckets:   prometheus.DefBuckets,
        },
    )

    jobsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docextract",
            Name:      "jobs_processed_total",
            Help:      "Extraction jobs processed by result (success, failed, cancelled)",
        },
        []string{"result"},
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "docextract",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream, delayed and dlq",
        },
        []string{"type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(providerReqs, providerLatency, pagesRendered, ocrDuration, jobsProcessed, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, model, result string, dur time.Duration) {
    providerReqs.WithLabelValues(provider, model, result).Inc()
    providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func AddPagesRendered(n int) { pagesRendered.Add(float64(n)) }

func ObserveOCR(dur time.Duration) { ocrDuration.Observe(dur.Seconds()) }

func IncJob(result string) { jobsProcessed.WithLabelValues(result).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
