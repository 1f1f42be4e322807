package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Download Metrics
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytflow_downloads_total",
			Help: "Total number of download extractions started",
		},
		[]string{"format"},
	)

	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytflow_download_bytes_total",
			Help: "Total bytes streamed to download clients",
		},
	)

	// Manifest Metrics
	ManifestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytflow_manifest_fetches_total",
			Help: "Manifest lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	UpstreamRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytflow_upstream_retries_total",
			Help: "Total number of upstream fetch retries",
		},
	)

	// Transcription Metrics
	TranscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytflow_transcriptions_total",
			Help: "Total number of transcriptions by outcome",
		},
		[]string{"status"},
	)

	TranscriptionChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ytflow_transcription_chunks_total",
			Help: "Total number of audio chunks sent to the provider",
		},
	)

	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytflow_provider_calls_total",
			Help: "Speech-to-text provider calls by outcome",
		},
		[]string{"status"},
	)
)

// Middleware records request counts and latency per endpoint.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		c.Next()

		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(
			c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
