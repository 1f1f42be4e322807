package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Upstream    UpstreamConfig
	Extractor   ExtractorConfig
	Transcriber TranscriberConfig
	RateLimit   RateLimitConfig
	Metrics     MetricsConfig
	Tracing     TracingConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Deadline over resolve+fetch+select; streaming is governed by the
	// request context instead.
	PipelineTimeout time.Duration
}

// RedisConfig holds Redis configuration for the manifest cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// UpstreamConfig holds source fetcher configuration
type UpstreamConfig struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	ManifestTTL   time.Duration
	ClientTimeout time.Duration
}

// ExtractorConfig holds media extraction configuration
type ExtractorConfig struct {
	FFmpegPath   string
	FFprobePath  string
	BufferSize   int
	AudioBitrate string
}

// TranscriberConfig holds transcription engine configuration
type TranscriberConfig struct {
	BaseURL          string
	APIKey           string
	Model            string
	RequestTimeout   time.Duration
	MaxAudioDuration time.Duration
	ChunkOverlap     time.Duration
	MaxConcurrent    int
	RequestsPerSec   float64
	Burst            int
	TempDir          string
}

// RateLimitConfig holds per-client API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSec int
	Burst          int
}

// MetricsConfig holds Prometheus metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "0s") // streaming responses
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.pipelineTimeout", "60s")

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Upstream defaults
	viper.SetDefault("upstream.maxAttempts", 3)
	viper.SetDefault("upstream.baseBackoff", "300ms")
	viper.SetDefault("upstream.manifestTTL", "5m")
	viper.SetDefault("upstream.clientTimeout", "30s")

	// Extractor defaults
	viper.SetDefault("extractor.ffmpegPath", "ffmpeg")
	viper.SetDefault("extractor.ffprobePath", "ffprobe")
	viper.SetDefault("extractor.bufferSize", 256*1024) // 256KB
	viper.SetDefault("extractor.audioBitrate", "192k")

	// Transcriber defaults
	viper.SetDefault("transcriber.baseURL", "https://api.openai.com/v1")
	viper.SetDefault("transcriber.apiKey", "")
	viper.SetDefault("transcriber.model", "whisper-1")
	viper.SetDefault("transcriber.requestTimeout", "120s")
	viper.SetDefault("transcriber.maxAudioDuration", "10m")
	viper.SetDefault("transcriber.chunkOverlap", "3s")
	viper.SetDefault("transcriber.maxConcurrent", 4)
	viper.SetDefault("transcriber.requestsPerSec", 2.0)
	viper.SetDefault("transcriber.burst", 4)
	viper.SetDefault("transcriber.tempDir", "/tmp/ytflow")

	// Rate limit defaults
	viper.SetDefault("ratelimit.requestsPerSec", 5)
	viper.SetDefault("ratelimit.burst", 10)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9091)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "ytflow-api")
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}
