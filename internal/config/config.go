package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	APIMaxConnections      int
	APIRateLimitRPS        float64
	APIRateLimitBurst      int
	APIMaxInFlight         int
	APIBackpressureWaitMS  int
	APIMaxRequestBodyBytes int64

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	ReasoningProvider string
	AnthropicAPIKey   string
	AnthropicModel    string

	EmbeddingDimension int
	EmbeddingBatchSize int

	SegmentBreakpointPercentile float64
	SegmentBufferSize           int

	ClusterTopK                int
	ClusterSimilarityThreshold float64
	ClusterUseReranker         bool
	ClusterMaxRerankCandidates int
	ClusterRerankMinScore      float64

	WorkerPoolSize  int
	AnalysisTimeout time.Duration
	DirectMaxChars  int

	ValidationMinScore        float64
	ValidationRequireVerbatim bool
	ValidationReviewBelow     float64

	ResilienceRetryMaxAttempts int
	ResilienceBreakerEnabled   bool

	WorkerMetricsPort string
}

// Detection holds the tunables a CONFIG_FILE may set. Unset keys keep their
// defaults; environment variables still win.
type Detection struct {
	EmbeddingDimension          *int     `yaml:"embedding_dimension"`
	EmbeddingBatchSize          *int     `yaml:"embedding_batch_size"`
	SegmentBreakpointPercentile *float64 `yaml:"segment_breakpoint_percentile"`
	SegmentBufferSize           *int     `yaml:"segment_buffer_size"`
	ClusterTopK                 *int     `yaml:"cluster_top_k"`
	ClusterSimilarityThreshold  *float64 `yaml:"cluster_similarity_threshold"`
	ClusterUseReranker          *bool    `yaml:"cluster_use_reranker"`
	ClusterMaxRerankCandidates  *int     `yaml:"cluster_max_rerank_candidates"`
	ClusterRerankMinScore       *float64 `yaml:"cluster_rerank_min_score"`
	WorkerPoolSize              *int     `yaml:"worker_pool_size"`
	AnalysisTimeoutSeconds      *int     `yaml:"analysis_timeout_seconds"`
	DirectMaxChars              *int     `yaml:"direct_max_chars"`
	ValidationMinScore          *float64 `yaml:"validation_min_score"`
	ValidationRequireVerbatim   *bool    `yaml:"validation_require_verbatim"`
	ValidationReviewBelow       *float64 `yaml:"validation_review_below"`
}

func Defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		APIMaxConnections:      256,
		APIMaxInFlight:         8,
		APIBackpressureWaitMS:  200,
		APIMaxRequestBodyBytes: 64 << 20,

		NATSURL:     "nats://localhost:4222",
		NATSSubject: "duplicates.analyze",

		OllamaURL:        "http://localhost:11434",
		OllamaGenModel:   "llama3.1:8b",
		OllamaEmbedModel: "bge-m3",

		ReasoningProvider: "ollama",
		AnthropicModel:    "claude-3-5-haiku-20241022",

		EmbeddingDimension: 1024,
		EmbeddingBatchSize: 10,

		SegmentBreakpointPercentile: 95,
		SegmentBufferSize:           1,

		ClusterTopK:                5,
		ClusterSimilarityThreshold: 0.85,
		ClusterUseReranker:         true,
		ClusterMaxRerankCandidates: 20,
		ClusterRerankMinScore:      0.3,

		WorkerPoolSize:  4,
		AnalysisTimeout: 300 * time.Second,
		DirectMaxChars:  6000,

		ValidationMinScore:        0.5,
		ValidationRequireVerbatim: true,

		ResilienceRetryMaxAttempts: 2,
		ResilienceBreakerEnabled:   true,

		WorkerMetricsPort: "9090",
	}
}

func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var detection Detection
		if err := yaml.Unmarshal(raw, &detection); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.apply(detection)
	}

	cfg.APIPort = mustEnv("API_PORT", cfg.APIPort)
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.APIMaxConnections = mustEnvInt("API_MAX_CONNECTIONS", cfg.APIMaxConnections)
	cfg.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight)
	cfg.APIBackpressureWaitMS = mustEnvInt("API_BACKPRESSURE_WAIT_MS", cfg.APIBackpressureWaitMS)
	cfg.APIMaxRequestBodyBytes = int64(mustEnvInt("API_MAX_REQUEST_BODY_BYTES", int(cfg.APIMaxRequestBodyBytes)))

	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = mustEnv("NATS_SUBJECT", cfg.NATSSubject)

	cfg.OllamaURL = mustEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", cfg.OllamaGenModel)
	cfg.OllamaEmbedModel = mustEnv("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)

	cfg.ReasoningProvider = strings.ToLower(mustEnv("REASONING_PROVIDER", cfg.ReasoningProvider))
	cfg.AnthropicAPIKey = mustEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = mustEnv("ANTHROPIC_MODEL", cfg.AnthropicModel)

	cfg.EmbeddingDimension = mustEnvInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.EmbeddingBatchSize = mustEnvInt("EMBEDDING_BATCH_SIZE", cfg.EmbeddingBatchSize)

	cfg.SegmentBreakpointPercentile = mustEnvFloat("SEGMENT_BREAKPOINT_PERCENTILE", cfg.SegmentBreakpointPercentile)
	cfg.SegmentBufferSize = mustEnvInt("SEGMENT_BUFFER_SIZE", cfg.SegmentBufferSize)

	cfg.ClusterTopK = mustEnvInt("CLUSTER_TOP_K", cfg.ClusterTopK)
	cfg.ClusterSimilarityThreshold = mustEnvFloat("CLUSTER_SIMILARITY_THRESHOLD", cfg.ClusterSimilarityThreshold)
	cfg.ClusterUseReranker = mustEnvBool("CLUSTER_USE_RERANKER", cfg.ClusterUseReranker)
	cfg.ClusterMaxRerankCandidates = mustEnvInt("CLUSTER_MAX_RERANK_CANDIDATES", cfg.ClusterMaxRerankCandidates)
	cfg.ClusterRerankMinScore = mustEnvFloat("CLUSTER_RERANK_MIN_SCORE", cfg.ClusterRerankMinScore)

	cfg.WorkerPoolSize = mustEnvInt("WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	cfg.AnalysisTimeout = mustEnvDuration("ANALYSIS_TIMEOUT_SECONDS", cfg.AnalysisTimeout)
	cfg.DirectMaxChars = mustEnvInt("DIRECT_MAX_CHARS", cfg.DirectMaxChars)

	cfg.ValidationMinScore = mustEnvFloat("VALIDATION_MIN_SCORE", cfg.ValidationMinScore)
	cfg.ValidationRequireVerbatim = mustEnvBool("VALIDATION_REQUIRE_VERBATIM", cfg.ValidationRequireVerbatim)
	cfg.ValidationReviewBelow = mustEnvFloat("VALIDATION_REVIEW_BELOW", cfg.ValidationReviewBelow)

	cfg.ResilienceRetryMaxAttempts = mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", cfg.ResilienceRetryMaxAttempts)
	cfg.ResilienceBreakerEnabled = mustEnvBool("RESILIENCE_BREAKER_ENABLED", cfg.ResilienceBreakerEnabled)

	cfg.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort)

	switch cfg.ReasoningProvider {
	case "ollama", "anthropic":
	default:
		return Config{}, fmt.Errorf("unsupported REASONING_PROVIDER %q", cfg.ReasoningProvider)
	}
	return cfg, nil
}

func (c *Config) apply(d Detection) {
	setInt(&c.EmbeddingDimension, d.EmbeddingDimension)
	setInt(&c.EmbeddingBatchSize, d.EmbeddingBatchSize)
	setFloat(&c.SegmentBreakpointPercentile, d.SegmentBreakpointPercentile)
	setInt(&c.SegmentBufferSize, d.SegmentBufferSize)
	setInt(&c.ClusterTopK, d.ClusterTopK)
	setFloat(&c.ClusterSimilarityThreshold, d.ClusterSimilarityThreshold)
	setBool(&c.ClusterUseReranker, d.ClusterUseReranker)
	setInt(&c.ClusterMaxRerankCandidates, d.ClusterMaxRerankCandidates)
	setFloat(&c.ClusterRerankMinScore, d.ClusterRerankMinScore)
	setInt(&c.WorkerPoolSize, d.WorkerPoolSize)
	if d.AnalysisTimeoutSeconds != nil {
		c.AnalysisTimeout = time.Duration(*d.AnalysisTimeoutSeconds) * time.Second
	}
	setInt(&c.DirectMaxChars, d.DirectMaxChars)
	setFloat(&c.ValidationMinScore, d.ValidationMinScore)
	setBool(&c.ValidationRequireVerbatim, d.ValidationRequireVerbatim)
	setFloat(&c.ValidationReviewBelow, d.ValidationReviewBelow)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration reads a whole number of seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
