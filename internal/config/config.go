// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	EmbeddingsModel string `env:"EMBEDDINGS_MODEL" envDefault:"text-embedding-3-small"`
	ChatModel       string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`

	BackendAPIURL string `env:"BACKEND_API_URL" envDefault:"http://localhost:3001/api"`
	BackendAPIKey string `env:"BACKEND_API_KEY"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CacheEnabled bool   `env:"CACHE_ENABLED" envDefault:"true"`
	EmbedCacheDir string `env:"EMBED_CACHE_DIR" envDefault:".cache"`

	UploadsRoot string `env:"UPLOADS_ROOT" envDefault:"./uploads"`

	// TextExtractorURL points at the external Apache Tika server used to
	// pull plain text out of uploaded resumes.
	TextExtractorURL     string        `env:"TEXT_EXTRACTOR_URL" envDefault:"http://localhost:9998"`
	TextExtractorTimeout time.Duration `env:"TEXT_EXTRACTOR_TIMEOUT" envDefault:"15s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"resumatch-worker"`

	AdminUsername      string `env:"ADMIN_USERNAME"`
	AdminPassword      string `env:"ADMIN_PASSWORD"`
	AdminSessionSecret string `env:"ADMIN_SESSION_SECRET"`

	MaxWorkers int `env:"MAX_WORKERS" envDefault:"16"`

	// Per-queue concurrency: the jd queue is strictly serial, resume
	// scoring fans out wide, ranking stays narrow to bound LLM batch load.
	JDConcurrency      int `env:"JD_CONCURRENCY" envDefault:"1"`
	ResumeConcurrency  int `env:"RESUME_CONCURRENCY" envDefault:"16"`
	RankingConcurrency int `env:"RANKING_CONCURRENCY" envDefault:"2"`

	ShutdownDrainTimeout time.Duration `env:"SHUTDOWN_DRAIN_TIMEOUT" envDefault:"30s"`

	// Retry configuration
	RetryMaxRetries   int           `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryMultiplier   float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RetryJitter       bool          `env:"RETRY_JITTER" envDefault:"true"`

	// DLQ configuration
	DLQMaxAge          time.Duration `env:"DLQ_MAX_AGE" envDefault:"168h"`
	DLQCleanupInterval time.Duration `env:"DLQ_CLEANUP_INTERVAL" envDefault:"24h"`

	// Circuit breaker: open after 5 consecutive failures, probe recovery
	// after 60s.
	CircuitBreakerFailureThreshold int           `env:"CIRCUIT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitBreakerRecoveryTimeout  time.Duration `env:"CIRCUIT_BREAKER_RECOVERY_TIMEOUT" envDefault:"60s"`

	// Outbound LLM throttling, requests per minute per model bucket. Zero
	// leaves the bucket unconfigured so the limiter fails open.
	ChatRequestsPerMinute  int `env:"CHAT_REQUESTS_PER_MINUTE" envDefault:"0"`
	EmbedRequestsPerMinute int `env:"EMBED_REQUESTS_PER_MINUTE" envDefault:"0"`

	// AI backoff configuration (embed_batch retries: base 1.4, max 5 attempts).
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"180s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"1s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.4"`
	EmbedMaxRetries          int           `env:"EMBED_MAX_RETRIES" envDefault:"5"`
	EmbedBatchSize           int           `env:"EMBED_BATCH_SIZE" envDefault:"128"`

	// ScoringWeightsPath optionally points at a YAML file overriding the
	// composite score's component weights (see config.LoadScoringWeights).
	// Empty means "use the built-in defaults".
	ScoringWeightsPath string `env:"SCORING_WEIGHTS_PATH" envDefault:""`
}

// AdminEnabled returns true if admin features should be enabled.
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != "" && c.AdminSessionSecret != ""
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff configuration appropriate for the
// current environment. In test environments it uses much shorter timeouts
// for fast test execution.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 5 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 1.4
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}

// RedisAddr returns the host:port address for the Redis connection.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
