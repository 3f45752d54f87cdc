package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"row-analyzer/internal/analysis"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	QueueURL        string

	ClassifierURL          string
	ClassifierMessageField string

	AnalysisConcurrency      int
	AnalysisStagger          time.Duration
	AnalysisMaxRetries       int
	AnalysisRetryBase        time.Duration
	AnalysisAttemptTimeout   time.Duration
	AnalysisConfidenceAdjust bool
	AnalysisMaxRows          int

	APIKeys         []string
	RateLimitPerMin int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	classifierURL := strings.TrimSpace(os.Getenv("CLASSIFIER_URL"))
	if classifierURL == "" {
		log.Printf("CLASSIFIER_URL is not set; rows will resolve as errors")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		QueueURL:        getEnv("RA_SQS_QUEUE_URL", ""),

		ClassifierURL:          classifierURL,
		ClassifierMessageField: getEnv("CLASSIFIER_MESSAGE_FIELD", "message"),

		AnalysisConcurrency:      getInt("ANALYSIS_CONCURRENCY", analysis.DefaultConcurrencyLimit),
		AnalysisStagger:          getMillis("ANALYSIS_STAGGER_MS", analysis.DefaultStaggerInterval),
		AnalysisMaxRetries:       getInt("ANALYSIS_MAX_RETRIES", analysis.DefaultMaxRetries),
		AnalysisRetryBase:        getSeconds("ANALYSIS_RETRY_BASE_SECONDS", analysis.DefaultRetryBaseDelay),
		AnalysisAttemptTimeout:   getSeconds("ANALYSIS_ATTEMPT_TIMEOUT_SECONDS", analysis.DefaultAttemptTimeout),
		AnalysisConfidenceAdjust: getBool("ANALYSIS_CONFIDENCE_ADJUST", true),
		AnalysisMaxRows:          getInt("ANALYSIS_MAX_ROWS", 1000),

		APIKeys:         splitAndTrim(getEnv("API_KEYS", "")),
		RateLimitPerMin: getInt("RATE_LIMIT_PER_MIN", 30),
	}
}

// AnalysisConfig converts the analysis settings for the orchestrator.
func (c Config) AnalysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.ConcurrencyLimit = c.AnalysisConcurrency
	cfg.StaggerInterval = c.AnalysisStagger
	cfg.MaxRetries = c.AnalysisMaxRetries
	cfg.RetryBaseDelay = c.AnalysisRetryBase
	cfg.AttemptTimeout = c.AnalysisAttemptTimeout
	cfg.ConfidenceAdjust = c.AnalysisConfidenceAdjust
	return cfg
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return b
}

func getMillis(key string, def time.Duration) time.Duration {
	n := getInt(key, int(def/time.Millisecond))
	return time.Duration(n) * time.Millisecond
}

func getSeconds(key string, def time.Duration) time.Duration {
	n := getInt(key, int(def/time.Second))
	return time.Duration(n) * time.Second
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
