package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	UseMemoryQueue bool
	WorkerCount    int

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	ReportCacheTTL time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	TranscriptBucket    string
	ReportArchivePrefix string
	AnalysisQueueURL    string
	AnalysisJobsTable   string

	ClassifierURL     string
	ClassifierTimeout time.Duration

	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	SummaryMaxTokens int

	// SubjectSender is the sender whose rejections escalate the prior message.
	// Empty disables escalation.
	SubjectSender      string
	TranscriptTimezone string

	JWTSecret          string
	CORSAllowedOrigins []string

	RetentionEnabled      bool
	RetentionAnonymousAge time.Duration
	RetentionInterval     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		ReportCacheTTL: getEnvAsDuration("REPORT_CACHE_TTL", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "ap-northeast-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TranscriptBucket:    getEnv("TRANSCRIPT_BUCKET", ""),
		ReportArchivePrefix: getEnv("REPORT_ARCHIVE_PREFIX", "reports/v1"),
		AnalysisQueueURL:    getEnv("ANALYSIS_QUEUE_URL", ""),
		AnalysisJobsTable:   getEnv("ANALYSIS_JOBS_TABLE", "analysis_jobs"),

		ClassifierURL:     strings.TrimRight(getEnv("CLASSIFIER_URL", ""), "/"),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 2*time.Minute),

		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.0-flash"),
		SummaryMaxTokens: getEnvAsInt("SUMMARY_MAX_TOKENS", 512),

		SubjectSender:      getSubject(),
		TranscriptTimezone: getEnv("TRANSCRIPT_TIMEZONE", "Asia/Seoul"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		RetentionEnabled:      getEnvAsBool("RETENTION_ENABLED", true),
		RetentionAnonymousAge: getEnvAsDuration("RETENTION_ANONYMOUS_AGE", time.Hour),
		RetentionInterval:     getEnvAsDuration("RETENTION_INTERVAL", 30*time.Minute),
	}
}

// Location resolves TranscriptTimezone, falling back to a fixed UTC+9 zone
// when the tz database is unavailable.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.TranscriptTimezone); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// ValidateAPI reports settings the HTTP server cannot run without.
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.TranscriptBucket == "" {
		errs = append(errs, errors.New("TRANSCRIPT_BUCKET is required"))
	}
	if c.Env == "production" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if !c.UseMemoryQueue && c.AnalysisQueueURL == "" {
		errs = append(errs, errors.New("ANALYSIS_QUEUE_URL is required unless USE_MEMORY_QUEUE=true"))
	}
	return wrap(errs)
}

// ValidateWorker reports settings the analysis worker cannot run without.
func (c *Config) ValidateWorker() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ClassifierURL == "" {
		errs = append(errs, errors.New("CLASSIFIER_URL is required"))
	}
	if c.TranscriptBucket == "" {
		errs = append(errs, errors.New("TRANSCRIPT_BUCKET is required"))
	}
	return wrap(errs)
}

func wrap(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getSubject defaults to 윤정; SUBJECT_SENDER=- turns escalation off.
func getSubject() string {
	value, ok := os.LookupEnv("SUBJECT_SENDER")
	switch {
	case !ok || strings.TrimSpace(value) == "":
		return "윤정"
	case strings.TrimSpace(value) == "-":
		return ""
	default:
		return strings.TrimSpace(value)
	}
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
