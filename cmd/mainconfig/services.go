package mainconfig

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/safehug/internal/analysis"
	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/internal/cache"
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/chatbot"
	"github.com/wolfman30/safehug/internal/classifier"
	appconfig "github.com/wolfman30/safehug/internal/config"
	"github.com/wolfman30/safehug/internal/evidence"
	"github.com/wolfman30/safehug/internal/jobs"
	"github.com/wolfman30/safehug/internal/llm"
	"github.com/wolfman30/safehug/internal/observability/metrics"
	"github.com/wolfman30/safehug/internal/retention"
	"github.com/wolfman30/safehug/internal/storage"
	"github.com/wolfman30/safehug/pkg/logging"
)

// App is the set of collaborators shared by the API, worker and lambda.
type App struct {
	Pool    *pgxpool.Pool
	AuditDB *sql.DB
	Redis   *redis.Client
	Store   *storage.Store
	Cache   *cache.ReportCache
	Audit   *audit.Service
	Metrics *metrics.AnalysisMetrics
	Service *analysis.Service
	LLM     llm.Client
	Queue   jobs.Queue
	Jobs    jobs.Store
	AWS     aws.Config
	closers []func()
	logger  *logging.Logger
	cfg     *appconfig.Config
}

// ConnectPostgresPool returns nil when databaseURL is empty or unreachable.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// ConnectRedis returns nil when addr is empty or the server does not answer.
func ConnectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, report cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// NewLLMClient prefers Bedrock and falls back to Gemini. It returns nil
// when neither is configured.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, func()) {
	var primary, fallback llm.Client
	closeFn := func() {}
	if cfg.BedrockModelID != "" {
		primary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client disabled", "error", err)
		} else {
			fallback = gemini
			closeFn = func() { _ = gemini.Close() }
		}
	}

	switch {
	case primary != nil && fallback != nil:
		return llm.NewFallbackClient(primary, fallback, logger.Component("llm")), closeFn
	case primary != nil:
		return primary, closeFn
	case fallback != nil:
		return fallback, closeFn
	default:
		logger.Warn("no LLM configured, summaries use the fallback text and the chatbot is off")
		return nil, closeFn
	}
}

// NewApp connects every backing service and assembles the analysis service.
func NewApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*App, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	app := &App{AWS: awsCfg, logger: logger, cfg: cfg}

	app.Pool = ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if app.Pool == nil {
		return nil, errors.New("postgres unavailable")
	}
	app.closers = append(app.closers, app.Pool.Close)

	app.AuditDB, err = sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	app.closers = append(app.closers, func() { _ = app.AuditDB.Close() })
	app.Audit = audit.NewService(app.AuditDB)

	app.Redis = ConnectRedis(ctx, cfg, logger)
	if app.Redis != nil {
		app.closers = append(app.closers, func() { _ = app.Redis.Close() })
		app.Cache = cache.NewReportCache(app.Redis, cfg.ReportCacheTTL)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	app.Store = storage.NewStore(s3Client, cfg.TranscriptBucket, cfg.ReportArchivePrefix, logger.Component("storage"))

	app.Metrics = metrics.NewAnalysisMetrics(reg)

	var closeLLM func()
	app.LLM, closeLLM = NewLLMClient(ctx, cfg, awsCfg, logger)
	app.closers = append(app.closers, closeLLM)

	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Subject:  cfg.SubjectSender,
		Location: cfg.Location(),
		Logger:   logger.Component("analysis"),
		OnSkipped: func(format chat.Format, skipped int) {
			app.Metrics.ObserveSkippedLines(string(format), skipped)
		},
	})

	deps := analysis.Deps{
		Store: app.Store,
		Classifier: classifier.NewClient(cfg.ClassifierURL, cfg.TranscriptBucket,
			classifier.WithTimeout(cfg.ClassifierTimeout),
			classifier.WithLogger(logger.Component("classifier")),
		),
		Repository: evidence.NewRepository(app.Pool),
		Audit:      app.Audit,
		Metrics:    app.Metrics,
		Analyzer:   analyzer,
		Logger:     logger,
	}
	if app.LLM != nil {
		deps.Summarizer = llm.NewSummarizer(app.LLM, "", cfg.SummaryMaxTokens)
	}
	if app.Cache != nil {
		deps.Cache = app.Cache
	}
	app.Service = analysis.NewService(deps)

	if cfg.UseMemoryQueue {
		app.Queue = jobs.NewMemoryQueue(64)
		app.Jobs = jobs.NewMemoryStore()
	} else {
		app.Queue = jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AnalysisQueueURL)
		app.Jobs = jobs.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.AnalysisJobsTable, logger.Component("jobs"))
	}

	return app, nil
}

// Worker builds a queue consumer that runs analyses through the service.
func (a *App) Worker() *jobs.Worker {
	processor := jobs.NewProcessor(a.Service, a.Jobs, a.logger.Component("jobs"))
	return jobs.NewWorker(processor, a.Queue, a.logger.Component("worker"),
		jobs.WithWorkerCount(a.cfg.WorkerCount),
	)
}

// Chatbot builds the counselling chatbot, or returns nil without an LLM.
func (a *App) Chatbot(reg prometheus.Registerer) *chatbot.Service {
	if a.LLM == nil {
		return nil
	}
	return chatbot.NewService(a.LLM, chatbot.NewPostgresLog(a.Pool), metrics.NewChatbotMetrics(reg), a.logger.Component("chatbot"))
}

// Cleaner builds the anonymous-upload purger.
func (a *App) Cleaner() *retention.Cleaner {
	return retention.NewCleaner(a.Pool, a.Cache, a.Store, a.Audit, retention.Config{
		AnonymousAge: a.cfg.RetentionAnonymousAge,
		Interval:     a.cfg.RetentionInterval,
	}, a.logger.Component("retention"))
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
