package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/safehug/cmd/mainconfig"
	"github.com/wolfman30/safehug/internal/api/router"
	appconfig "github.com/wolfman30/safehug/internal/config"
	"github.com/wolfman30/safehug/internal/http/handlers"
	"github.com/wolfman30/safehug/internal/jobs"
	"github.com/wolfman30/safehug/pkg/logging"
)

const (
	uploadRatePerSecond  = 0.2
	uploadBurst          = 5
	chatbotRatePerSecond = 0.5
	chatbotBurst         = 10
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting safehug API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, registry := setupMetrics()
	app, err := mainconfig.NewApp(ctx, cfg, logger, registry)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	publisher := jobs.NewPublisher(app.Queue, app.Jobs, logger.Component("jobs"))

	// A memory queue only reaches consumers in this process.
	var worker *jobs.Worker
	if cfg.UseMemoryQueue {
		worker = app.Worker()
		worker.Start(ctx)
		logger.Info("in-process analysis worker started", "workers", cfg.WorkerCount)
	}
	if cfg.RetentionEnabled {
		go app.Cleaner().Run(ctx)
	}

	analysisHandler := handlers.NewAnalysisHandler(app.Service, publisher, app.Jobs, logger.Component("http"))
	var chatbotHandler *handlers.ChatbotHandler
	if bot := app.Chatbot(registry); bot != nil {
		chatbotHandler = handlers.NewChatbotHandler(bot, logger.Component("http"))
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Analysis:           analysisHandler,
		Chatbot:            chatbotHandler,
		MetricsHandler:     metricsHandler,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UploadRate:         uploadRatePerSecond,
		UploadBurst:        uploadBurst,
		ChatbotRate:        chatbotRatePerSecond,
		ChatbotBurst:       chatbotBurst,
	})

	// Create HTTP server; analyses wait on the classifier, so writes get a
	// generous timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ClassifierTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if worker != nil {
		worker.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns the /metrics handler and the registry analysis
// metrics register against.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}
