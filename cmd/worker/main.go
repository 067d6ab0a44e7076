package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/safehug/cmd/mainconfig"
	appconfig "github.com/wolfman30/safehug/internal/config"
	"github.com/wolfman30/safehug/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.UseMemoryQueue {
		logger.Error("analysis worker needs ANALYSIS_QUEUE_URL; the memory queue only runs inside the API")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := mainconfig.NewApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	worker := app.Worker()
	worker.Start(ctx)
	logger.Info("analysis worker started", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down analysis worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("analysis worker stopped")
	case <-doneCtx.Done():
		logger.Error("analysis worker shutdown timed out", "error", doneCtx.Err())
	}
}
