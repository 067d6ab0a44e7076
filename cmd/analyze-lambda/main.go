package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/safehug/cmd/mainconfig"
	appconfig "github.com/wolfman30/safehug/internal/config"
	"github.com/wolfman30/safehug/internal/jobs"
	"github.com/wolfman30/safehug/pkg/logging"
)

type messageHandler interface {
	Handle(ctx context.Context, body string) error
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app, err := mainconfig.NewApp(context.Background(), cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	processor := jobs.NewProcessor(app.Service, app.Jobs, logger.Component("jobs"))
	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, processor, logger, evt), nil
	})
}

// handle runs each record and reports the ones worth retrying. Malformed
// payloads never succeed, so they are dropped instead.
func handle(ctx context.Context, h messageHandler, logger *logging.Logger, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		err := h.Handle(ctx, record.Body)
		if err == nil {
			continue
		}
		if errors.Is(err, jobs.ErrMalformedPayload) {
			logger.Error("dropping malformed analysis message", "message_id", record.MessageId, "error", err)
			continue
		}
		logger.Warn("analysis message failed", "message_id", record.MessageId, "error", err)
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return resp
}
