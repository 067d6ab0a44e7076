package jobs

import (
	"context"
	"fmt"

	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/pkg/logging"
)

// Analyzer runs one analysis for a stored upload.
type Analyzer interface {
	Analyze(ctx context.Context, uploadID, userID string) (*report.AnalysisView, error)
}

// Processor handles a single queue body. The worker pool and the Lambda
// entry point share it.
type Processor struct {
	analyzer Analyzer
	jobs     Updater
	logger   *logging.Logger
}

// NewProcessor builds a processor. jobs may be nil when status is not tracked.
func NewProcessor(analyzer Analyzer, jobs Updater, logger *logging.Logger) *Processor {
	if analyzer == nil {
		panic("jobs: analyzer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{analyzer: analyzer, jobs: jobs, logger: logger}
}

// Handle decodes and runs one job. Analysis failures are recorded on the
// job and returned.
func (p *Processor) Handle(ctx context.Context, body string) error {
	payload, err := DecodePayload(body)
	if err != nil {
		p.logger.Error("failed to decode analysis job", "error", err)
		return err
	}
	track := payload.TrackStatus && p.jobs != nil

	p.logger.Info("processing analysis job", "job_id", payload.ID, "upload_id", payload.UploadID)
	view, err := p.analyzer.Analyze(ctx, payload.UploadID, payload.UserID)
	if err != nil {
		p.logger.Error("analysis job failed", "error", err, "job_id", payload.ID, "upload_id", payload.UploadID)
		if track {
			if storeErr := p.jobs.MarkFailed(ctx, payload.ID, err.Error()); storeErr != nil {
				p.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
			}
		}
		return fmt.Errorf("jobs: analyze upload %s: %w", payload.UploadID, err)
	}

	if track {
		if storeErr := p.jobs.MarkCompleted(ctx, payload.ID, view.ID); storeErr != nil {
			p.logger.Error("failed to update job status", "error", storeErr, "job_id", payload.ID)
		}
	}
	p.logger.Info("analysis job completed", "job_id", payload.ID, "analysis_id", view.ID, "room_risk", view.RoomRiskLevel)
	return nil
}
