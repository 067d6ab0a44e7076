package jobs

import (
	"context"
	"fmt"

	"github.com/wolfman30/safehug/pkg/logging"
)

// Publisher enqueues analysis jobs, recording a pending status first
// when tracking is on.
type Publisher struct {
	queue  Queue
	jobs   Recorder
	logger *logging.Logger
}

func NewPublisher(queue Queue, jobs Recorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// Enqueue publishes an analysis request and returns its job id.
func (p *Publisher) Enqueue(ctx context.Context, uploadID, userID string, opts ...PublishOption) (string, error) {
	payload := Payload{UploadID: uploadID, UserID: userID, TrackStatus: p.jobs != nil}
	for _, opt := range opts {
		opt(&payload)
	}
	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	if payload.TrackStatus {
		if err := p.jobs.PutPending(ctx, &Record{JobID: payload.ID, UploadID: uploadID, UserID: userID}); err != nil {
			return "", err
		}
	}
	if err := p.queue.Send(ctx, body); err != nil {
		if payload.TrackStatus {
			if u, ok := p.jobs.(Updater); ok {
				_ = u.MarkFailed(ctx, payload.ID, "enqueue failed")
			}
		}
		return "", fmt.Errorf("jobs: failed to enqueue job: %w", err)
	}

	p.logger.Debug("analysis job enqueued", "job_id", payload.ID, "upload_id", uploadID)
	return payload.ID, nil
}
