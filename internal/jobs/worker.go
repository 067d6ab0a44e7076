package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/safehug/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker polls the queue and hands each message to a Processor.
type Worker struct {
	processor *Processor
	queue     Queue
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

func NewWorker(processor *Processor, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("jobs: processor cannot be nil")
	}
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{processor: processor, queue: queue, logger: logger, cfg: cfg}
}

func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("analysis worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("analysis worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive analysis jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			// failures are already recorded on the job; redelivery would
			// only repeat them
			_ = w.processor.Handle(ctx, msg.Body)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
		}
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete analysis job", "error", err)
	}
}
