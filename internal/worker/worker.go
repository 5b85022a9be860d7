package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/medical-appointments/internal/batch"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 10
	defaultBatchSize     = 10
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// Option customizes worker behavior.
type Option func(*workerConfig)

// WithWorkerCount sets the number of concurrent polling goroutines.
func WithWorkerCount(count int) Option {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) Option {
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
func WithReceiveBatchSize(size int) Option {
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

// Worker polls a queue and runs every received batch through a coordinator.
// Messages that succeeded or were rejected operationally are deleted;
// critical failures stay on the queue and are redelivered after the
// visibility timeout.
type Worker struct {
	queue       Queue
	coordinator *batch.Coordinator
	logger      *logging.Logger
	cfg         workerConfig
	wg          sync.WaitGroup
}

// New creates a worker.
func New(queue Queue, coordinator *batch.Coordinator, logger *logging.Logger, opts ...Option) *Worker {
	if queue == nil {
		panic("worker: queue cannot be nil")
	}
	if coordinator == nil {
		panic("worker: coordinator cannot be nil")
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
	return &Worker{queue: queue, coordinator: coordinator, logger: logger, cfg: cfg}
}

// Start launches the polling goroutines. They stop when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until every polling goroutine returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("queue worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("queue worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive messages", "error", err, "worker_id", workerID)
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

		if len(messages) > 0 {
			w.HandleBatch(ctx, messages)
		}
	}
}

// HandleBatch processes one received batch and acknowledges what should not
// be retried.
func (w *Worker) HandleBatch(ctx context.Context, messages []Message) batch.Result {
	msgs := make([]batch.Message, len(messages))
	for i, m := range messages {
		msgs[i] = batch.Message{ID: m.ID, Body: m.Body, Attributes: m.Attributes}
	}
	res := w.coordinator.Process(ctx, msgs)

	retry := make(map[string]struct{}, len(res.Failures))
	for _, id := range res.RetryableIDs() {
		retry[id] = struct{}{}
	}
	for _, m := range messages {
		if _, ok := retry[m.ID]; ok {
			continue
		}
		w.deleteMessage(ctx, m)
	}
	return res
}

func (w *Worker) deleteMessage(ctx context.Context, msg Message) {
	if msg.ReceiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete message", "error", err, "message_id", msg.ID)
	}
}
