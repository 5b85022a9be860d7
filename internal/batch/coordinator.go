// Package batch fans a batch of queue messages out to a handler, waits for
// every one of them, and reports which failed and whether a retry could help.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/archive"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// Message is a transport-neutral queue record.
type Message struct {
	ID         string
	Body       string
	Attributes map[string]string
}

// Handler processes one message. The logger already carries the message id.
type Handler func(ctx context.Context, msg Message, logger *logging.Logger) error

// Archiver stores messages rejected with an operational error.
type Archiver interface {
	ArchiveRejected(ctx context.Context, msg archive.RejectedMessage) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds the number of handlers running at once. Zero or
// negative means one goroutine per message.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.limit = n
	}
}

// WithMetrics records per-record and per-batch outcomes.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithRejectArchive keeps a copy of every operationally rejected message.
func WithRejectArchive(a Archiver) Option {
	return func(c *Coordinator) {
		c.archive = a
	}
}

// Coordinator runs a handler over every message of a batch.
type Coordinator struct {
	source  string
	handler Handler
	logger  *logging.Logger
	limit   int
	metrics *metrics.PipelineMetrics
	archive Archiver
}

// New creates a coordinator. source names the pipeline stage in logs and
// metrics, e.g. "processor-PE".
func New(source string, handler Handler, logger *logging.Logger, opts ...Option) *Coordinator {
	if handler == nil {
		panic("batch: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Coordinator{
		source:  source,
		handler: handler,
		logger:  logger.With("source", source),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Failure describes one message that did not process.
type Failure struct {
	MessageID string
	Err       error
	Critical  bool
}

// Result summarizes a batch run.
type Result struct {
	Total     int
	Succeeded int
	Failures  []Failure
}

// Err returns a *BatchError when any message failed.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &BatchError{Failed: len(r.Failures), Total: r.Total}
}

// RetryableIDs lists the ids of messages whose failure was critical.
func (r Result) RetryableIDs() []string {
	var ids []string
	for _, f := range r.Failures {
		if f.Critical {
			ids = append(ids, f.MessageID)
		}
	}
	return ids
}

// BatchError is the aggregate failure of a batch.
type BatchError struct {
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch processing failed: %d/%d records failed", e.Failed, e.Total)
}

// Process runs the handler for every message and waits for all of them. One
// failure never stops the others. Failures are reported in input order.
func (c *Coordinator) Process(ctx context.Context, msgs []Message) Result {
	errs := make([]error, len(msgs))

	var g errgroup.Group
	if c.limit > 0 {
		g.SetLimit(c.limit)
	}
	for i, msg := range msgs {
		g.Go(func() error {
			errs[i] = c.run(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Total: len(msgs)}
	for i, err := range errs {
		if err == nil {
			res.Succeeded++
			continue
		}
		res.Failures = append(res.Failures, Failure{
			MessageID: msgs[i].ID,
			Err:       err,
			Critical:  !apperr.IsOperational(err),
		})
	}

	c.metrics.ObserveBatch(c.source, len(res.Failures) > 0)
	if len(res.Failures) > 0 {
		c.logger.Error("batch completed with failures",
			"total", res.Total,
			"succeeded", res.Succeeded,
			"failed", len(res.Failures),
			"retryable", len(res.RetryableIDs()),
		)
	} else {
		c.logger.Info("batch completed", "total", res.Total)
	}
	return res
}

func (c *Coordinator) run(ctx context.Context, msg Message) (err error) {
	logger := c.logger.With("message_id", msg.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = apperr.Internal("handler panicked", fmt.Errorf("panic: %v", r))
		}
		c.finish(ctx, msg, logger, err, time.Since(start))
	}()

	return c.handler(ctx, msg, logger)
}

func (c *Coordinator) finish(ctx context.Context, msg Message, logger *logging.Logger, err error, elapsed time.Duration) {
	if err == nil {
		c.metrics.ObserveRecord(c.source, metrics.OutcomeSuccess, elapsed)
		logger.Debug("record processed", "duration_ms", elapsed.Milliseconds())
		return
	}

	appErr, _ := apperr.As(err)
	code := apperr.CodeInternal
	if appErr != nil {
		code = appErr.Code
	}

	if !apperr.IsOperational(err) {
		c.metrics.ObserveRecord(c.source, metrics.OutcomeCritical, elapsed)
		logger.Error("record failed", "error", err, "error_code", code)
		return
	}

	c.metrics.ObserveRecord(c.source, metrics.OutcomeOperational, elapsed)
	logger.Warn("record rejected", "error", err, "error_code", code)
	if c.archive == nil {
		return
	}
	rejected := archive.RejectedMessage{
		Source:       c.source,
		MessageID:    msg.ID,
		Body:         msg.Body,
		Attributes:   msg.Attributes,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
		RejectedAt:   time.Now().UTC(),
	}
	if archErr := c.archive.ArchiveRejected(ctx, rejected); archErr != nil {
		logger.Warn("failed to archive rejected record", "error", archErr)
	}
}
