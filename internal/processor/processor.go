// Package processor handles created appointments for one country: it stores
// them in the country database and announces their completion.
package processor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/batch"
	"github.com/wolfman30/medical-appointments/internal/deadline"
	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

var processorTracer = otel.Tracer("appointments.internal.processor")

// DefaultOperationTimeout bounds each store and notifier call.
const DefaultOperationTimeout = 10 * time.Second

// CountryStore persists appointments in the country database. SaveAppointment
// must be an idempotent upsert keyed by appointment id.
type CountryStore interface {
	SaveAppointment(ctx context.Context, evt events.AppointmentCreatedV1) error
}

// CompletionNotifier announces that a country finished an appointment.
type CompletionNotifier interface {
	PublishCompleted(ctx context.Context, evt events.AppointmentCompletedV1) error
}

// Deduper remembers appointments already fully processed.
type Deduper interface {
	Processed(ctx context.Context, scope, id string) (bool, error)
	MarkProcessed(ctx context.Context, scope, id string) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithOperationTimeout overrides the per-call deadline.
func WithOperationTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDeduper skips appointments this country already processed.
func WithDeduper(d Deduper) Option {
	return func(p *Processor) {
		p.dedup = d
	}
}

// Processor is bound to a single country.
type Processor struct {
	country  appointment.Country
	store    CountryStore
	notifier CompletionNotifier
	logger   *logging.Logger
	timeout  time.Duration
	dedup    Deduper
	now      func() time.Time
}

// New creates a processor for country.
func New(country appointment.Country, store CountryStore, notifier CompletionNotifier, logger *logging.Logger, opts ...Option) *Processor {
	if store == nil {
		panic("processor: country store cannot be nil")
	}
	if notifier == nil {
		panic("processor: completion notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		country:  country,
		store:    store,
		notifier: notifier,
		logger:   logger.With("country", string(country)),
		timeout:  DefaultOperationTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Country returns the partition this processor owns.
func (p *Processor) Country() appointment.Country { return p.country }

// ProcessCreated stores the appointment and publishes its completion.
// Events for another country are ignored. The completion event is published
// only after the store write succeeded.
func (p *Processor) ProcessCreated(ctx context.Context, evt events.AppointmentCreatedV1) error {
	return p.process(ctx, evt, p.logger)
}

// HandleMessage is a batch.Handler: it unwraps the SNS notification carried
// by the queue message and processes the created event inside.
func (p *Processor) HandleMessage(ctx context.Context, msg batch.Message, logger *logging.Logger) error {
	evt, err := events.ParseSNSMessage(msg.Body)
	if err != nil {
		return err
	}
	return p.process(ctx, evt, logger.With("country", string(p.country)))
}

func (p *Processor) process(ctx context.Context, evt events.AppointmentCreatedV1, logger *logging.Logger) error {
	ctx, span := processorTracer.Start(ctx, "processor.process_created")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", evt.AppointmentID),
		attribute.String("appointment.country", evt.CountryISO),
		attribute.String("processor.country", string(p.country)),
	)

	logger = logger.With("appointment_id", evt.AppointmentID)
	if evt.CountryISO != string(p.country) {
		logger.Warn("ignoring appointment for another country", "event_country", evt.CountryISO)
		return nil
	}

	if p.alreadyProcessed(ctx, evt.AppointmentID, logger) {
		logger.Info("appointment already processed, skipping")
		return nil
	}

	if err := p.withDeadline(ctx, "country store save", func(ctx context.Context) error {
		return p.store.SaveAppointment(ctx, evt)
	}); err != nil {
		span.RecordError(err)
		return err
	}

	completed := events.AppointmentCompletedV1{
		AppointmentID: evt.AppointmentID,
		InsuredID:     evt.InsuredID,
		ScheduleID:    evt.ScheduleID,
		CountryISO:    evt.CountryISO,
		Timestamp:     p.now().UTC(),
	}
	if err := p.withDeadline(ctx, "completion publish", func(ctx context.Context) error {
		return p.notifier.PublishCompleted(ctx, completed)
	}); err != nil {
		span.RecordError(err)
		return err
	}

	p.markProcessed(ctx, evt.AppointmentID, logger)
	logger.Info("appointment processed", "schedule_id", evt.ScheduleID)
	return nil
}

func (p *Processor) withDeadline(ctx context.Context, operation string, fn func(context.Context) error) error {
	return deadline.Run(ctx, p.timeout, operation, fn)
}

func (p *Processor) alreadyProcessed(ctx context.Context, id string, logger *logging.Logger) bool {
	if p.dedup == nil {
		return false
	}
	seen, err := p.dedup.Processed(ctx, string(p.country), id)
	if err != nil {
		logger.Warn("dedup lookup failed", "error", err)
		return false
	}
	return seen
}

func (p *Processor) markProcessed(ctx context.Context, id string, logger *logging.Logger) {
	if p.dedup == nil {
		return
	}
	if err := p.dedup.MarkProcessed(ctx, string(p.country), id); err != nil {
		logger.Warn("dedup mark failed", "error", err)
	}
}
