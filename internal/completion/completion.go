// Package completion applies completed events to the status store.
package completion

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/batch"
	"github.com/wolfman30/medical-appointments/internal/deadline"
	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

var completionTracer = otel.Tracer("appointments.internal.completion")

// StatusUpdater is the part of the status store this package needs.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, appointmentID string, status appointment.Status) error
}

// Handler marks appointments completed.
type Handler struct {
	store   StatusUpdater
	logger  *logging.Logger
	timeout time.Duration
}

// NewHandler creates a completion handler. A non-positive timeout disables
// the per-update deadline; updates are still isolated from panics.
func NewHandler(store StatusUpdater, logger *logging.Logger, timeout time.Duration) *Handler {
	if store == nil {
		panic("completion: status store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger, timeout: timeout}
}

// Complete marks the appointment completed. Repeating it is harmless.
func (h *Handler) Complete(ctx context.Context, evt events.AppointmentCompletedV1) error {
	ctx, span := completionTracer.Start(ctx, "completion.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", evt.AppointmentID),
		attribute.String("appointment.country", evt.CountryISO),
	)

	if evt.AppointmentID == "" {
		return apperr.MissingFields("appointmentId")
	}

	err := deadline.Run(ctx, h.timeout, "status update", func(ctx context.Context) error {
		return h.store.UpdateStatus(ctx, evt.AppointmentID, appointment.StatusCompleted)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// HandleMessage is a batch.Handler for EventBridge events delivered through SQS.
func (h *Handler) HandleMessage(ctx context.Context, msg batch.Message, logger *logging.Logger) error {
	evt, err := events.ParseEventBridgeDetail(msg.Body)
	if err != nil {
		return err
	}
	if err := h.Complete(ctx, evt); err != nil {
		return err
	}
	logger.Info("appointment completed",
		"appointment_id", evt.AppointmentID,
		"country", evt.CountryISO,
	)
	return nil
}
