package appointments

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

var appointmentsTracer = otel.Tracer("appointments.internal.appointments")

// AcceptedMessage is returned to clients once an appointment is queued.
const AcceptedMessage = "Appointment request is being processed"

// CreatedPublisher fans a created appointment out to the country processors.
type CreatedPublisher interface {
	PublishCreated(ctx context.Context, evt events.AppointmentCreatedV1) error
}

// CreateResult is the response body for an accepted appointment.
type CreateResult struct {
	Message       string             `json:"message"`
	AppointmentID string             `json:"appointmentId"`
	Status        appointment.Status `json:"status"`
}

// ListResult is the response body for an insured's appointments.
type ListResult struct {
	InsuredID    string                `json:"insuredId"`
	Count        int                   `json:"count"`
	Appointments []appointment.Summary `json:"appointments"`
}

// Service is the intake side of the pipeline.
type Service struct {
	repo      Repository
	publisher CreatedPublisher
	logger    *logging.Logger
}

// NewService constructs an intake service.
func NewService(repo Repository, publisher CreatedPublisher, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if publisher == nil {
		panic("appointments: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Create validates the request, stores a pending appointment and publishes
// the created event. The record is saved before publishing so a processor
// never sees an appointment the status store does not know about.
func (s *Service) Create(ctx context.Context, input appointment.CreateInput) (*CreateResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()

	appt, err := appointment.Create(input)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("appointment.id", appt.ID()),
		attribute.String("appointment.country", string(appt.Country())),
	)

	if err := s.repo.Save(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.publisher.PublishCreated(ctx, appt.CreatedEvent()); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to publish appointment created", "appointment_id", appt.ID(), "error", err)
		return nil, err
	}

	s.logger.Info("appointment accepted",
		"appointment_id", appt.ID(),
		"insured_id", appt.InsuredID(),
		"country", appt.Country(),
	)
	return &CreateResult{
		Message:       AcceptedMessage,
		AppointmentID: appt.ID(),
		Status:        appt.Status(),
	}, nil
}

// ListByInsured returns every appointment recorded for insuredID.
func (s *Service) ListByInsured(ctx context.Context, insuredID string) (*ListResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.list_by_insured")
	defer span.End()

	if insuredID == "" {
		return nil, apperr.MissingFields("insuredId")
	}
	appts, err := s.repo.FindByInsuredID(ctx, insuredID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	summaries := make([]appointment.Summary, 0, len(appts))
	for _, a := range appts {
		summaries = append(summaries, a.Summary())
	}
	return &ListResult{
		InsuredID:    insuredID,
		Count:        len(summaries),
		Appointments: summaries,
	}, nil
}

// Get returns a single appointment summary.
func (s *Service) Get(ctx context.Context, appointmentID string) (*appointment.Summary, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.get")
	defer span.End()

	if appointmentID == "" {
		return nil, apperr.MissingFields("appointmentId")
	}
	appt, err := s.repo.FindByIDOrFail(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	summary := appt.Summary()
	return &summary, nil
}
