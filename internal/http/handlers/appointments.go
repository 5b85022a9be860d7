package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/appointments"
	"github.com/wolfman30/medical-appointments/internal/validate"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ServiceName and ServiceVersion are reported by the health check.
const (
	ServiceName    = "medical-appointment-system"
	ServiceVersion = "1.0.0"
)

// AppointmentService is the intake service used by the HTTP layer.
type AppointmentService interface {
	Create(ctx context.Context, input appointment.CreateInput) (*appointments.CreateResult, error)
	ListByInsured(ctx context.Context, insuredID string) (*appointments.ListResult, error)
	Get(ctx context.Context, appointmentID string) (*appointment.Summary, error)
}

// AppointmentsHandler serves the appointment endpoints.
type AppointmentsHandler struct {
	service    AppointmentService
	logger     *logging.Logger
	production bool
}

// NewAppointmentsHandler creates the handler. When production is true,
// internal error details are never returned to clients.
func NewAppointmentsHandler(service AppointmentService, logger *logging.Logger, production bool) *AppointmentsHandler {
	if service == nil {
		panic("handlers: appointment service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{service: service, logger: logger, production: production}
}

// Create handles POST /appointments.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, apperr.InvalidRequestBody(err.Error()))
		return
	}
	var input appointment.CreateInput
	if err := validate.ParseBody(body, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusAccepted, res)
}

// Get handles GET /appointments/{appointmentId}.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Get(r.Context(), chi.URLParam(r, "appointmentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, summary)
}

// ListByInsured handles GET /insured/{insuredId}/appointments.
func (h *AppointmentsHandler) ListByInsured(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListByInsured(r.Context(), chi.URLParam(r, "insuredId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, res)
}

// Health handles GET /health.
func (h *AppointmentsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   ServiceName,
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// MethodNotAllowed answers 405 listing the methods the router accepts for
// the requested path.
func (h *AppointmentsHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	var allowed []string
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.Routes != nil {
		for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			if rctx.Routes.Match(chi.NewRouteContext(), m, r.URL.Path) {
				allowed = append(allowed, m)
			}
		}
	}
	h.fail(w, r, apperr.MethodNotAllowed(allowed...))
}

// NotFound answers unknown routes with the standard envelope.
func (h *AppointmentsHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, apperr.New(apperr.KindNotFound, apperr.CodeNotFound, "Resource not found", nil))
}

func (h *AppointmentsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, h.production, h.logger)
}
