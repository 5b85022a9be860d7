package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// Metadata accompanies every response.
type Metadata struct {
	RequestID string `json:"requestId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details apperr.Details `json:"details,omitempty"`
}

// Envelope is the shape of every API response.
type Envelope struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

func metadataFor(r *http.Request) Metadata {
	return Metadata{
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Metadata: metadataFor(r)})
}

// writeError maps err onto the response envelope. Operational errors are
// returned as-is. Critical errors keep their status but hide internals when
// production is set; unknown errors become INTERNAL_ERROR.
func writeError(w http.ResponseWriter, r *http.Request, err error, production bool, logger *logging.Logger) {
	logger = logger.With("request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path)

	appErr, ok := apperr.As(err)
	if ok && appErr.Operational() {
		logger.Warn("request rejected", "code", appErr.Code, "message", appErr.Message, "details", appErr.Details)
		writeJSON(w, apperr.HTTPStatus(appErr.Kind), Envelope{
			Error:    &ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
			Metadata: metadataFor(r),
		})
		return
	}

	logger.Error("request failed", "error", err)
	body := &ErrorBody{Code: apperr.CodeInternal, Message: "Internal server error"}
	status := http.StatusInternalServerError
	if ok && appErr.Kind == apperr.KindInfrastructure {
		body.Code = appErr.Code
		body.Message = appErr.Message
		status = apperr.HTTPStatus(appErr.Kind)
	}
	if !production {
		body.Details = apperr.Details{"error": err.Error()}
	}
	writeJSON(w, status, Envelope{Error: body, Metadata: metadataFor(r)})
}
