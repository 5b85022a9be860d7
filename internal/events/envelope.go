package events

import (
	"encoding/json"
	"errors"
	"strings"

	lambdaevents "github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

// CountryAttribute is the SNS message attribute used for subscription
// filtering.
const CountryAttribute = "countryISO"

// ParseSNSMessage unwraps an SNS notification delivered through SQS and
// decodes the created event inside it. Envelope failures are critical: the
// producer and the queue subscription disagree on the wire format.
func ParseSNSMessage(body string) (AppointmentCreatedV1, error) {
	var evt AppointmentCreatedV1
	var notification lambdaevents.SNSEntity
	if err := json.Unmarshal([]byte(body), &notification); err != nil {
		return evt, invalidEnvelope("sns notification", err)
	}
	if strings.TrimSpace(notification.Message) == "" {
		return evt, invalidEnvelope("sns notification", errors.New("empty Message"))
	}
	if err := json.Unmarshal([]byte(notification.Message), &evt); err != nil {
		return evt, invalidEnvelope("appointment.created payload", err)
	}
	return evt, nil
}

// ParseEventBridgeDetail decodes the completed event carried in the detail
// field of an EventBridge event delivered through SQS.
func ParseEventBridgeDetail(body string) (AppointmentCompletedV1, error) {
	var evt AppointmentCompletedV1
	var envelope lambdaevents.CloudWatchEvent
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return evt, invalidEnvelope("eventbridge event", err)
	}
	if len(envelope.Detail) == 0 || string(envelope.Detail) == "null" {
		return evt, invalidEnvelope("eventbridge event", errors.New("empty detail"))
	}
	if envelope.DetailType != "" && envelope.DetailType != TypeAppointmentCompleted {
		return evt, invalidEnvelope("eventbridge event", errors.New("unexpected detail-type "+envelope.DetailType))
	}
	if err := json.Unmarshal(envelope.Detail, &evt); err != nil {
		return evt, invalidEnvelope("appointment.completed payload", err)
	}
	return evt, nil
}

func invalidEnvelope(what string, cause error) error {
	return apperr.Infrastructure(apperr.CodeInvalidEnvelope, "failed to parse "+what, cause)
}
