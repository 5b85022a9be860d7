// Package publisher emits appointment lifecycle events: created events go to
// an SNS topic filtered by country, completed events go to an EventBridge bus.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// DefaultSource is the EventBridge source for completion events.
const DefaultSource = "appointment.service"

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type eventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// SNSPublisher publishes created events to the fan-out topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	logger   *logging.Logger
}

// NewSNSPublisher creates a topic-backed publisher.
func NewSNSPublisher(client snsAPI, topicARN string, logger *logging.Logger) *SNSPublisher {
	if client == nil {
		panic("publisher: sns client cannot be nil")
	}
	if topicARN == "" {
		panic("publisher: topic arn cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

// PublishCreated sends the event with a countryISO message attribute so each
// country queue only receives its own appointments.
func (p *SNSPublisher) PublishCreated(ctx context.Context, evt events.AppointmentCreatedV1) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("publisher: failed to encode created event: %w", err)
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			events.CountryAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.CountryISO),
			},
		},
	})
	if err != nil {
		return transportError("sns publish", err)
	}
	p.logger.Debug("appointment created event published",
		"appointment_id", evt.AppointmentID,
		"country", evt.CountryISO,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// EventBridgePublisher publishes completed events to a bus.
type EventBridgePublisher struct {
	client  eventBridgeAPI
	busName string
	source  string
	logger  *logging.Logger
}

// NewEventBridgePublisher creates a bus-backed publisher. An empty busName
// targets the account's default bus.
func NewEventBridgePublisher(client eventBridgeAPI, busName, source string, logger *logging.Logger) *EventBridgePublisher {
	if client == nil {
		panic("publisher: eventbridge client cannot be nil")
	}
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EventBridgePublisher{client: client, busName: busName, source: source, logger: logger}
}

// PublishCompleted puts a single completion event. A failed entry in the
// response is an error even when the call itself succeeds.
func (p *EventBridgePublisher) PublishCompleted(ctx context.Context, evt events.AppointmentCompletedV1) error {
	detail, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("publisher: failed to encode completed event: %w", err)
	}
	entry := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(p.source),
		DetailType: aws.String(events.TypeAppointmentCompleted),
		Detail:     aws.String(string(detail)),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return transportError("eventbridge put events", err)
	}
	if out.FailedEntryCount > 0 {
		reason := "unknown"
		if len(out.Entries) > 0 && out.Entries[0].ErrorCode != nil {
			reason = aws.ToString(out.Entries[0].ErrorCode) + ": " + aws.ToString(out.Entries[0].ErrorMessage)
		}
		return apperr.Infrastructure(apperr.CodeUnavailable,
			"publisher: eventbridge rejected completion event", errors.New(reason))
	}
	p.logger.Debug("appointment completed event published",
		"appointment_id", evt.AppointmentID,
		"country", evt.CountryISO,
	)
	return nil
}

func transportError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(operation, err)
	}
	return apperr.Infrastructure(apperr.CodeUnavailable, "publisher: "+operation+" failed", err)
}
