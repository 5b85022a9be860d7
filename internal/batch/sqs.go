package batch

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// FromSQS converts Lambda SQS records. Only string message attributes are
// kept.
func FromSQS(evt events.SQSEvent) []Message {
	msgs := make([]Message, 0, len(evt.Records))
	for _, rec := range evt.Records {
		msgs = append(msgs, Message{
			ID:         rec.MessageId,
			Body:       rec.Body,
			Attributes: stringAttributes(rec.MessageAttributes),
		})
	}
	return msgs
}

func stringAttributes(attrs map[string]events.SQSMessageAttribute) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v.StringValue != nil {
			out[k] = *v.StringValue
		}
	}
	return out
}

// SQSHandler adapts a coordinator to the Lambda SQS trigger. In aggregate
// mode any failure fails the invocation and the whole batch is redelivered.
// In partial mode only critically failed messages are reported back;
// operational rejections are dropped.
func SQSHandler(c *Coordinator, partial bool) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		res := c.Process(ctx, FromSQS(evt))
		if !partial {
			return events.SQSEventResponse{}, res.Err()
		}
		var resp events.SQSEventResponse
		for _, id := range res.RetryableIDs() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
		return resp, nil
	}
}
