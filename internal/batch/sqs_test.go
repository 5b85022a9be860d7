package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

func sqsEvent(ids ...string) events.SQSEvent {
	country := "PE"
	var evt events.SQSEvent
	for _, id := range ids {
		evt.Records = append(evt.Records, events.SQSMessage{
			MessageId: id,
			Body:      "{}",
			MessageAttributes: map[string]events.SQSMessageAttribute{
				"countryISO": {StringValue: &country, DataType: "String"},
				"binary":     {BinaryValue: []byte{1}, DataType: "Binary"},
			},
		})
	}
	return evt
}

func failingCoordinator() *Coordinator {
	return New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		switch msg.ID {
		case "bad":
			return apperr.MissingFields("scheduleId")
		case "down":
			return errors.New("timeout talking to rds")
		}
		return nil
	}, logging.New("error"))
}

func TestFromSQSKeepsStringAttributes(t *testing.T) {
	msgs := FromSQS(sqsEvent("a"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, map[string]string{"countryISO": "PE"}, msgs[0].Attributes)
}

func TestSQSHandlerAggregateMode(t *testing.T) {
	handler := SQSHandler(failingCoordinator(), false)

	resp, err := handler(context.Background(), sqsEvent("ok", "bad", "down"))
	require.Error(t, err)
	assert.Equal(t, "batch processing failed: 2/3 records failed", err.Error())
	assert.Empty(t, resp.BatchItemFailures)

	_, err = handler(context.Background(), sqsEvent("ok"))
	assert.NoError(t, err)
}

func TestSQSHandlerPartialMode(t *testing.T) {
	handler := SQSHandler(failingCoordinator(), true)

	resp, err := handler(context.Background(), sqsEvent("ok", "bad", "down"))
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "down", resp.BatchItemFailures[0].ItemIdentifier)
}
