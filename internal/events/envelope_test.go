package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

func snsBody(t *testing.T, message string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"Type":      "Notification",
		"MessageId": "sns-1",
		"TopicArn":  "arn:aws:sns:us-east-1:000000000000:appointments",
		"Message":   message,
		"Timestamp": "2024-01-01T00:00:00.000Z",
		"MessageAttributes": map[string]any{
			"countryISO": map[string]string{"Type": "String", "Value": "PE"},
		},
	})
	require.NoError(t, err)
	return string(body)
}

func TestParseSNSMessage(t *testing.T) {
	body := snsBody(t, `{"appointmentId":"a-1","insuredId":"12345","scheduleId":100,"countryISO":"PE","timestamp":"2024-01-01T00:00:00Z"}`)

	evt, err := ParseSNSMessage(body)
	require.NoError(t, err)
	assert.Equal(t, "a-1", evt.AppointmentID)
	assert.Equal(t, "12345", evt.InsuredID)
	assert.Equal(t, int64(100), evt.ScheduleID)
	assert.Equal(t, "PE", evt.CountryISO)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), evt.Timestamp.UTC())
}

func TestParseSNSMessageFailuresAreCritical(t *testing.T) {
	cases := map[string]string{
		"not json":        "{",
		"empty message":   snsBody(t, ""),
		"invalid payload": snsBody(t, "not-json"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSNSMessage(body)
			require.Error(t, err)
			assert.False(t, apperr.IsOperational(err))
			appErr, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.CodeInvalidEnvelope, appErr.Code)
		})
	}
}

func TestParseEventBridgeDetail(t *testing.T) {
	body := `{"version":"0","id":"evt-1","detail-type":"appointment.completed","source":"appointment.service",
		"account":"000000000000","time":"2024-01-01T00:00:00Z","region":"us-east-1","resources":[],
		"detail":{"appointmentId":"a-1","insuredId":"12345","scheduleId":100,"countryISO":"CL","timestamp":"2024-01-01T00:00:05Z"}}`

	evt, err := ParseEventBridgeDetail(body)
	require.NoError(t, err)
	assert.Equal(t, "a-1", evt.AppointmentID)
	assert.Equal(t, "CL", evt.CountryISO)
}

func TestParseEventBridgeDetailRejectsWrongShape(t *testing.T) {
	_, err := ParseEventBridgeDetail(`{"detail-type":"appointment.completed"}`)
	assert.Error(t, err)

	_, err = ParseEventBridgeDetail(`{"detail-type":"appointment.created","detail":{"appointmentId":"a-1"}}`)
	assert.Error(t, err)
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, "appointment.created", AppointmentCreatedV1{}.EventType())
	assert.Equal(t, "appointment.completed", AppointmentCompletedV1{}.EventType())
}
