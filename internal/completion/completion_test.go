package completion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/appointments"
	"github.com/wolfman30/medical-appointments/internal/batch"
	"github.com/wolfman30/medical-appointments/internal/events"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

type slowStore struct{}

type stuckStore struct {
	release chan struct{}
}

func (s stuckStore) UpdateStatus(context.Context, string, appointment.Status) error {
	<-s.release
	return nil
}

type panickingStore struct {
	*appointments.InMemoryRepository
	panicFor string
}

func (s panickingStore) UpdateStatus(ctx context.Context, id string, status appointment.Status) error {
	if id == s.panicFor {
		panic("driver bug")
	}
	return s.InMemoryRepository.UpdateStatus(ctx, id, status)
}

func (slowStore) UpdateStatus(ctx context.Context, id string, status appointment.Status) error {
	<-ctx.Done()
	return ctx.Err()
}

func seeded(t *testing.T) (*appointments.InMemoryRepository, *appointment.Appointment) {
	t.Helper()
	repo := appointments.NewInMemoryRepository()
	appt, err := appointment.Create(appointment.CreateInput{InsuredID: "12345", ScheduleID: 7, CountryISO: "CL"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), appt))
	return repo, appt
}

func eventBridgeBody(t *testing.T, evt events.AppointmentCompletedV1) string {
	t.Helper()
	detail, err := json.Marshal(evt)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"version":     "0",
		"id":          "evt-1",
		"detail-type": events.TypeAppointmentCompleted,
		"source":      "appointment.service",
		"detail":      json.RawMessage(detail),
	})
	require.NoError(t, err)
	return string(body)
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo, appt := seeded(t)
	h := NewHandler(repo, logging.New("error"), time.Second)
	evt := events.AppointmentCompletedV1{AppointmentID: appt.ID(), CountryISO: "CL"}

	require.NoError(t, h.Complete(context.Background(), evt))
	require.NoError(t, h.Complete(context.Background(), evt))

	got, err := repo.FindByIDOrFail(context.Background(), appt.ID())
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, got.Status())
	_, ok := got.UpdatedAt()
	assert.True(t, ok)
}

func TestCompleteUnknownAppointment(t *testing.T) {
	repo, _ := seeded(t)
	h := NewHandler(repo, logging.New("error"), 0)

	err := h.Complete(context.Background(), events.AppointmentCompletedV1{AppointmentID: "missing"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.True(t, apperr.IsOperational(err))
}

func TestCompleteMissingID(t *testing.T) {
	repo, _ := seeded(t)
	err := NewHandler(repo, nil, 0).Complete(context.Background(), events.AppointmentCompletedV1{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCompleteTimeout(t *testing.T) {
	h := NewHandler(slowStore{}, logging.New("error"), 10*time.Millisecond)

	err := h.Complete(context.Background(), events.AppointmentCompletedV1{AppointmentID: "a"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeTimeout, appErr.Code)
}

func TestCompleteAbandonsStoreIgnoringContext(t *testing.T) {
	store := stuckStore{release: make(chan struct{})}
	defer close(store.release)
	h := NewHandler(store, logging.New("error"), 50*time.Millisecond)

	start := time.Now()
	err := h.Complete(context.Background(), events.AppointmentCompletedV1{AppointmentID: "a"})

	assert.Less(t, time.Since(start), time.Second)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeTimeout, appErr.Code)
}

func TestStorePanicIsIsolatedInBatch(t *testing.T) {
	repo, appt := seeded(t)
	h := NewHandler(panickingStore{InMemoryRepository: repo, panicFor: "broken"}, logging.New("error"), time.Second)
	c := batch.New("completion", h.HandleMessage, logging.New("error"))

	res := c.Process(context.Background(), []batch.Message{
		{ID: "m-1", Body: eventBridgeBody(t, events.AppointmentCompletedV1{AppointmentID: "broken", CountryISO: "CL"})},
		{ID: "m-2", Body: eventBridgeBody(t, events.AppointmentCompletedV1{AppointmentID: appt.ID(), CountryISO: "CL"})},
	})

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"m-1"}, res.RetryableIDs())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(res.Failures[0].Err))

	stored, err := repo.FindByIDOrFail(context.Background(), appt.ID())
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, stored.Status())
}

func TestHandleMessageThroughCoordinator(t *testing.T) {
	repo, appt := seeded(t)
	h := NewHandler(repo, logging.New("error"), time.Second)
	c := batch.New("completion", h.HandleMessage, logging.New("error"))

	res := c.Process(context.Background(), []batch.Message{
		{ID: "ok", Body: eventBridgeBody(t, events.AppointmentCompletedV1{AppointmentID: appt.ID(), CountryISO: "CL"})},
		{ID: "unknown", Body: eventBridgeBody(t, events.AppointmentCompletedV1{AppointmentID: "nope"})},
		{ID: "garbage", Body: `{"detail":null}`},
	})

	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, []string{"garbage"}, res.RetryableIDs())

	got, _ := repo.FindByID(context.Background(), appt.ID())
	assert.Equal(t, appointment.StatusCompleted, got.Status())
}
