package appointments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
)

func newPending(t *testing.T, insuredID, country string) *appointment.Appointment {
	t.Helper()
	appt, err := appointment.Create(appointment.CreateInput{
		InsuredID:  insuredID,
		ScheduleID: 100,
		CountryISO: country,
	})
	require.NoError(t, err)
	return appt
}

func TestInMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt := newPending(t, "12345", "PE")

	require.NoError(t, repo.Save(ctx, appt))

	got, err := repo.FindByID(ctx, appt.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, appt.ID(), got.ID())
	assert.Equal(t, appointment.StatusPending, got.Status())
	_, hasUpdated := got.UpdatedAt()
	assert.False(t, hasUpdated)

	exists, err := repo.Exists(ctx, appt.ID())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInMemoryRepository_FindByIDMissing(t *testing.T) {
	repo := NewInMemoryRepository()

	got, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.FindByIDOrFail(context.Background(), "missing")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeAppointmentNotFound, appErr.Code)
	assert.Equal(t, "missing", appErr.Details["appointmentId"])
}

func TestInMemoryRepository_FindByInsuredID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	first := newPending(t, "11111", "PE")
	second := newPending(t, "11111", "CL")
	other := newPending(t, "22222", "PE")
	for _, a := range []*appointment.Appointment{second, other, first} {
		require.NoError(t, repo.Save(ctx, a))
	}

	got, err := repo.FindByInsuredID(ctx, "11111")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID(), got[0].ID())
	assert.Equal(t, second.ID(), got[1].ID())

	none, err := repo.FindByInsuredID(ctx, "99999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryRepository_UpdateStatusIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt := newPending(t, "12345", "PE")
	require.NoError(t, repo.Save(ctx, appt))

	require.NoError(t, repo.UpdateStatus(ctx, appt.ID(), appointment.StatusCompleted))
	first, err := repo.FindByIDOrFail(ctx, appt.ID())
	require.NoError(t, err)
	firstUpdated, ok := first.UpdatedAt()
	require.True(t, ok)
	assert.False(t, firstUpdated.Before(first.CreatedAt()))

	require.NoError(t, repo.UpdateStatus(ctx, appt.ID(), appointment.StatusCompleted))
	second, err := repo.FindByIDOrFail(ctx, appt.ID())
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, second.Status())
	secondUpdated, _ := second.UpdatedAt()
	assert.True(t, firstUpdated.Equal(secondUpdated))
}

func TestInMemoryRepository_UpdateStatusRejectsRegression(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt := newPending(t, "12345", "PE")
	require.NoError(t, repo.Save(ctx, appt))
	require.NoError(t, repo.UpdateStatus(ctx, appt.ID(), appointment.StatusCompleted))

	err := repo.UpdateStatus(ctx, appt.ID(), appointment.StatusPending)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidTransition, appErr.Code)
	assert.True(t, appErr.Operational())

	got, _ := repo.FindByID(ctx, appt.ID())
	assert.Equal(t, appointment.StatusCompleted, got.Status())
}

func TestInMemoryRepository_UpdateStatusMissing(t *testing.T) {
	err := NewInMemoryRepository().UpdateStatus(context.Background(), "nope", appointment.StatusCompleted)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
