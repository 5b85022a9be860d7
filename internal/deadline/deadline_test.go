package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

func TestRunReturnsResult(t *testing.T) {
	require.NoError(t, Run(context.Background(), time.Second, "save", func(context.Context) error { return nil }))

	want := errors.New("boom")
	assert.ErrorIs(t, Run(context.Background(), time.Second, "save", func(context.Context) error { return want }), want)
}

func TestRunAbandonsCallIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := Run(context.Background(), 20*time.Millisecond, "status update", func(context.Context) error {
		<-release
		return nil
	})

	assert.Less(t, time.Since(start), time.Second)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeTimeout, appErr.Code)
	assert.Equal(t, "status update", appErr.Details["operation"])
}

func TestRunWrapsLateFailureAsTimeout(t *testing.T) {
	err := Run(context.Background(), 20*time.Millisecond, "save", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, apperr.CodeTimeout, mustAppErr(t, err).Code)
}

func TestRunKeepsOperationalErrors(t *testing.T) {
	err := Run(context.Background(), time.Second, "status update", func(context.Context) error {
		return apperr.AppointmentNotFound("a1")
	})
	assert.Equal(t, apperr.CodeAppointmentNotFound, mustAppErr(t, err).Code)
}

func TestRunRecoversPanics(t *testing.T) {
	for _, timeout := range []time.Duration{time.Second, 0} {
		err := Run(context.Background(), timeout, "save", func(context.Context) error {
			panic("driver bug")
		})
		appErr := mustAppErr(t, err)
		assert.Equal(t, apperr.KindInternal, appErr.Kind)
		assert.Contains(t, appErr.Error(), "driver bug")
	}
}

func TestRunParentCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, time.Second, "save", func(context.Context) error {
		<-release
		return nil
	})
	assert.Equal(t, apperr.KindInfrastructure, mustAppErr(t, err).Kind)
}

func mustAppErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	return appErr
}
