// Package deadline bounds a single store or transport call.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

// Run calls fn under timeout and returns once fn finishes or the deadline
// passes, whichever comes first. A callee that ignores its context is
// abandoned and reported as TIMEOUT. A panic in fn comes back as an internal
// error instead of crashing the process. A non-positive timeout only adds the
// panic guard.
func Run(ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) error) error {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- apperr.Internal(operation+" panicked", fmt.Errorf("panic: %v", r))
			}
		}()
		done <- fn(opCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !apperr.IsOperational(err) && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return apperr.Timeout(operation, err)
		}
		return err
	case <-opCtx.Done():
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return apperr.Timeout(operation, opCtx.Err())
		}
		return apperr.Infrastructure(apperr.CodeUnavailable, operation+" cancelled", opCtx.Err())
	}
}
