package services

import (
	"context"
	"time"

	"go-falcon-locations/internal/locations/models"
)

// race runs call against a timer. The call keeps the caller's context, so a call
// that loses the race still completes in the background; its result lands in the
// buffered channel and is dropped.
func race[T any](ctx context.Context, timeout time.Duration, characterID int64, name string, call func(context.Context) (T, error)) models.Result[T] {
	done := make(chan models.Result[T], 1)

	go func() {
		value, err := call(ctx)
		if err != nil {
			done <- models.Failed[T](characterID, name, err)
			return
		}
		done <- models.OK(characterID, name, value)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		return result
	case <-timer.C:
		return models.TimedOut[T](characterID, name, timeout)
	case <-ctx.Done():
		return models.Failed[T](characterID, name, ctx.Err())
	}
}
