package safego

import (
	"context"

	"go.uber.org/zap"
)

// Go runs fn in a goroutine that logs panics instead of crashing the
// process. The returned channel is closed once fn has returned or panicked.
func Go(logger *zap.Logger, name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover(logger, name)
		fn()
	}()
	return done
}

// Recover logs a panic under name. It must be deferred directly.
func Recover(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("Goroutine panicked",
			zap.String("goroutine", name),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
	}
}

// Wait blocks until every channel is closed or ctx is done.
func Wait(ctx context.Context, done ...<-chan struct{}) error {
	for _, d := range done {
		select {
		case <-d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
