package goroutine

import (
	"context"
	"runtime/debug"
	"sync"
)

// Logger receives recovered panics.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler runs background work and turns panics into log entries.
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler creates a handler that reports to logger.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// Go starts fn in a goroutine with panic recovery.
func (rh *RecoveryHandler) Go(fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("panic in goroutine: %v\nstack trace:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// GoWithContext starts fn with a context detached from the caller's
// cancellation, so post-commit work outlives the HTTP request.
func (rh *RecoveryHandler) GoWithContext(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	rh.Go(func() { fn(detached) })
}

// Wait blocks until every started goroutine has returned.
func (rh *RecoveryHandler) Wait() {
	rh.wg.Wait()
}
