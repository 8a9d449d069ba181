package validation

import (
	"context"
	"errors"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/tari-project/tari-core/module"
)

// Executor runs validation work on a bounded pool of workers, away from the
// goroutines serving network I/O. A running check cannot be interrupted; a
// caller whose deadline expires stops waiting and the result is discarded.
type Executor struct {
	log     zerolog.Logger
	metrics module.ValidationMetrics
	pool    *workerpool.WorkerPool
}

// NewExecutor returns an executor with the given number of workers.
func NewExecutor(log zerolog.Logger, metrics module.ValidationMetrics, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		log:     log.With().Str("component", "validation_executor").Logger(),
		metrics: metrics,
		pool:    workerpool.New(workers),
	}
}

// Run executes check on a worker and waits for it or for ctx to be done.
// kind labels the metrics of the check.
func (e *Executor) Run(ctx context.Context, kind string, check func() error) error {
	if e.pool.Stopped() {
		return NewInfrastructureErrorf("validation executor is stopped")
	}
	result := make(chan error, 1)
	start := time.Now()
	e.pool.Submit(func() {
		result <- check()
	})

	select {
	case err := <-result:
		if err != nil {
			e.metrics.ValidationFailed(kind, ErrorKind(err))
			return err
		}
		e.metrics.ValidationSucceeded(kind, time.Since(start))
		return nil
	case <-ctx.Done():
		e.metrics.ValidationTimedOut(kind)
		e.log.Warn().Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("validation deadline exceeded")
		return NewInfrastructureErrorf("%s validation aborted: %w", kind, ctx.Err())
	}
}

// WaitingQueueSize returns the number of checks waiting for a worker.
func (e *Executor) WaitingQueueSize() int {
	return e.pool.WaitingQueueSize()
}

// Stop waits for the running checks and stops the workers.
func (e *Executor) Stop() {
	e.pool.StopWait()
}

// RunValidator runs validator against item on the executor.
func RunValidator[T any](ctx context.Context, e *Executor, kind string, validator Validator[T], item T) error {
	return e.Run(ctx, kind, func() error {
		return validator.Validate(item)
	})
}

// IsDeadlineExceeded returns true if err was caused by an expired deadline.
func IsDeadlineExceeded(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
