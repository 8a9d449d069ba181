package chainsync

import (
	"context"
	"sync"

	"github.com/tari-project/tari-core/module/validation"
)

// fence guards the writes of a job running on the validation executor. Once
// the caller stops waiting for the job and closes the fence, no further write
// is started, and close waits for a write in progress.
type fence struct {
	mu     sync.Mutex
	closed bool
}

// do runs write unless the fence is closed or ctx is done.
func (f *fence) do(ctx context.Context, write func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return validation.NewInfrastructureErrorf("write after the batch was abandoned: %w", context.Canceled)
	}
	if ctx.Err() != nil {
		return validation.NewInfrastructureErrorf("batch stopped: %w", ctx.Err())
	}
	return write()
}

func (f *fence) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
