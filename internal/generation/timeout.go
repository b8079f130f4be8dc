package generation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout bounds every call to next. A call that runs past the budget
// fails with ErrTimeout; it is never retried.
func WithTimeout(next Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return next
	}
	return &timeoutBackend{next: next, timeout: timeout}
}

func (t *timeoutBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.next.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return nil, err
	}
	return res, nil
}
