package render

import (
	"context"
	"fmt"
	"time"
)

// Condition is polled by WaitUntil. It must be safe to call repeatedly.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond every interval until it reports true, returns an error,
// or timeout elapses. The first poll happens immediately.
func WaitUntil(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return err
		}
		if done {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// stableValue returns a Condition that succeeds once measure yields the same
// positive value twice in a row. The latest reading is stored in *last.
func stableValue(measure func(ctx context.Context) (int, error), last *int) Condition {
	prev := -1
	return func(ctx context.Context) (bool, error) {
		v, err := measure(ctx)
		if err != nil {
			return false, err
		}
		*last = v
		stable := v > 0 && v == prev
		prev = v
		return stable, nil
	}
}
