package render

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitUntil_SucceedsWhenConditionHolds(t *testing.T) {
	calls := 0
	err := WaitUntil(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWaitUntil_TimesOut(t *testing.T) {
	err := WaitUntil(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitUntil_PropagatesConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := WaitUntil(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestWaitUntil_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntil(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStableValue(t *testing.T) {
	readings := []int{1200, 1800, 2246, 2246}
	i := 0
	var last int
	cond := stableValue(func(context.Context) (int, error) {
		v := readings[i]
		i++
		return v, nil
	}, &last)

	err := WaitUntil(context.Background(), time.Millisecond, time.Second, cond)
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if last != 2246 || i != 4 {
		t.Fatalf("last = %d after %d readings", last, i)
	}
}

func TestStableValue_IgnoresZero(t *testing.T) {
	var last int
	cond := stableValue(func(context.Context) (int, error) { return 0, nil }, &last)
	for range 3 {
		ok, err := cond(context.Background())
		if err != nil || ok {
			t.Fatalf("cond = (%v, %v), want (false, nil)", ok, err)
		}
	}
}
