package fetcher

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"
)

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()

	b := NewBackoff(WithRand(rand.New(rand.NewPCG(1, 2))))
	for attempt := range 8 {
		lower := time.Duration(1<<attempt) * time.Second
		upper := 3 * lower
		if upper > MaxDelay {
			upper = MaxDelay
		}
		if lower > MaxDelay {
			lower = MaxDelay
		}
		for range 50 {
			d := b.Delay(attempt)
			if d < lower || d > upper {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lower, upper)
			}
		}
	}
}

func TestBackoffCap(t *testing.T) {
	t.Parallel()

	b := NewBackoff()
	if d := b.Delay(100); d != MaxDelay {
		t.Errorf("expected %v, got %v", MaxDelay, d)
	}
	b = NewBackoff(WithMaxDelay(time.Second))
	if d := b.Delay(3); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
}

func TestBackoffMaxAttempts(t *testing.T) {
	t.Parallel()

	if got := NewBackoff().MaxAttempts(); got != DefaultMaxAttempts {
		t.Errorf("expected %d, got %d", DefaultMaxAttempts, got)
	}
	if got := NewBackoff(WithMaxAttempts(5)).MaxAttempts(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if got := NewBackoff(WithMaxAttempts(0)).MaxAttempts(); got != DefaultMaxAttempts {
		t.Errorf("expected zero to be ignored, got %d", got)
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("completes", func(t *testing.T) {
		t.Parallel()
		if err := Sleep(context.Background(), time.Millisecond); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		if err := Sleep(ctx, time.Minute); err == nil {
			t.Error("expected error on cancelled context")
		}
		if time.Since(start) > time.Second {
			t.Error("sleep did not return promptly")
		}
	})
}
