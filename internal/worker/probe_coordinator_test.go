package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingChecker struct {
	calls atomic.Int64
}

func (c *countingChecker) Check(ctx context.Context) bool {
	c.calls.Add(1)
	return true
}

func TestProbeCoordinator_ProbesImmediatelyAndOnTicks(t *testing.T) {
	checker := &countingChecker{}
	coord := NewProbeCoordinator(checker, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		coord.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for checker.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("probes = %d, want at least 3", checker.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop on context cancel")
	}
}

func TestProbeCoordinator_StopsWithoutTick(t *testing.T) {
	checker := &countingChecker{}
	coord := NewProbeCoordinator(checker, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		coord.Run(ctx)
	}()

	// The immediate probe runs, then the loop parks on a long ticker.
	deadline := time.After(2 * time.Second)
	for checker.calls.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("immediate probe did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop on context cancel")
	}
}
