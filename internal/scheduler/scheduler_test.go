package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banking/compliance-service/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("compliance-service-test", "development", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestScheduler_RunsJobOnInterval(t *testing.T) {
	s := New(testLogger(t))

	var runs atomic.Int32
	s.Register("counter", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 105*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := runs.Load(); got < 3 {
		t.Fatalf("expected at least 3 runs, got %d", got)
	}
}

func TestScheduler_SlowJobNeverOverlapsItself(t *testing.T) {
	s := New(testLogger(t))

	var active atomic.Int32
	var overlapped atomic.Bool
	s.Register("slow", 5*time.Millisecond, func(ctx context.Context) error {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer active.Add(-1)
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if overlapped.Load() {
		t.Fatal("job overlapped with its previous run")
	}
}

func TestScheduler_JobsRunIndependently(t *testing.T) {
	s := New(testLogger(t))

	var fast, slow atomic.Int32
	s.Register("slow", 10*time.Millisecond, func(ctx context.Context) error {
		slow.Add(1)
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	s.Register("fast", 10*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if fast.Load() <= slow.Load() {
		t.Fatalf("fast job (%d runs) should not be throttled by slow job (%d runs)", fast.Load(), slow.Load())
	}
}

func TestScheduler_DrainsInFlightRunOnShutdown(t *testing.T) {
	s := New(testLogger(t))

	var finished atomic.Bool
	s.Register("draining", 5*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !finished.Load() {
		t.Fatal("in-flight run was not drained before Start returned")
	}
}

func TestScheduler_JobErrorDoesNotStopOthers(t *testing.T) {
	s := New(testLogger(t))

	var healthy atomic.Int32
	s.Register("failing", 10*time.Millisecond, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	s.Register("healthy", 10*time.Millisecond, func(ctx context.Context) error {
		healthy.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if healthy.Load() < 2 {
		t.Fatalf("healthy job starved after sibling failure, got %d runs", healthy.Load())
	}
}
