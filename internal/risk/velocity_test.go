package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryVelocityTracker_WindowSince(t *testing.T) {
	tracker := NewMemoryVelocityTracker(2 * time.Hour)
	userID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := tracker.Record(context.Background(), userID, now.Add(-time.Duration(i)*10*time.Minute), 100); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	count, total, err := tracker.WindowSince(context.Background(), userID, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	// Events at 0, -10m, -20m, -30m are inside the window; -40m is not.
	if count != 4 {
		t.Errorf("expected 4 events in window, got %d", count)
	}
	if total != 400 {
		t.Errorf("expected window total 400, got %f", total)
	}
}

func TestMemoryVelocityTracker_SumsOnlyWindowAmounts(t *testing.T) {
	tracker := NewMemoryVelocityTracker(2 * time.Hour)
	userID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := tracker.Record(context.Background(), userID, now.Add(-90*time.Minute), 50000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.Record(context.Background(), userID, now.Add(-5*time.Minute), 9000); err != nil {
		t.Fatalf("record: %v", err)
	}

	count, total, err := tracker.WindowSince(context.Background(), userID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 event in window, got %d", count)
	}
	if total != 9000 {
		t.Errorf("old amount leaked into window total: got %f", total)
	}
}

func TestMemoryVelocityTracker_EmptyUser(t *testing.T) {
	tracker := NewMemoryVelocityTracker(time.Hour)

	count, total, err := tracker.WindowSince(context.Background(), uuid.New(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if count != 0 || total != 0 {
		t.Errorf("expected empty window for unknown user, got count=%d total=%f", count, total)
	}
}

func TestMemoryVelocityTracker_PrunesBeyondRetention(t *testing.T) {
	tracker := NewMemoryVelocityTracker(time.Hour)
	userID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := tracker.Record(context.Background(), userID, now.Add(-3*time.Hour), 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := tracker.Record(context.Background(), userID, now.Add(-5*time.Minute), 100); err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, _, err := tracker.WindowSince(context.Background(), userID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("window: %v", err)
	}

	tracker.mu.Lock()
	kept := len(tracker.events[userID])
	tracker.mu.Unlock()
	if kept != 1 {
		t.Errorf("expected stale events pruned, kept %d", kept)
	}
}

func TestMemoryVelocityTracker_IndependentUsers(t *testing.T) {
	tracker := NewMemoryVelocityTracker(time.Hour)
	a, b := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := tracker.Record(context.Background(), a, now, 100); err != nil {
		t.Fatalf("record: %v", err)
	}

	count, _, err := tracker.WindowSince(context.Background(), b, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if count != 0 {
		t.Errorf("user b should have no events, got %d", count)
	}
}
