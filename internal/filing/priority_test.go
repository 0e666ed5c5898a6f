package filing

import (
	"testing"
	"time"

	"github.com/banking/compliance-service/internal/config"
)

func testFilingConfig() *config.FilingConfig {
	return &config.FilingConfig{
		DeadlineDays:    30,
		MaxRetries:      3,
		EmergencyWindow: 2 * time.Hour,
		CriticalWindow:  6 * time.Hour,
		WarningWindow:   24 * time.Hour,
	}
}

func TestUrgencyOf_Bands(t *testing.T) {
	cfg := testFilingConfig()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining time.Duration
		want      Urgency
	}{
		{"far out", 72 * time.Hour, UrgencyNormal},
		{"just outside warning", 24*time.Hour + time.Second, UrgencyNormal},
		{"warning boundary", 24 * time.Hour, UrgencyWarning},
		{"inside warning", 12 * time.Hour, UrgencyWarning},
		{"critical boundary", 6 * time.Hour, UrgencyHigh},
		{"inside critical", 3 * time.Hour, UrgencyHigh},
		{"emergency boundary", 2 * time.Hour, UrgencyCritical},
		{"inside emergency", 30 * time.Minute, UrgencyCritical},
		{"deadline exactly now", 0, UrgencyCritical},
		{"overdue", -48 * time.Hour, UrgencyCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline := now.Add(tt.remaining)
			if got := UrgencyOf(deadline, now, cfg); got != tt.want {
				t.Errorf("UrgencyOf(remaining=%s) = %s, want %s", tt.remaining, got, tt.want)
			}
		})
	}
}

func TestUrgencyOf_Deterministic(t *testing.T) {
	cfg := testFilingConfig()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(90 * time.Minute)

	first := UrgencyOf(deadline, now, cfg)
	for i := 0; i < 10; i++ {
		if got := UrgencyOf(deadline, now, cfg); got != first {
			t.Fatalf("urgency varied between identical observations: %s vs %s", got, first)
		}
	}
}
