package filing

import (
	"time"

	"github.com/banking/compliance-service/internal/config"
)

// Urgency is the deadline band of a filing. It is derived, never
// stored: two observers with the same clock always agree on it.
type Urgency string

const (
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyWarning  Urgency = "WARNING"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// UrgencyOf maps time remaining until deadline onto a band. Overdue and
// inside-the-emergency-window filings are both CRITICAL.
func UrgencyOf(deadline, now time.Time, cfg *config.FilingConfig) Urgency {
	remaining := deadline.Sub(now)
	switch {
	case remaining <= cfg.EmergencyWindow:
		return UrgencyCritical
	case remaining <= cfg.CriticalWindow:
		return UrgencyHigh
	case remaining <= cfg.WarningWindow:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}
