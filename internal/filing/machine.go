package filing

import (
	"errors"
	"fmt"
	"time"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

// ErrInvalidTransition is returned when a status change is not allowed
// by the lifecycle table.
var ErrInvalidTransition = errors.New("invalid filing status transition")

// transitions is the single authority on the filing lifecycle. A status
// not present as a key is terminal.
var transitions = map[domain.FilingStatus][]domain.FilingStatus{
	domain.FilingStatusDraft: {
		domain.FilingStatusReview,
		domain.FilingStatusEmergency,
		domain.FilingStatusOverdue,
	},
	domain.FilingStatusReview: {
		domain.FilingStatusApproved,
		domain.FilingStatusDraft,
		domain.FilingStatusEmergency,
		domain.FilingStatusOverdue,
	},
	domain.FilingStatusApproved: {
		domain.FilingStatusScheduled,
		domain.FilingStatusInProgress,
		domain.FilingStatusEmergency,
		domain.FilingStatusOverdue,
	},
	domain.FilingStatusScheduled: {
		domain.FilingStatusInProgress,
		domain.FilingStatusEmergency,
		domain.FilingStatusOverdue,
	},
	domain.FilingStatusInProgress: {
		domain.FilingStatusFiled,
		domain.FilingStatusScheduled,
		domain.FilingStatusFailed,
		domain.FilingStatusOverdue,
	},
	domain.FilingStatusEmergency: {
		domain.FilingStatusInProgress,
		domain.FilingStatusFiled,
		domain.FilingStatusOverdue,
		domain.FilingStatusFailed,
	},
	domain.FilingStatusOverdue: {
		domain.FilingStatusInProgress,
		domain.FilingStatusFiled,
		domain.FilingStatusFailed,
	},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to domain.FilingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the filing to the target status after validating the
// lifecycle table. An invalid transition is a business error and leaves
// the filing untouched.
func Transition(f *domain.RegulatoryFiling, to domain.FilingStatus, now time.Time) error {
	if !CanTransition(f.Status, to) {
		return errs.Business("filing.Transition",
			fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.Status, to))
	}
	f.Status = to
	f.UpdatedAt = now
	return nil
}
