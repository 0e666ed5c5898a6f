package filing

import (
	"testing"
	"time"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

var allStatuses = []domain.FilingStatus{
	domain.FilingStatusDraft,
	domain.FilingStatusReview,
	domain.FilingStatusApproved,
	domain.FilingStatusScheduled,
	domain.FilingStatusInProgress,
	domain.FilingStatusFiled,
	domain.FilingStatusEmergency,
	domain.FilingStatusOverdue,
	domain.FilingStatusFailed,
}

// allowed mirrors the lifecycle table pair by pair so a table edit has
// to be made twice to slip through.
var allowed = map[domain.FilingStatus]map[domain.FilingStatus]bool{
	domain.FilingStatusDraft: {
		domain.FilingStatusReview:    true,
		domain.FilingStatusEmergency: true,
		domain.FilingStatusOverdue:   true,
	},
	domain.FilingStatusReview: {
		domain.FilingStatusApproved:  true,
		domain.FilingStatusDraft:     true,
		domain.FilingStatusEmergency: true,
		domain.FilingStatusOverdue:   true,
	},
	domain.FilingStatusApproved: {
		domain.FilingStatusScheduled:  true,
		domain.FilingStatusInProgress: true,
		domain.FilingStatusEmergency:  true,
		domain.FilingStatusOverdue:    true,
	},
	domain.FilingStatusScheduled: {
		domain.FilingStatusInProgress: true,
		domain.FilingStatusEmergency:  true,
		domain.FilingStatusOverdue:    true,
	},
	domain.FilingStatusInProgress: {
		domain.FilingStatusFiled:     true,
		domain.FilingStatusScheduled: true,
		domain.FilingStatusFailed:    true,
		domain.FilingStatusOverdue:   true,
	},
	domain.FilingStatusEmergency: {
		domain.FilingStatusInProgress: true,
		domain.FilingStatusFiled:      true,
		domain.FilingStatusOverdue:    true,
		domain.FilingStatusFailed:     true,
	},
	domain.FilingStatusOverdue: {
		domain.FilingStatusInProgress: true,
		domain.FilingStatusFiled:      true,
		domain.FilingStatusFailed:     true,
	},
	domain.FilingStatusFiled:  {},
	domain.FilingStatusFailed: {},
}

func TestCanTransition_FullMatrix(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, terminal := range []domain.FilingStatus{domain.FilingStatusFiled, domain.FilingStatusFailed} {
		for _, to := range allStatuses {
			f := &domain.RegulatoryFiling{Status: terminal}
			if err := Transition(f, to, now); err == nil {
				t.Errorf("Transition(%s, %s) succeeded, terminal states must be final", terminal, to)
			}
			if f.Status != terminal {
				t.Errorf("failed transition mutated status to %s", f.Status)
			}
		}
	}
}

func TestTransition_InvalidIsBusinessError(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &domain.RegulatoryFiling{Status: domain.FilingStatusDraft}

	err := Transition(f, domain.FilingStatusFiled, now)
	if err == nil {
		t.Fatal("draft filed directly without review")
	}
	if !errs.IsBusiness(err) {
		t.Fatalf("invalid transition classified as %v, want business", errs.KindOf(err))
	}
	if f.Status != domain.FilingStatusDraft {
		t.Fatalf("status mutated on rejected transition: %s", f.Status)
	}
}

func TestTransition_ValidUpdatesStatusAndTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &domain.RegulatoryFiling{Status: domain.FilingStatusDraft}

	if err := Transition(f, domain.FilingStatusReview, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if f.Status != domain.FilingStatusReview {
		t.Fatalf("status = %s, want %s", f.Status, domain.FilingStatusReview)
	}
	if !f.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt = %s, want %s", f.UpdatedAt, now)
	}
}
