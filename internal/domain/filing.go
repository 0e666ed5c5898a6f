package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FilingType represents the type of regulatory filing
type FilingType string

const (
	FilingTypeSAR FilingType = "SAR" // Suspicious Activity Report
	FilingTypeCTR FilingType = "CTR" // Currency Transaction Report
)

// FilingStatus represents the lifecycle state of a filing
type FilingStatus string

const (
	FilingStatusDraft      FilingStatus = "DRAFT"
	FilingStatusReview     FilingStatus = "PENDING_REVIEW"
	FilingStatusApproved   FilingStatus = "APPROVED"
	FilingStatusScheduled  FilingStatus = "SCHEDULED"
	FilingStatusInProgress FilingStatus = "FILING_IN_PROGRESS"
	FilingStatusFiled      FilingStatus = "FILED"
	FilingStatusEmergency  FilingStatus = "EMERGENCY_FILING"
	FilingStatusOverdue    FilingStatus = "OVERDUE"
	FilingStatusFailed     FilingStatus = "FAILED"
)

// Reminder offsets before the deadline, encoded as bits in RemindersSent
const (
	ReminderSevenDays = 1 << iota
	ReminderThreeDays
	ReminderOneDay
)

// RegulatoryFiling represents a SAR or CTR filing
type RegulatoryFiling struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FilingNumber string    `json:"filing_number" db:"filing_number"`
	BSAFilingID  string    `json:"bsa_filing_id,omitempty" db:"bsa_filing_id"` // FinCEN BSA ID

	// Type
	FilingType FilingType   `json:"filing_type" db:"filing_type"`
	Status     FilingStatus `json:"status" db:"status"`

	// Subject
	EntityID       string      `json:"entity_id" db:"entity_id"`
	AlertID        *uuid.UUID  `json:"alert_id,omitempty" db:"alert_id"`
	AlertType      AlertType   `json:"alert_type" db:"alert_type"`
	TransactionIDs []uuid.UUID `json:"transaction_ids" db:"transaction_ids"`

	// Amounts
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency    string          `json:"currency" db:"currency"`

	// Narrative (for SAR)
	Narrative string `json:"narrative,omitempty" db:"narrative"`

	// Workflow
	PreparedBy string  `json:"prepared_by" db:"prepared_by"`
	ReviewedBy *string `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ApprovedBy *string `json:"approved_by,omitempty" db:"approved_by"`

	// Deadline tracking. Deadline is detection time plus the regulatory
	// filing window.
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
	Deadline   time.Time `json:"deadline" db:"deadline"`

	// Submission
	ScheduledFor       *time.Time `json:"scheduled_for,omitempty" db:"scheduled_for"`
	FiledAt            *time.Time `json:"filed_at,omitempty" db:"filed_at"`
	ConfirmationNumber string     `json:"confirmation_number,omitempty" db:"confirmation_number"`
	FailureReason      string     `json:"failure_reason,omitempty" db:"failure_reason"`

	// Retry and escalation bookkeeping
	RetryCount        int  `json:"retry_count" db:"retry_count"`
	EscalatedToManual bool `json:"escalated_to_manual" db:"escalated_to_manual"`
	IncidentOpened    bool `json:"incident_opened" db:"incident_opened"`
	RemindersSent     int  `json:"reminders_sent" db:"reminders_sent"`

	// Version guards concurrent updates. Every persisted write
	// compares and increments it.
	Version int64 `json:"version" db:"version"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsDraft returns true if filing is still in draft
func (f *RegulatoryFiling) IsDraft() bool {
	return f.Status == FilingStatusDraft
}

// IsTerminal returns true if the filing can no longer change state
func (f *RegulatoryFiling) IsTerminal() bool {
	return f.Status == FilingStatusFiled || f.Status == FilingStatusFailed
}

// IsFiled returns true if the filing reached the regulator
func (f *RegulatoryFiling) IsFiled() bool {
	return f.Status == FilingStatusFiled
}

// IsOverdue returns true if the filing is past deadline and not yet filed
func (f *RegulatoryFiling) IsOverdue(now time.Time) bool {
	return !f.IsTerminal() && now.After(f.Deadline)
}

// TimeRemaining returns the time left until the deadline. Negative when
// overdue.
func (f *RegulatoryFiling) TimeRemaining(now time.Time) time.Duration {
	return f.Deadline.Sub(now)
}

// ReminderSent reports whether the reminder for the given bit was sent
func (f *RegulatoryFiling) ReminderSent(bit int) bool {
	return f.RemindersSent&bit != 0
}

// MarkReminderSent records the reminder for the given bit
func (f *RegulatoryFiling) MarkReminderSent(bit int) {
	f.RemindersSent |= bit
}

// FilingSummary is a lean DTO for list views
type FilingSummary struct {
	ID           uuid.UUID       `json:"id"`
	FilingNumber string          `json:"filing_number"`
	FilingType   FilingType      `json:"filing_type"`
	Status       FilingStatus    `json:"status"`
	EntityID     string          `json:"entity_id"`
	AlertType    AlertType       `json:"alert_type"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Deadline     time.Time       `json:"deadline"`
	IsOverdue    bool            `json:"is_overdue"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToSummary converts RegulatoryFiling to FilingSummary
func (f *RegulatoryFiling) ToSummary(now time.Time) *FilingSummary {
	return &FilingSummary{
		ID:           f.ID,
		FilingNumber: f.FilingNumber,
		FilingType:   f.FilingType,
		Status:       f.Status,
		EntityID:     f.EntityID,
		AlertType:    f.AlertType,
		TotalAmount:  f.TotalAmount,
		Deadline:     f.Deadline,
		IsOverdue:    f.IsOverdue(now),
		RetryCount:   f.RetryCount,
		CreatedAt:    f.CreatedAt,
	}
}
