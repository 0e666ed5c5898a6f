package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueItemStatus represents the status of a manual filing queue item
type QueueItemStatus string

const (
	QueueStatusPending    QueueItemStatus = "PENDING"
	QueueStatusAssigned   QueueItemStatus = "ASSIGNED"
	QueueStatusInProgress QueueItemStatus = "IN_PROGRESS"
	QueueStatusFiled      QueueItemStatus = "FILED"
	QueueStatusEscalated  QueueItemStatus = "ESCALATED"
	QueueStatusCancelled  QueueItemStatus = "CANCELLED"
)

// QueuePriority represents the urgency of a manual filing item
type QueuePriority string

const (
	QueuePriorityLow      QueuePriority = "LOW"
	QueuePriorityNormal   QueuePriority = "NORMAL"
	QueuePriorityHigh     QueuePriority = "HIGH"
	QueuePriorityCritical QueuePriority = "CRITICAL"
)

// ManualFilingQueueItem represents a filing that automated submission
// gave up on and a compliance officer must complete by hand.
type ManualFilingQueueItem struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CaseNumber string    `json:"case_number" db:"case_number"`

	// Subject
	FilingID   uuid.UUID  `json:"filing_id" db:"filing_id"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	AlertID    *uuid.UUID `json:"alert_id,omitempty" db:"alert_id"`
	FilingType FilingType `json:"filing_type" db:"filing_type"`
	AlertType  AlertType  `json:"alert_type" db:"alert_type"`

	// Classification
	Status   QueueItemStatus `json:"status" db:"status"`
	Priority QueuePriority   `json:"priority" db:"priority"`
	Reason   string          `json:"reason" db:"reason"`
	Team     string          `json:"team" db:"team"`

	// Assignment
	AssignedTo *string    `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedAt *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`

	// Deadline carried over from the filing
	Deadline time.Time `json:"deadline" db:"deadline"`

	// Resolution
	Resolution string     `json:"resolution,omitempty" db:"resolution"`
	ResolvedBy *string    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	Version int64 `json:"version" db:"version"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the item can no longer change state.
// ESCALATED is not terminal: an escalated item still reaches FILED or
// CANCELLED once leadership resolves it.
func (i *ManualFilingQueueItem) IsTerminal() bool {
	return i.Status == QueueStatusFiled ||
		i.Status == QueueStatusCancelled
}

// IsOverdue returns true if a non-terminal item is past its deadline
func (i *ManualFilingQueueItem) IsOverdue(now time.Time) bool {
	return !i.IsTerminal() && now.After(i.Deadline)
}

// CanAssign returns true if the item can be assigned
func (i *ManualFilingQueueItem) CanAssign() bool {
	return i.Status == QueueStatusPending || i.Status == QueueStatusAssigned
}

// QueueItemSummary is a lean DTO for list views
type QueueItemSummary struct {
	ID         uuid.UUID       `json:"id"`
	CaseNumber string          `json:"case_number"`
	FilingID   uuid.UUID       `json:"filing_id"`
	EntityID   string          `json:"entity_id"`
	Status     QueueItemStatus `json:"status"`
	Priority   QueuePriority   `json:"priority"`
	Team       string          `json:"team"`
	AssignedTo *string         `json:"assigned_to,omitempty"`
	Deadline   time.Time       `json:"deadline"`
	IsOverdue  bool            `json:"is_overdue"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToSummary converts ManualFilingQueueItem to QueueItemSummary
func (i *ManualFilingQueueItem) ToSummary(now time.Time) *QueueItemSummary {
	return &QueueItemSummary{
		ID:         i.ID,
		CaseNumber: i.CaseNumber,
		FilingID:   i.FilingID,
		EntityID:   i.EntityID,
		Status:     i.Status,
		Priority:   i.Priority,
		Team:       i.Team,
		AssignedTo: i.AssignedTo,
		Deadline:   i.Deadline,
		IsOverdue:  i.IsOverdue(now),
		CreatedAt:  i.CreatedAt,
	}
}
