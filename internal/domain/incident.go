package domain

import (
	"time"

	"github.com/google/uuid"
)

// IncidentSeverity represents how severe a compliance incident is
type IncidentSeverity string

const (
	IncidentSeverityMajor    IncidentSeverity = "MAJOR"
	IncidentSeverityCritical IncidentSeverity = "CRITICAL"
)

// ComplianceIncident records a regulatory breach such as a missed
// filing deadline. Incidents feed the executive report.
type ComplianceIncident struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	FilingID    uuid.UUID        `json:"filing_id" db:"filing_id"`
	EntityID    string           `json:"entity_id" db:"entity_id"`
	Severity    IncidentSeverity `json:"severity" db:"severity"`
	Description string           `json:"description" db:"description"`
	OpenedAt    time.Time        `json:"opened_at" db:"opened_at"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
}

// IsOpen returns true while the incident is unresolved
func (c *ComplianceIncident) IsOpen() bool {
	return c.ClosedAt == nil
}
