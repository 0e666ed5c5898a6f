package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertType represents the type of compliance alert. The set is closed:
// dispatch is exhaustive over these values and anything else is treated
// as a data error.
type AlertType string

const (
	AlertTypeStructuring        AlertType = "STRUCTURING"
	AlertTypeVelocity           AlertType = "VELOCITY"
	AlertTypeGeographicAnomaly  AlertType = "GEOGRAPHIC_ANOMALY"
	AlertTypeSanctionsMatch     AlertType = "SANCTIONS_MATCH"
	AlertTypePEPMatch           AlertType = "PEP_MATCH"
	AlertTypeMoneyLaundering    AlertType = "MONEY_LAUNDERING"
	AlertTypeTerroristFinancing AlertType = "TERRORIST_FINANCING"
	AlertTypeGeneric            AlertType = "GENERIC"
)

// KnownAlertTypes is the closed dispatch set
var KnownAlertTypes = map[AlertType]bool{
	AlertTypeStructuring:        true,
	AlertTypeVelocity:           true,
	AlertTypeGeographicAnomaly:  true,
	AlertTypeSanctionsMatch:     true,
	AlertTypePEPMatch:           true,
	AlertTypeMoneyLaundering:    true,
	AlertTypeTerroristFinancing: true,
	AlertTypeGeneric:            true,
}

// IsKnown returns true if t is part of the closed dispatch set
func (t AlertType) IsKnown() bool {
	return KnownAlertTypes[t]
}

// FilingMandatory returns true for alert types that always require a
// regulatory filing regardless of the requires_sar flag.
func (t AlertType) FilingMandatory() bool {
	switch t {
	case AlertTypeStructuring, AlertTypeMoneyLaundering, AlertTypeTerroristFinancing:
		return true
	default:
		return false
	}
}

// ComplianceAlert is the event consumed from the alerts topic
type ComplianceAlert struct {
	AlertID  uuid.UUID `json:"alert_id"`
	EntityID string    `json:"entity_id"`

	AlertType AlertType `json:"alert_type"`
	Severity  RiskLevel `json:"severity"`
	RiskScore float64   `json:"risk_score"`

	// Detection details
	Description   string          `json:"description,omitempty"`
	DetectionRule string          `json:"detection_rule,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	CountryCode   string          `json:"country_code,omitempty"`

	TransactionIDs []uuid.UUID `json:"transaction_ids,omitempty"`

	// RequiresSAR forces filing creation for non-mandatory types
	RequiresSAR bool `json:"requires_sar"`

	// EventTimestamp is when the upstream detector observed the activity.
	// Part of the idempotency key, unlike ingestion time.
	EventTimestamp time.Time `json:"event_timestamp"`
	DetectedAt     time.Time `json:"detected_at"`
}

// DedupKey returns the idempotency key for this alert. Two deliveries of
// the same detection share entity, type and event timestamp, so retried
// or replayed messages collapse onto one key.
func (a *ComplianceAlert) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", a.EntityID, a.AlertType, a.EventTimestamp.UTC().Format(time.RFC3339))
}

// RequiresFiling returns true if processing this alert must create a
// regulatory filing.
func (a *ComplianceAlert) RequiresFiling() bool {
	return a.AlertType.FilingMandatory() || a.RequiresSAR
}

// AlertEnvelope is the Kafka message wrapper for compliance alerts
type AlertEnvelope struct {
	EventID   uuid.UUID        `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Alert     *ComplianceAlert `json:"payload"`
}

// AuditRecord captures a compliance-relevant action for the audit log
type AuditRecord struct {
	ID         uuid.UUID `json:"id"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
