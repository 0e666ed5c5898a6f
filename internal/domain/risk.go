package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel represents the risk classification of a transaction
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Risk level thresholds on the 0-100 score scale
const (
	ThresholdMedium   = 25.0
	ThresholdHigh     = 50.0
	ThresholdCritical = 75.0
)

// CalculateRiskLevel maps a composite score to a risk level
func CalculateRiskLevel(score float64) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskLevelCritical
	case score >= ThresholdHigh:
		return RiskLevelHigh
	case score >= ThresholdMedium:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// RiskFactor represents an individual scoring component
type RiskFactor struct {
	Factor      string  `json:"factor"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// RiskAssessment is the result of scoring a single transaction
type RiskAssessment struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`

	Score float64   `json:"score"`
	Level RiskLevel `json:"level"`

	Factors []RiskFactor `json:"factors,omitempty"`

	// FailSecure marks an assessment produced by the elevated fallback
	// path after a scoring error.
	FailSecure bool   `json:"fail_secure"`
	FailReason string `json:"fail_reason,omitempty"`

	AssessedAt time.Time `json:"assessed_at"`
	DurationMs int64     `json:"duration_ms"`
}

// IsHighRisk returns true for HIGH and CRITICAL assessments
func (a *RiskAssessment) IsHighRisk() bool {
	return a.Level == RiskLevelHigh || a.Level == RiskLevelCritical
}

// UserRiskProfile holds the behavioral baseline used for anomaly scoring
type UserRiskProfile struct {
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// Amount baseline over the trailing observation window
	MeanAmount   float64 `json:"mean_amount" db:"mean_amount"`
	StdDevAmount float64 `json:"std_dev_amount" db:"std_dev_amount"`
	SampleCount  int     `json:"sample_count" db:"sample_count"`

	// Component risks, each 0-100
	HistoricalScore float64 `json:"historical_score" db:"historical_score"`
	DeviceScore     float64 `json:"device_score" db:"device_score"`

	// Known devices and destination countries seen for this user
	KnownDevices   []string `json:"known_devices,omitempty" db:"known_devices"`
	KnownCountries []string `json:"known_countries,omitempty" db:"known_countries"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsKnownDevice returns true if deviceID has been seen before
func (p *UserRiskProfile) IsKnownDevice(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	for _, d := range p.KnownDevices {
		if d == deviceID {
			return true
		}
	}
	return false
}

// IsKnownCountry returns true if the user has transacted with the
// country before. A domestic transaction has no counterparty country
// and is never novel.
func (p *UserRiskProfile) IsKnownCountry(country string) bool {
	if country == "" {
		return true
	}
	for _, c := range p.KnownCountries {
		if c == country {
			return true
		}
	}
	return false
}
