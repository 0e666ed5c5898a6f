package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-service/internal/domain"
)

// ProfileRepo reads user risk baselines
type ProfileRepo struct {
	pool *pgxpool.Pool
}

// NewProfileRepo creates a profile repository
func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// GetByUserID returns the baseline for a user. A user with no row is a
// cold start and gets an empty profile, not an error.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserRiskProfile, error) {
	var p domain.UserRiskProfile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, mean_amount, std_dev_amount, sample_count,
		       historical_score, device_score, known_devices,
		       known_countries, updated_at
		FROM user_risk_profiles WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.MeanAmount, &p.StdDevAmount, &p.SampleCount,
		&p.HistoricalScore, &p.DeviceScore, &p.KnownDevices,
		&p.KnownCountries, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.UserRiskProfile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk profile: %w", err)
	}
	return &p, nil
}

// IncidentRepo persists compliance incidents
type IncidentRepo struct {
	pool *pgxpool.Pool
}

// NewIncidentRepo creates an incident repository
func NewIncidentRepo(pool *pgxpool.Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

// Open records a new compliance incident
func (r *IncidentRepo) Open(ctx context.Context, inc *domain.ComplianceIncident) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO compliance_incidents
			(id, filing_id, entity_id, severity, description, opened_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		inc.ID, inc.FilingID, inc.EntityID, inc.Severity, inc.Description, inc.OpenedAt, inc.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}
