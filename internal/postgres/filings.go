package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

// FilingRepo persists regulatory filings
type FilingRepo struct {
	pool *pgxpool.Pool
}

// NewFilingRepo creates a filing repository
func NewFilingRepo(pool *pgxpool.Pool) *FilingRepo {
	return &FilingRepo{pool: pool}
}

const filingColumns = `
	id, filing_number, bsa_filing_id, filing_type, status,
	entity_id, alert_id, alert_type, transaction_ids,
	total_amount, currency, narrative,
	prepared_by, reviewed_by, approved_by,
	detected_at, deadline, scheduled_for, filed_at,
	confirmation_number, failure_reason,
	retry_count, escalated_to_manual, incident_opened, reminders_sent,
	version, created_at, updated_at`

// Create inserts a new filing at version 1
func (r *FilingRepo) Create(ctx context.Context, f *domain.RegulatoryFiling) error {
	f.Version = 1
	_, err := r.pool.Exec(ctx, `
		INSERT INTO regulatory_filings (`+filingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		f.ID, f.FilingNumber, f.BSAFilingID, f.FilingType, f.Status,
		f.EntityID, f.AlertID, f.AlertType, f.TransactionIDs,
		f.TotalAmount, f.Currency, f.Narrative,
		f.PreparedBy, f.ReviewedBy, f.ApprovedBy,
		f.DetectedAt, f.Deadline, f.ScheduledFor, f.FiledAt,
		f.ConfirmationNumber, f.FailureReason,
		f.RetryCount, f.EscalatedToManual, f.IncidentOpened, f.RemindersSent,
		f.Version, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert filing: %w", err)
	}
	return nil
}

// Get loads a filing by ID
func (r *FilingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.RegulatoryFiling, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+filingColumns+`
		FROM regulatory_filings WHERE id = $1`, id)
	return scanFiling(row)
}

// Update performs the versioned compare-and-swap. Zero rows affected
// means the version moved (or the row vanished) and the caller must
// reload.
func (r *FilingRepo) Update(ctx context.Context, f *domain.RegulatoryFiling) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE regulatory_filings SET
			bsa_filing_id = $3, status = $4, narrative = $5,
			reviewed_by = $6, approved_by = $7,
			scheduled_for = $8, filed_at = $9,
			confirmation_number = $10, failure_reason = $11,
			retry_count = $12, escalated_to_manual = $13, incident_opened = $14, reminders_sent = $15,
			version = version + 1, updated_at = $16
		WHERE id = $1 AND version = $2`,
		f.ID, f.Version,
		f.BSAFilingID, f.Status, f.Narrative,
		f.ReviewedBy, f.ApprovedBy,
		f.ScheduledFor, f.FiledAt,
		f.ConfirmationNumber, f.FailureReason,
		f.RetryCount, f.EscalatedToManual, f.IncidentOpened, f.RemindersSent,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update filing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("postgres.FilingRepo.Update",
			fmt.Errorf("filing %s version %d is stale", f.ID, f.Version))
	}
	f.Version++
	return nil
}

// ListActive returns non-terminal filings
func (r *FilingRepo) ListActive(ctx context.Context) ([]*domain.RegulatoryFiling, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+filingColumns+`
		FROM regulatory_filings
		WHERE status NOT IN ($1, $2)
		ORDER BY deadline`,
		domain.FilingStatusFiled, domain.FilingStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list active filings: %w", err)
	}
	defer rows.Close()
	return scanFilings(rows)
}

// ListScheduledBefore returns scheduled filings due at or before cutoff
func (r *FilingRepo) ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*domain.RegulatoryFiling, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+filingColumns+`
		FROM regulatory_filings
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for`,
		domain.FilingStatusScheduled, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list scheduled filings: %w", err)
	}
	defer rows.Close()
	return scanFilings(rows)
}

// CountByStatus aggregates filing counts created since the given time
func (r *FilingRepo) CountByStatus(ctx context.Context, since time.Time) (map[domain.FilingStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM regulatory_filings
		WHERE created_at >= $1
		GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("count filings: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.FilingStatus]int)
	for rows.Next() {
		var status domain.FilingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountFiledOnTime reports filings filed before their deadline versus
// all filings whose deadline fell in the period.
func (r *FilingRepo) CountFiledOnTime(ctx context.Context, since time.Time) (int, int, error) {
	var onTime, total int
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $2 AND filed_at <= deadline),
			COUNT(*)
		FROM regulatory_filings
		WHERE deadline >= $1`, since, domain.FilingStatusFiled).Scan(&onTime, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count on-time filings: %w", err)
	}
	return onTime, total, nil
}

func scanFiling(row pgx.Row) (*domain.RegulatoryFiling, error) {
	var f domain.RegulatoryFiling
	err := row.Scan(
		&f.ID, &f.FilingNumber, &f.BSAFilingID, &f.FilingType, &f.Status,
		&f.EntityID, &f.AlertID, &f.AlertType, &f.TransactionIDs,
		&f.TotalAmount, &f.Currency, &f.Narrative,
		&f.PreparedBy, &f.ReviewedBy, &f.ApprovedBy,
		&f.DetectedAt, &f.Deadline, &f.ScheduledFor, &f.FiledAt,
		&f.ConfirmationNumber, &f.FailureReason,
		&f.RetryCount, &f.EscalatedToManual, &f.IncidentOpened, &f.RemindersSent,
		&f.Version, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Data("postgres.FilingRepo", fmt.Errorf("filing not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("scan filing: %w", err)
	}
	return &f, nil
}

func scanFilings(rows pgx.Rows) ([]*domain.RegulatoryFiling, error) {
	var out []*domain.RegulatoryFiling
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
