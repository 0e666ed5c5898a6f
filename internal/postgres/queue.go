package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

// QueueRepo persists manual filing queue items
type QueueRepo struct {
	pool *pgxpool.Pool
}

// NewQueueRepo creates a queue repository
func NewQueueRepo(pool *pgxpool.Pool) *QueueRepo {
	return &QueueRepo{pool: pool}
}

const queueColumns = `
	id, case_number, filing_id, entity_id, alert_id,
	filing_type, alert_type, status, priority, reason, team,
	assigned_to, assigned_at, deadline,
	resolution, resolved_by, resolved_at,
	version, created_at, updated_at`

// Create inserts a new item at version 1
func (r *QueueRepo) Create(ctx context.Context, item *domain.ManualFilingQueueItem) error {
	item.Version = 1
	_, err := r.pool.Exec(ctx, `
		INSERT INTO manual_filing_queue (`+queueColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		item.ID, item.CaseNumber, item.FilingID, item.EntityID, item.AlertID,
		item.FilingType, item.AlertType, item.Status, item.Priority, item.Reason, item.Team,
		item.AssignedTo, item.AssignedAt, item.Deadline,
		item.Resolution, item.ResolvedBy, item.ResolvedAt,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// Get loads an item by ID
func (r *QueueRepo) Get(ctx context.Context, id uuid.UUID) (*domain.ManualFilingQueueItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM manual_filing_queue WHERE id = $1`, id)
	return scanQueueItem(row)
}

// Update performs the versioned compare-and-swap
func (r *QueueRepo) Update(ctx context.Context, item *domain.ManualFilingQueueItem) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE manual_filing_queue SET
			status = $3, priority = $4,
			assigned_to = $5, assigned_at = $6,
			resolution = $7, resolved_by = $8, resolved_at = $9,
			version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $2`,
		item.ID, item.Version,
		item.Status, item.Priority,
		item.AssignedTo, item.AssignedAt,
		item.Resolution, item.ResolvedBy, item.ResolvedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("postgres.QueueRepo.Update",
			fmt.Errorf("queue item %s version %d is stale", item.ID, item.Version))
	}
	item.Version++
	return nil
}

// ListOpen returns non-terminal items ordered by deadline
func (r *QueueRepo) ListOpen(ctx context.Context) ([]*domain.ManualFilingQueueItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM manual_filing_queue
		WHERE status NOT IN ($1, $2)
		ORDER BY deadline`,
		domain.QueueStatusFiled, domain.QueueStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("list open queue items: %w", err)
	}
	defer rows.Close()

	var out []*domain.ManualFilingQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanQueueItem(row pgx.Row) (*domain.ManualFilingQueueItem, error) {
	var item domain.ManualFilingQueueItem
	err := row.Scan(
		&item.ID, &item.CaseNumber, &item.FilingID, &item.EntityID, &item.AlertID,
		&item.FilingType, &item.AlertType, &item.Status, &item.Priority, &item.Reason, &item.Team,
		&item.AssignedTo, &item.AssignedAt, &item.Deadline,
		&item.Resolution, &item.ResolvedBy, &item.ResolvedAt,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Data("postgres.QueueRepo", fmt.Errorf("queue item not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	return &item, nil
}
