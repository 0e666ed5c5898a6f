package manualqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// ErrInvalidTransition is returned for a queue status change outside
// the lifecycle table.
var ErrInvalidTransition = errors.New("invalid queue item status transition")

// transitions is the queue item lifecycle. CANCELLED is reachable from
// every non-terminal status.
var transitions = map[domain.QueueItemStatus][]domain.QueueItemStatus{
	domain.QueueStatusPending: {
		domain.QueueStatusAssigned,
		domain.QueueStatusCancelled,
	},
	domain.QueueStatusAssigned: {
		domain.QueueStatusInProgress,
		domain.QueueStatusEscalated,
		domain.QueueStatusCancelled,
	},
	domain.QueueStatusInProgress: {
		domain.QueueStatusFiled,
		domain.QueueStatusEscalated,
		domain.QueueStatusCancelled,
	},
	domain.QueueStatusEscalated: {
		domain.QueueStatusInProgress,
		domain.QueueStatusFiled,
		domain.QueueStatusCancelled,
	},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to domain.QueueItemStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PriorityFor derives the item priority from its deadline. Pure: same
// deadline and clock always yield the same priority.
func PriorityFor(deadline, now time.Time, cfg *config.QueueConfig) domain.QueuePriority {
	remaining := deadline.Sub(now)
	switch {
	case remaining <= 0:
		return domain.QueuePriorityCritical
	case remaining <= cfg.HighPriorityWindow:
		return domain.QueuePriorityHigh
	case remaining <= cfg.NormalPriorityWindow:
		return domain.QueuePriorityNormal
	default:
		return domain.QueuePriorityLow
	}
}

// TeamFor routes an item to the desk that owns the alert type
func TeamFor(alertType domain.AlertType) string {
	switch alertType {
	case domain.AlertTypeSanctionsMatch, domain.AlertTypePEPMatch:
		return "sanctions-desk"
	case domain.AlertTypeStructuring, domain.AlertTypeMoneyLaundering, domain.AlertTypeTerroristFinancing:
		return "aml-desk"
	default:
		return "general-compliance"
	}
}

// Repository persists queue items with versioned updates
type Repository interface {
	Create(ctx context.Context, item *domain.ManualFilingQueueItem) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ManualFilingQueueItem, error)
	Update(ctx context.Context, item *domain.ManualFilingQueueItem) error
	ListOpen(ctx context.Context) ([]*domain.ManualFilingQueueItem, error)
}

const versionRetryLimit = 5

// Service manages the manual filing queue
type Service struct {
	repo Repository
	cfg  *config.QueueConfig
	clk  clock.Clock
	log  *logger.Logger
}

// NewService creates a manual queue service
func NewService(repo Repository, cfg *config.QueueConfig, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		clk:  clk,
		log:  log.Named("manual_queue"),
	}
}

// EnqueueFiling creates a PENDING item for a filing whose automated
// submission gave up.
func (s *Service) EnqueueFiling(ctx context.Context, f *domain.RegulatoryFiling, reason string) (*domain.ManualFilingQueueItem, error) {
	now := s.clk.Now()

	item := &domain.ManualFilingQueueItem{
		ID:         uuid.New(),
		CaseNumber: s.nextCaseNumber(now),
		FilingID:   f.ID,
		EntityID:   f.EntityID,
		AlertID:    f.AlertID,
		FilingType: f.FilingType,
		AlertType:  f.AlertType,
		Status:     domain.QueueStatusPending,
		Priority:   PriorityFor(f.Deadline, now, s.cfg),
		Reason:     reason,
		Team:       TeamFor(f.AlertType),
		Deadline:   f.Deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create queue item: %w", err)
	}

	return item, nil
}

// Assign hands the item to an officer
func (s *Service) Assign(ctx context.Context, id uuid.UUID, officer string) (*domain.ManualFilingQueueItem, error) {
	return s.updateItem(ctx, id, func(item *domain.ManualFilingQueueItem) error {
		if !item.CanAssign() {
			return errs.Business("manualqueue.Assign",
				fmt.Errorf("cannot assign item in status %s", item.Status))
		}
		if err := s.transition(item, domain.QueueStatusAssigned); err != nil {
			return err
		}
		now := s.clk.Now()
		item.AssignedTo = &officer
		item.AssignedAt = &now
		return nil
	})
}

// Start marks the item as being worked on
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*domain.ManualFilingQueueItem, error) {
	return s.updateItem(ctx, id, func(item *domain.ManualFilingQueueItem) error {
		return s.transition(item, domain.QueueStatusInProgress)
	})
}

// Complete records a successful manual filing
func (s *Service) Complete(ctx context.Context, id uuid.UUID, officer, resolution string) (*domain.ManualFilingQueueItem, error) {
	return s.updateItem(ctx, id, func(item *domain.ManualFilingQueueItem) error {
		if err := s.transition(item, domain.QueueStatusFiled); err != nil {
			return err
		}
		now := s.clk.Now()
		item.Resolution = resolution
		item.ResolvedBy = &officer
		item.ResolvedAt = &now
		return nil
	})
}

// Escalate pushes the item up the chain
func (s *Service) Escalate(ctx context.Context, id uuid.UUID, reason string) (*domain.ManualFilingQueueItem, error) {
	return s.updateItem(ctx, id, func(item *domain.ManualFilingQueueItem) error {
		if err := s.transition(item, domain.QueueStatusEscalated); err != nil {
			return err
		}
		item.Resolution = reason
		return nil
	})
}

// Cancel withdraws a non-terminal item
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.ManualFilingQueueItem, error) {
	return s.updateItem(ctx, id, func(item *domain.ManualFilingQueueItem) error {
		if err := s.transition(item, domain.QueueStatusCancelled); err != nil {
			return err
		}
		item.Resolution = reason
		return nil
	})
}

// ListOpen returns open items as summaries, priorities recomputed
// against the current clock.
func (s *Service) ListOpen(ctx context.Context) ([]*domain.QueueItemSummary, error) {
	items, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open queue items: %w", err)
	}

	now := s.clk.Now()
	summaries := make([]*domain.QueueItemSummary, 0, len(items))
	for _, item := range items {
		summary := item.ToSummary(now)
		summary.Priority = PriorityFor(item.Deadline, now, s.cfg)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) transition(item *domain.ManualFilingQueueItem, to domain.QueueItemStatus) error {
	if !CanTransition(item.Status, to) {
		return errs.Business("manualqueue.transition",
			fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to))
	}
	from := item.Status
	item.Status = to
	item.UpdatedAt = s.clk.Now()
	s.log.Info("queue item status changed",
		logger.StringField("item_id", item.ID.String()),
		logger.StringField("from", string(from)),
		logger.StringField("to", string(to)),
	)
	return nil
}

func (s *Service) updateItem(ctx context.Context, id uuid.UUID, mutate func(*domain.ManualFilingQueueItem) error) (*domain.ManualFilingQueueItem, error) {
	var lastErr error
	for attempt := 0; attempt < versionRetryLimit; attempt++ {
		item, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load queue item: %w", err)
		}
		if err := mutate(item); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, item); err != nil {
			if errs.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("update queue item: %w", err)
		}
		return item, nil
	}
	return nil, errs.Conflict("manualqueue.updateItem",
		fmt.Errorf("gave up after %d version conflicts: %w", versionRetryLimit, lastErr))
}

func (s *Service) nextCaseNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("MFQ-%d-%s", now.Year(), suffix)
}
