package filing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// Repository persists filings. Update performs a compare-and-swap on
// Version and returns a conflict error when the row moved underneath
// the caller.
type Repository interface {
	Create(ctx context.Context, f *domain.RegulatoryFiling) error
	Get(ctx context.Context, id uuid.UUID) (*domain.RegulatoryFiling, error)
	Update(ctx context.Context, f *domain.RegulatoryFiling) error
	ListActive(ctx context.Context) ([]*domain.RegulatoryFiling, error)
	ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*domain.RegulatoryFiling, error)
	CountByStatus(ctx context.Context, since time.Time) (map[domain.FilingStatus]int, error)
	CountFiledOnTime(ctx context.Context, since time.Time) (onTime int, total int, err error)
}

// Gateway submits filings to the regulator
type Gateway interface {
	Submit(ctx context.Context, f *domain.RegulatoryFiling) (confirmation string, err error)
}

// Notifier delivers escalation messages
type Notifier interface {
	NotifyComplianceOfficer(ctx context.Context, subject, body string) error
	NotifyExecutives(ctx context.Context, subject, body string) error
}

// Audit records compliance-relevant actions
type Audit interface {
	Record(ctx context.Context, rec *domain.AuditRecord) error
}

// Incidents opens compliance incidents for regulatory breaches
type Incidents interface {
	Open(ctx context.Context, inc *domain.ComplianceIncident) error
}

// ManualQueue escalates filings to human processing
type ManualQueue interface {
	EnqueueFiling(ctx context.Context, f *domain.RegulatoryFiling, reason string) (*domain.ManualFilingQueueItem, error)
}

// Bounded retries when losing version races. Each loser reloads the
// current row, so forward progress is guaranteed.
const versionRetryLimit = 5

// Service drives the filing lifecycle
type Service struct {
	repo      Repository
	gateway   Gateway
	notifier  Notifier
	audit     Audit
	incidents Incidents
	manual    ManualQueue

	cfg    *config.FilingConfig
	clk    clock.Clock
	log    *logger.Logger
	tracer trace.Tracer
}

// NewService creates a filing service
func NewService(
	repo Repository,
	gateway Gateway,
	notifier Notifier,
	audit Audit,
	incidents Incidents,
	manual ManualQueue,
	cfg *config.FilingConfig,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		notifier:  notifier,
		audit:     audit,
		incidents: incidents,
		manual:    manual,
		cfg:       cfg,
		clk:       clk,
		log:       log.Named("filing"),
		tracer:    otel.Tracer("compliance-service/filing"),
	}
}

// CreateFromAlert opens a DRAFT filing for an alert that mandates one.
// The regulatory deadline runs from detection, not from ingestion.
func (s *Service) CreateFromAlert(ctx context.Context, alert *domain.ComplianceAlert) (*domain.RegulatoryFiling, error) {
	ctx, span := s.tracer.Start(ctx, "filing.CreateFromAlert",
		trace.WithAttributes(attribute.String("alert_type", string(alert.AlertType))))
	defer span.End()

	now := s.clk.Now()
	alertID := alert.AlertID

	f := &domain.RegulatoryFiling{
		ID:             uuid.New(),
		FilingNumber:   s.nextFilingNumber(domain.FilingTypeSAR, now),
		FilingType:     domain.FilingTypeSAR,
		Status:         domain.FilingStatusDraft,
		EntityID:       alert.EntityID,
		AlertID:        &alertID,
		AlertType:      alert.AlertType,
		TransactionIDs: alert.TransactionIDs,
		TotalAmount:    alert.Amount,
		Currency:       alert.Currency,
		PreparedBy:     "compliance-service",
		DetectedAt:     alert.EventTimestamp,
		Deadline:       alert.EventTimestamp.Add(time.Duration(s.cfg.DeadlineDays) * 24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create filing: %w", err)
	}

	s.log.FilingCreated(f.ID.String(), f.FilingNumber, f.EntityID, f.Deadline)
	s.recordAudit(ctx, "FILING_CREATED", f, string(alert.AlertType))

	return f, nil
}

// SubmitForReview moves a draft into the review queue
func (s *Service) SubmitForReview(ctx context.Context, id uuid.UUID, narrative string) (*domain.RegulatoryFiling, error) {
	return s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
		if narrative != "" {
			f.Narrative = narrative
		}
		return s.transition(ctx, f, domain.FilingStatusReview, "officer")
	})
}

// Approve marks a reviewed filing ready for submission
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver string) (*domain.RegulatoryFiling, error) {
	return s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
		if err := s.transition(ctx, f, domain.FilingStatusApproved, approver); err != nil {
			return err
		}
		f.ApprovedBy = &approver
		return nil
	})
}

// Schedule queues an approved filing for automated submission
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (*domain.RegulatoryFiling, error) {
	return s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
		if err := s.transition(ctx, f, domain.FilingStatusScheduled, "scheduler"); err != nil {
			return err
		}
		f.ScheduledFor = &at
		return nil
	})
}

// AttemptFiling submits the filing to the regulator. On failure the
// retry counter advances; past the configured maximum the filing fails
// permanently and lands in the manual queue exactly once.
func (s *Service) AttemptFiling(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "filing.AttemptFiling",
		trace.WithAttributes(attribute.String("filing_id", id.String())))
	defer span.End()

	f, err := s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
		return s.transition(ctx, f, domain.FilingStatusInProgress, "auto-filer")
	})
	if err != nil {
		return err
	}

	confirmation, submitErr := s.gateway.Submit(ctx, f)
	if submitErr == nil {
		_, err := s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
			if err := s.transition(ctx, f, domain.FilingStatusFiled, "auto-filer"); err != nil {
				return err
			}
			now := s.clk.Now()
			f.FiledAt = &now
			f.ConfirmationNumber = confirmation
			return nil
		})
		return err
	}

	s.log.Warn("filing submission failed",
		logger.StringField("filing_id", id.String()),
		logger.ErrorField(submitErr),
	)

	var escalated *domain.RegulatoryFiling
	_, err = s.updateFiling(ctx, id, func(f *domain.RegulatoryFiling) error {
		escalated = nil
		f.RetryCount++
		f.FailureReason = submitErr.Error()

		if f.RetryCount > s.cfg.MaxRetries {
			if err := s.transition(ctx, f, domain.FilingStatusFailed, "auto-filer"); err != nil {
				return err
			}
			// The flag flips inside the same versioned write, so a
			// concurrent attempt cannot enqueue a second item.
			if !f.EscalatedToManual {
				f.EscalatedToManual = true
				escalated = f
			}
			return nil
		}

		if err := s.transition(ctx, f, domain.FilingStatusScheduled, "auto-filer"); err != nil {
			return err
		}
		next := s.clk.Now().Add(retryDelay(f.RetryCount))
		f.ScheduledFor = &next
		return nil
	})
	if err != nil {
		return err
	}

	if escalated != nil {
		reason := fmt.Sprintf("automated filing failed after %d attempts: %s", escalated.RetryCount, submitErr)
		item, qErr := s.manual.EnqueueFiling(ctx, escalated, reason)
		if qErr != nil {
			return fmt.Errorf("enqueue manual filing: %w", qErr)
		}
		s.log.ManualQueueItemCreated(item.ID.String(), escalated.ID.String(), string(item.Priority))
		s.recordAudit(ctx, "FILING_ESCALATED_TO_MANUAL", escalated, reason)

		subject := fmt.Sprintf("Filing %s requires manual submission", escalated.FilingNumber)
		if nErr := s.notifier.NotifyComplianceOfficer(ctx, subject, reason); nErr != nil {
			s.log.Error("officer notification failed", logger.ErrorField(nErr))
		}
	}

	return nil
}

// SweepDrafts advances automated draft filings into review with a
// generated narrative, so every alert-born filing reaches an officer's
// queue within one sweep interval.
func (s *Service) SweepDrafts(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "filing.SweepDrafts")
	defer span.End()

	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active filings: %w", err)
	}

	for _, f := range active {
		if f.Status != domain.FilingStatusDraft {
			continue
		}
		if _, err := s.updateFiling(ctx, f.ID, func(cur *domain.RegulatoryFiling) error {
			if cur.Status != domain.FilingStatusDraft {
				return nil
			}
			if cur.Narrative == "" {
				cur.Narrative = fmt.Sprintf("Automated %s prepared from %s alert for entity %s.",
					cur.FilingType, cur.AlertType, cur.EntityID)
			}
			return s.transition(ctx, cur, domain.FilingStatusReview, "alert-sweep")
		}); err != nil {
			s.log.Error("draft sweep failed",
				logger.StringField("filing_id", f.ID.String()),
				logger.ErrorField(err),
			)
		}
	}
	return nil
}

// SweepScheduled submits filings whose scheduled time has arrived
func (s *Service) SweepScheduled(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "filing.SweepScheduled")
	defer span.End()

	due, err := s.repo.ListScheduledBefore(ctx, s.clk.Now())
	if err != nil {
		return fmt.Errorf("list scheduled filings: %w", err)
	}

	for _, f := range due {
		if err := s.AttemptFiling(ctx, f.ID); err != nil {
			s.log.Error("scheduled filing attempt failed",
				logger.StringField("filing_id", f.ID.String()),
				logger.ErrorField(err),
			)
		}
	}
	return nil
}

// SweepDeadlines walks active filings and escalates by deadline band.
// Entering the emergency window or going overdue changes status, pages
// the compliance officer and triggers an automatic filing attempt.
func (s *Service) SweepDeadlines(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "filing.SweepDeadlines")
	defer span.End()

	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active filings: %w", err)
	}

	now := s.clk.Now()
	for _, f := range active {
		s.sendReminders(ctx, f, now)

		urgency := UrgencyOf(f.Deadline, now, s.cfg)
		switch urgency {
		case UrgencyCritical:
			if err := s.escalateCritical(ctx, f, now); err != nil {
				s.log.Error("deadline escalation failed",
					logger.StringField("filing_id", f.ID.String()),
					logger.ErrorField(err),
				)
			}
		case UrgencyHigh:
			s.log.DeadlineEscalation(f.ID.String(), string(urgency), f.TimeRemaining(now).Hours())
			subject := fmt.Sprintf("Filing %s due in under %s", f.FilingNumber, s.cfg.CriticalWindow)
			if err := s.notifier.NotifyComplianceOfficer(ctx, subject, f.FilingNumber); err != nil {
				s.log.Error("officer notification failed", logger.ErrorField(err))
			}
		case UrgencyWarning:
			s.log.DeadlineEscalation(f.ID.String(), string(urgency), f.TimeRemaining(now).Hours())
		}
	}
	return nil
}

// escalateCritical handles filings inside the emergency window or past
// the deadline.
func (s *Service) escalateCritical(ctx context.Context, f *domain.RegulatoryFiling, now time.Time) error {
	overdue := f.IsOverdue(now)
	target := domain.FilingStatusEmergency
	if overdue {
		target = domain.FilingStatusOverdue
	}

	s.log.DeadlineEscalation(f.ID.String(), string(target), f.TimeRemaining(now).Hours())

	becameOverdue := false
	updated, err := s.updateFiling(ctx, f.ID, func(cur *domain.RegulatoryFiling) error {
		// The closure re-runs after a version conflict; an aborted
		// iteration must not leave the flag set.
		becameOverdue = false
		if cur.IsTerminal() {
			return nil
		}
		// The flag flips inside the versioned write so concurrent
		// sweeps open at most one incident per filing.
		if overdue && !cur.IncidentOpened {
			becameOverdue = true
			cur.IncidentOpened = true
		}
		if cur.Status == target {
			return nil
		}
		return s.transition(ctx, cur, target, "deadline-sweep")
	})
	if err != nil {
		return err
	}
	if updated.IsTerminal() {
		return nil
	}

	subject := fmt.Sprintf("EMERGENCY: filing %s deadline at %s", updated.FilingNumber, updated.Deadline.Format(time.RFC3339))
	if overdue {
		subject = fmt.Sprintf("OVERDUE: filing %s missed deadline %s", updated.FilingNumber, updated.Deadline.Format(time.RFC3339))
	}
	if err := s.notifier.NotifyComplianceOfficer(ctx, subject, updated.FilingNumber); err != nil {
		s.log.Error("officer notification failed", logger.ErrorField(err))
	}
	if overdue {
		if err := s.notifier.NotifyExecutives(ctx, subject, updated.FilingNumber); err != nil {
			s.log.Error("executive notification failed", logger.ErrorField(err))
		}
	}

	if becameOverdue {
		inc := &domain.ComplianceIncident{
			ID:          uuid.New(),
			FilingID:    updated.ID,
			EntityID:    updated.EntityID,
			Severity:    domain.IncidentSeverityCritical,
			Description: fmt.Sprintf("regulatory filing %s overdue", updated.FilingNumber),
			OpenedAt:    now,
		}
		if err := s.incidents.Open(ctx, inc); err != nil {
			s.log.Error("incident creation failed", logger.ErrorField(err))
		}
	}

	s.recordAudit(ctx, "FILING_DEADLINE_ESCALATED", updated, string(target))

	return s.AttemptFiling(ctx, updated.ID)
}

// sendReminders delivers at most one pre-deadline reminder per filing
// and window. Crossing a nearer window supersedes the coarser ones, so
// a filing first seen a day out never also gets the week-out reminder.
func (s *Service) sendReminders(ctx context.Context, f *domain.RegulatoryFiling, now time.Time) {
	remaining := f.TimeRemaining(now)
	if remaining <= 0 {
		return
	}

	type reminder struct {
		bit    int
		within time.Duration
		label  string
	}
	reminders := []reminder{
		{domain.ReminderOneDay, 24 * time.Hour, "1 day"},
		{domain.ReminderThreeDays, 72 * time.Hour, "3 days"},
		{domain.ReminderSevenDays, 168 * time.Hour, "7 days"},
	}

	mask := 0
	label := ""
	for _, r := range reminders {
		if remaining <= r.within {
			mask |= r.bit
			if label == "" {
				label = r.label
			}
		}
	}
	if mask == 0 || mask&^f.RemindersSent == 0 {
		return
	}

	if _, err := s.updateFiling(ctx, f.ID, func(cur *domain.RegulatoryFiling) error {
		cur.RemindersSent |= mask
		return nil
	}); err != nil {
		s.log.Error("reminder bookkeeping failed", logger.ErrorField(err))
		return
	}
	f.RemindersSent |= mask

	subject := fmt.Sprintf("Filing %s due in %s", f.FilingNumber, label)
	if err := s.notifier.NotifyComplianceOfficer(ctx, subject, f.FilingNumber); err != nil {
		s.log.Error("reminder notification failed", logger.ErrorField(err))
	}
}

// updateFiling applies mutate under optimistic concurrency. Conflicts
// reload the filing and re-apply, bounded by versionRetryLimit.
func (s *Service) updateFiling(ctx context.Context, id uuid.UUID, mutate func(*domain.RegulatoryFiling) error) (*domain.RegulatoryFiling, error) {
	var lastErr error
	for attempt := 0; attempt < versionRetryLimit; attempt++ {
		f, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load filing: %w", err)
		}
		if err := mutate(f); err != nil {
			return nil, err
		}
		f.UpdatedAt = s.clk.Now()
		if err := s.repo.Update(ctx, f); err != nil {
			if errs.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("update filing: %w", err)
		}
		return f, nil
	}
	return nil, errs.Conflict("filing.updateFiling",
		fmt.Errorf("gave up after %d version conflicts: %w", versionRetryLimit, lastErr))
}

// transition wraps the table check with logging and audit
func (s *Service) transition(ctx context.Context, f *domain.RegulatoryFiling, to domain.FilingStatus, actor string) error {
	from := f.Status
	if err := Transition(f, to, s.clk.Now()); err != nil {
		return err
	}
	s.log.FilingTransition(f.ID.String(), string(from), string(to), actor)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, f *domain.RegulatoryFiling, detail string) {
	rec := &domain.AuditRecord{
		ID:         uuid.New(),
		Action:     action,
		EntityID:   f.EntityID,
		ResourceID: f.ID.String(),
		Actor:      "compliance-service",
		Detail:     detail,
		OccurredAt: s.clk.Now(),
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.log.Error("audit record failed", logger.ErrorField(err))
	}
}

// retryDelay backs off exponentially per attempt
func retryDelay(attempt int) time.Duration {
	d := time.Minute
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// nextFilingNumber generates a human-readable filing number
func (s *Service) nextFilingNumber(t domain.FilingType, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", t, now.Year(), suffix)
}
