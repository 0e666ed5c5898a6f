package filing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/manualqueue"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
	"github.com/banking/compliance-service/internal/storage/memory"
)

type fakeGateway struct {
	mu           sync.Mutex
	confirmation string
	failures     int
	calls        int
}

// Submit fails while failures > 0, then succeeds
func (g *fakeGateway) Submit(_ context.Context, _ *domain.RegulatoryFiling) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failures != 0 {
		if g.failures > 0 {
			g.failures--
		}
		return "", errs.Transient("gateway.Submit", errors.New("regulator endpoint unavailable"))
	}
	if g.confirmation == "" {
		return "BSA-CONF-0001", nil
	}
	return g.confirmation, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	officer    []string
	executives []string
}

func (f *fakeNotifier) NotifyComplianceOfficer(_ context.Context, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.officer = append(f.officer, subject)
	return nil
}

func (f *fakeNotifier) NotifyExecutives(_ context.Context, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executives = append(f.executives, subject)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAudit) Record(_ context.Context, rec *domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, rec.Action)
	return nil
}

type fakeIncidents struct {
	mu     sync.Mutex
	opened []*domain.ComplianceIncident
}

func (f *fakeIncidents) Open(_ context.Context, inc *domain.ComplianceIncident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, inc)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memory.FilingRepo
	queueRepo *memory.QueueRepo
	gateway   *fakeGateway
	notifier  *fakeNotifier
	audit     *fakeAudit
	incidents *fakeIncidents
	clk       *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, err := logger.New("compliance-service-test", "development", false)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	repo := memory.NewFilingRepo()
	queueRepo := memory.NewQueueRepo()
	gateway := &fakeGateway{}
	notifier := &fakeNotifier{}
	audit := &fakeAudit{}
	incidents := &fakeIncidents{}

	queueCfg := &config.QueueConfig{
		HighPriorityWindow:   7 * 24 * time.Hour,
		NormalPriorityWindow: 14 * 24 * time.Hour,
	}
	manual := manualqueue.NewService(queueRepo, queueCfg, clk, log)

	svc := NewService(repo, gateway, notifier, audit, incidents, manual, testFilingConfig(), clk, log)

	return &fixture{
		svc:       svc,
		repo:      repo,
		queueRepo: queueRepo,
		gateway:   gateway,
		notifier:  notifier,
		audit:     audit,
		incidents: incidents,
		clk:       clk,
	}
}

func (fx *fixture) createFiling(t *testing.T) *domain.RegulatoryFiling {
	t.Helper()
	alertID := uuid.New()
	f, err := fx.svc.CreateFromAlert(context.Background(), &domain.ComplianceAlert{
		AlertID:        alertID,
		EntityID:       "customer-42",
		AlertType:      domain.AlertTypeStructuring,
		Amount:         decimal.NewFromInt(9500),
		Currency:       "USD",
		EventTimestamp: fx.clk.Now(),
	})
	require.NoError(t, err)
	return f
}

func (fx *fixture) approveFiling(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := fx.svc.SubmitForReview(context.Background(), id, "structured deposits below CTR threshold")
	require.NoError(t, err)
	_, err = fx.svc.Approve(context.Background(), id, "officer-jones")
	require.NoError(t, err)
}

func TestCreateFromAlert_DeadlineRunsFromDetection(t *testing.T) {
	fx := newFixture(t)

	detected := time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)
	f, err := fx.svc.CreateFromAlert(context.Background(), &domain.ComplianceAlert{
		AlertID:        uuid.New(),
		EntityID:       "customer-42",
		AlertType:      domain.AlertTypeMoneyLaundering,
		EventTimestamp: detected,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.FilingStatusDraft, f.Status)
	assert.Equal(t, detected.Add(30*24*time.Hour), f.Deadline)
	assert.Contains(t, fx.audit.actions, "FILING_CREATED")
}

func TestSweepDrafts_AdvancesAutomatedFilingsToReview(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)
	require.NoError(t, fx.svc.SweepDrafts(ctx))

	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusReview, got.Status)
	assert.NotEmpty(t, got.Narrative, "sweep writes a generated narrative")

	// Idempotent: a second sweep leaves the filing where the officer
	// expects it.
	require.NoError(t, fx.svc.SweepDrafts(ctx))
	got, err = fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusReview, got.Status)
}

func TestFilingLifecycle_HappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)
	fx.approveFiling(t, f.ID)

	require.NoError(t, fx.svc.AttemptFiling(ctx, f.ID))

	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusFiled, got.Status)
	assert.Equal(t, "BSA-CONF-0001", got.ConfirmationNumber)
	require.NotNil(t, got.FiledAt)
	assert.True(t, got.FiledAt.Equal(fx.clk.Now()))
}

func TestAttemptFiling_FailureSchedulesRetryWithBackoff(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.gateway.failures = -1 // always fail

	f := fx.createFiling(t)
	fx.approveFiling(t, f.ID)

	require.NoError(t, fx.svc.AttemptFiling(ctx, f.ID))
	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusScheduled, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, got.ScheduledFor.Equal(fx.clk.Now().Add(time.Minute)))

	require.NoError(t, fx.svc.AttemptFiling(ctx, f.ID))
	got, err = fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RetryCount)
	assert.True(t, got.ScheduledFor.Equal(fx.clk.Now().Add(2*time.Minute)))
}

func TestAttemptFiling_ExhaustionCreatesExactlyOneQueueItem(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.gateway.failures = -1

	f := fx.createFiling(t)
	fx.approveFiling(t, f.ID)

	for i := 0; i < 4; i++ {
		require.NoError(t, fx.svc.AttemptFiling(ctx, f.ID))
	}

	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusFailed, got.Status)
	assert.Equal(t, 4, got.RetryCount)
	assert.True(t, got.EscalatedToManual)

	items, err := fx.queueRepo.ListByFiling(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.QueueStatusPending, items[0].Status)
	assert.Equal(t, "aml-desk", items[0].Team)
	assert.Contains(t, fx.audit.actions, "FILING_ESCALATED_TO_MANUAL")

	// A filing already failed cannot be attempted again, and must never
	// grow a second queue item.
	err = fx.svc.AttemptFiling(ctx, f.ID)
	require.Error(t, err)
	assert.True(t, errs.IsBusiness(err))

	items, err = fx.queueRepo.ListByFiling(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSweepScheduled_SubmitsDueFilings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)
	fx.approveFiling(t, f.ID)
	_, err := fx.svc.Schedule(ctx, f.ID, fx.clk.Now().Add(10*time.Minute))
	require.NoError(t, err)

	// Not due yet.
	require.NoError(t, fx.svc.SweepScheduled(ctx))
	assert.Zero(t, fx.gateway.calls)

	fx.clk.Advance(15 * time.Minute)
	require.NoError(t, fx.svc.SweepScheduled(ctx))

	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusFiled, got.Status)
}

func TestSweepDeadlines_RemindersFireOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.createFiling(t)

	// Five days before the deadline only the seven-day reminder applies.
	fx.clk.Advance(25 * 24 * time.Hour)
	require.NoError(t, fx.svc.SweepDeadlines(ctx))
	assert.Len(t, fx.notifier.officer, 1)

	require.NoError(t, fx.svc.SweepDeadlines(ctx))
	assert.Len(t, fx.notifier.officer, 1, "reminder must not repeat")

	// Twenty hours out the one-day reminder fires, once.
	fx.clk.Advance(4*24*time.Hour + 4*time.Hour)
	require.NoError(t, fx.svc.SweepDeadlines(ctx))
	assert.Len(t, fx.notifier.officer, 2)
	require.NoError(t, fx.svc.SweepDeadlines(ctx))
	assert.Len(t, fx.notifier.officer, 2)
}

func TestSweepDeadlines_EmergencyWindowTriggersAutoFiling(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)

	fx.clk.Advance(30*24*time.Hour - time.Hour)
	require.NoError(t, fx.svc.SweepDeadlines(ctx))

	got, err := fx.repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusFiled, got.Status, "emergency escalation should file immediately when the regulator is up")
	assert.Contains(t, fx.audit.actions, "FILING_DEADLINE_ESCALATED")
	assert.Empty(t, fx.incidents.opened, "emergency is not yet an incident")
	assert.Empty(t, fx.notifier.executives)
}

func TestSweepDeadlines_OverdueOpensIncidentOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.gateway.failures = 1

	f := fx.createFiling(t)

	fx.clk.Advance(31 * 24 * time.Hour)
	require.NoError(t, fx.svc.SweepDeadlines(ctx))

	require.Len(t, fx.incidents.opened, 1)
	assert.Equal(t, f.ID, fx.incidents.opened[0].FilingID)
	assert.Equal(t, domain.IncidentSeverityCritical, fx.incidents.opened[0].Severity)
	assert.NotEmpty(t, fx.notifier.executives)

	// Second sweep sees the filing already OVERDUE; no second incident.
	require.NoError(t, fx.svc.SweepDeadlines(ctx))
	assert.Len(t, fx.incidents.opened, 1)
}

// racingRepo lets a competing writer win the version race once before
// the service's own write lands.
type racingRepo struct {
	Repository
	once    sync.Once
	compete func()
}

func (r *racingRepo) Update(ctx context.Context, f *domain.RegulatoryFiling) error {
	r.once.Do(r.compete)
	return r.Repository.Update(ctx, f)
}

func TestSweepDeadlines_LostIncidentRaceOpensNoDuplicate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)
	fx.clk.Advance(31 * 24 * time.Hour)

	// A concurrent sweep wins the first write: it marks the filing
	// OVERDUE with the incident already opened. The losing sweep's
	// conflicted retry must observe that and stand down.
	repo := &racingRepo{Repository: fx.repo}
	repo.compete = func() {
		cur, err := fx.repo.Get(ctx, f.ID)
		require.NoError(t, err)
		cur.Status = domain.FilingStatusOverdue
		cur.IncidentOpened = true
		require.NoError(t, fx.repo.Update(ctx, cur))
	}

	log, err := logger.New("compliance-service-test", "development", false)
	require.NoError(t, err)
	queueSvc := manualqueue.NewService(fx.queueRepo, &config.QueueConfig{
		HighPriorityWindow:   7 * 24 * time.Hour,
		NormalPriorityWindow: 14 * 24 * time.Hour,
	}, fx.clk, log)
	svc := NewService(repo, fx.gateway, fx.notifier, fx.audit,
		fx.incidents, queueSvc, testFilingConfig(), fx.clk, log)

	require.NoError(t, svc.SweepDeadlines(ctx))
	assert.Empty(t, fx.incidents.opened, "losing sweep must not open a duplicate incident")
}

// conflictRepo injects version conflicts ahead of the real store
type conflictRepo struct {
	Repository
	conflicts int
}

func (r *conflictRepo) Update(ctx context.Context, f *domain.RegulatoryFiling) error {
	if r.conflicts > 0 {
		r.conflicts--
		return errs.Conflict("test", errors.New("simulated concurrent update"))
	}
	return r.Repository.Update(ctx, f)
}

func TestUpdateFiling_RetriesVersionConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)

	log, err := logger.New("compliance-service-test", "development", false)
	require.NoError(t, err)
	svc := NewService(&conflictRepo{Repository: fx.repo, conflicts: 2}, fx.gateway, fx.notifier,
		fx.audit, fx.incidents, nil, testFilingConfig(), fx.clk, log)

	got, err := svc.SubmitForReview(ctx, f.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.FilingStatusReview, got.Status)
}

func TestUpdateFiling_GivesUpAfterRetryLimit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := fx.createFiling(t)

	log, err := logger.New("compliance-service-test", "development", false)
	require.NoError(t, err)
	svc := NewService(&conflictRepo{Repository: fx.repo, conflicts: versionRetryLimit}, fx.gateway,
		fx.notifier, fx.audit, fx.incidents, nil, testFilingConfig(), fx.clk, log)

	_, err = svc.SubmitForReview(ctx, f.ID, "")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestGenerateReport_ComplianceRate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Nothing due yet: a clean slate is fully compliant.
	report, err := fx.svc.GenerateReport(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.ComplianceRate)

	filed := fx.createFiling(t)
	fx.approveFiling(t, filed.ID)
	require.NoError(t, fx.svc.AttemptFiling(ctx, filed.ID))

	fx.createFiling(t) // stays in DRAFT

	report, err = fx.svc.GenerateReport(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FiledOnTime)
	assert.Equal(t, 2, report.TotalDue)
	assert.Equal(t, 0.5, report.ComplianceRate)
	assert.Equal(t, 1, report.Counts[domain.FilingStatusFiled])
	assert.Equal(t, 1, report.Counts[domain.FilingStatusDraft])
}
