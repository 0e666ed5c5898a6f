package manualqueue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
	"github.com/banking/compliance-service/internal/storage/memory"
)

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		HighPriorityWindow:   7 * 24 * time.Hour,
		NormalPriorityWindow: 14 * 24 * time.Hour,
	}
}

func TestPriorityFor_Bands(t *testing.T) {
	cfg := testQueueConfig()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining time.Duration
		want      domain.QueuePriority
	}{
		{"overdue", -time.Hour, domain.QueuePriorityCritical},
		{"deadline exactly now", 0, domain.QueuePriorityCritical},
		{"within a week", 3 * 24 * time.Hour, domain.QueuePriorityHigh},
		{"week boundary", 7 * 24 * time.Hour, domain.QueuePriorityHigh},
		{"within two weeks", 10 * 24 * time.Hour, domain.QueuePriorityNormal},
		{"two week boundary", 14 * 24 * time.Hour, domain.QueuePriorityNormal},
		{"beyond two weeks", 21 * 24 * time.Hour, domain.QueuePriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityFor(now.Add(tt.remaining), now, cfg); got != tt.want {
				t.Errorf("PriorityFor(remaining=%s) = %s, want %s", tt.remaining, got, tt.want)
			}
		})
	}
}

func TestTeamFor_Routing(t *testing.T) {
	tests := []struct {
		alertType domain.AlertType
		want      string
	}{
		{domain.AlertTypeSanctionsMatch, "sanctions-desk"},
		{domain.AlertTypePEPMatch, "sanctions-desk"},
		{domain.AlertTypeStructuring, "aml-desk"},
		{domain.AlertTypeMoneyLaundering, "aml-desk"},
		{domain.AlertTypeTerroristFinancing, "aml-desk"},
		{domain.AlertTypeVelocity, "general-compliance"},
		{domain.AlertTypeGeographicAnomaly, "general-compliance"},
		{domain.AlertTypeGeneric, "general-compliance"},
	}
	for _, tt := range tests {
		if got := TeamFor(tt.alertType); got != tt.want {
			t.Errorf("TeamFor(%s) = %s, want %s", tt.alertType, got, tt.want)
		}
	}
}

func TestCanTransition_CancelledFromNonTerminalOnly(t *testing.T) {
	open := []domain.QueueItemStatus{
		domain.QueueStatusPending,
		domain.QueueStatusAssigned,
		domain.QueueStatusInProgress,
		domain.QueueStatusEscalated,
	}
	terminal := []domain.QueueItemStatus{
		domain.QueueStatusFiled,
		domain.QueueStatusCancelled,
	}

	for _, from := range open {
		if !CanTransition(from, domain.QueueStatusCancelled) {
			t.Errorf("CanTransition(%s, CANCELLED) = false, want true", from)
		}
	}
	for _, from := range terminal {
		for _, to := range append(open, terminal...) {
			if from == to {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("terminal status %s allowed transition to %s", from, to)
			}
		}
	}
}

func TestCanTransition_EscalatedStaysWorkable(t *testing.T) {
	exits := []domain.QueueItemStatus{
		domain.QueueStatusInProgress,
		domain.QueueStatusFiled,
		domain.QueueStatusCancelled,
	}
	for _, to := range exits {
		if !CanTransition(domain.QueueStatusEscalated, to) {
			t.Errorf("CanTransition(ESCALATED, %s) = false, want true", to)
		}
	}
	if CanTransition(domain.QueueStatusEscalated, domain.QueueStatusPending) {
		t.Error("CanTransition(ESCALATED, PENDING) = true, want false")
	}
}

func TestIsOverdue_EscalatedPastDeadline(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	item := &domain.ManualFilingQueueItem{
		Status:   domain.QueueStatusEscalated,
		Deadline: now.Add(-time.Hour),
	}
	if !item.IsOverdue(now) {
		t.Error("escalated item past deadline reported not overdue")
	}

	item.Status = domain.QueueStatusFiled
	if item.IsOverdue(now) {
		t.Error("filed item reported overdue")
	}
}

func newTestService(t *testing.T) (*Service, *memory.QueueRepo, *clock.Fake) {
	t.Helper()
	log, err := logger.New("compliance-service-test", "development", false)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	clk := clock.NewFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	repo := memory.NewQueueRepo()
	return NewService(repo, testQueueConfig(), clk, log), repo, clk
}

func testFiling(deadline time.Time) *domain.RegulatoryFiling {
	alertID := uuid.New()
	return &domain.RegulatoryFiling{
		ID:          uuid.New(),
		EntityID:    "customer-42",
		AlertID:     &alertID,
		FilingType:  domain.FilingTypeSAR,
		AlertType:   domain.AlertTypeStructuring,
		TotalAmount: decimal.NewFromInt(9500),
		Deadline:    deadline,
	}
}

func TestEnqueueFiling_SetsPriorityAndTeam(t *testing.T) {
	svc, _, clk := newTestService(t)

	item, err := svc.EnqueueFiling(context.Background(), testFiling(clk.Now().Add(3*24*time.Hour)), "automated filing exhausted retries")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if item.Status != domain.QueueStatusPending {
		t.Errorf("status = %s, want PENDING", item.Status)
	}
	if item.Priority != domain.QueuePriorityHigh {
		t.Errorf("priority = %s, want HIGH", item.Priority)
	}
	if item.Team != "aml-desk" {
		t.Errorf("team = %s, want aml-desk", item.Team)
	}
	if item.CaseNumber == "" {
		t.Error("case number not assigned")
	}
}

func TestQueueItemLifecycle(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	item, err := svc.EnqueueFiling(ctx, testFiling(clk.Now().Add(24*time.Hour)), "retries exhausted")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := svc.Start(ctx, item.ID); err == nil {
		t.Fatal("started an unassigned item")
	}

	assigned, err := svc.Assign(ctx, item.ID, "officer-smith")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != "officer-smith" {
		t.Fatal("assignee not recorded")
	}

	if _, err := svc.Start(ctx, item.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	done, err := svc.Complete(ctx, item.ID, "officer-smith", "filed via BSA e-filing portal")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.QueueStatusFiled {
		t.Fatalf("status = %s, want FILED", done.Status)
	}
	if done.ResolvedAt == nil || done.ResolvedBy == nil {
		t.Fatal("resolution not recorded")
	}

	if _, err := svc.Cancel(ctx, item.ID, "no longer needed"); err == nil {
		t.Fatal("cancelled a filed item")
	} else if !errs.IsBusiness(err) {
		t.Fatalf("invalid transition classified as %v, want business", errs.KindOf(err))
	}
}

func TestEscalate_FromAssigned(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	item, err := svc.EnqueueFiling(ctx, testFiling(clk.Now().Add(24*time.Hour)), "retries exhausted")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := svc.Assign(ctx, item.ID, "officer-smith"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	escalated, err := svc.Escalate(ctx, item.ID, "entity counsel unresponsive")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if escalated.Status != domain.QueueStatusEscalated {
		t.Fatalf("status = %s, want ESCALATED", escalated.Status)
	}

	// leadership resolves the escalation and the filing still completes
	done, err := svc.Complete(ctx, item.ID, "officer-lee", "filed after leadership review")
	if err != nil {
		t.Fatalf("complete escalated item: %v", err)
	}
	if done.Status != domain.QueueStatusFiled {
		t.Fatalf("status = %s, want FILED", done.Status)
	}
}

func TestListOpen_RecomputesPriorityAgainstClock(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	item, err := svc.EnqueueFiling(ctx, testFiling(clk.Now().Add(10*24*time.Hour)), "retries exhausted")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if item.Priority != domain.QueuePriorityNormal {
		t.Fatalf("stored priority = %s, want NORMAL", item.Priority)
	}

	clk.Advance(11 * 24 * time.Hour)

	summaries, err := svc.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d open items, want 1", len(summaries))
	}
	if summaries[0].Priority != domain.QueuePriorityCritical {
		t.Fatalf("recomputed priority = %s, want CRITICAL", summaries[0].Priority)
	}
}
