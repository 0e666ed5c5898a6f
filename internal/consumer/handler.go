package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// FilingCreator opens a regulatory filing for an alert
type FilingCreator interface {
	CreateFromAlert(ctx context.Context, alert *domain.ComplianceAlert) (*domain.RegulatoryFiling, error)
}

// Notifier delivers operational and compliance notifications
type Notifier interface {
	NotifyComplianceOfficer(ctx context.Context, subject, body string) error
	NotifyExecutives(ctx context.Context, subject, body string) error
	NotifyOperations(ctx context.Context, subject, body string) error
}

// AuditService records compliance audit events
type AuditService interface {
	Record(ctx context.Context, record *domain.AuditRecord) error
}

// FraudDetectionClient fetches the fraud platform's current score for an entity
type FraudDetectionClient interface {
	EntityRiskScore(ctx context.Context, entityID string) (float64, error)
}

const corroborationThreshold = 75.0

// Processor applies the type-specific handling for each compliance alert.
// Dispatch is closed over the known alert types; anything else is a data
// error and never retried.
type Processor struct {
	filings FilingCreator
	notify  Notifier
	audit   AuditService
	fraud   FraudDetectionClient
	clk     clock.Clock
	log     *logger.Logger
}

// NewProcessor creates an alert processor
func NewProcessor(
	filings FilingCreator,
	notify Notifier,
	audit AuditService,
	fraud FraudDetectionClient,
	clk clock.Clock,
	log *logger.Logger,
) *Processor {
	return &Processor{
		filings: filings,
		notify:  notify,
		audit:   audit,
		fraud:   fraud,
		clk:     clk,
		log:     log.Named("processor"),
	}
}

// Process handles one alert end to end. Returned errors carry an errs.Kind
// that drives the caller's retry and dead-letter decisions.
func (p *Processor) Process(ctx context.Context, alert *domain.ComplianceAlert) error {
	if !alert.AlertType.IsKnown() {
		return errs.Data("consumer.Process", fmt.Errorf("unknown alert type %q", alert.AlertType))
	}

	var err error
	switch alert.AlertType {
	case domain.AlertTypeStructuring, domain.AlertTypeMoneyLaundering, domain.AlertTypeTerroristFinancing:
		err = p.handleFilingMandatory(ctx, alert)
	case domain.AlertTypeSanctionsMatch:
		err = p.handleSanctionsMatch(ctx, alert)
	case domain.AlertTypePEPMatch:
		err = p.handlePEPMatch(ctx, alert)
	case domain.AlertTypeVelocity, domain.AlertTypeGeographicAnomaly, domain.AlertTypeGeneric:
		err = p.handleBehavioral(ctx, alert)
	}
	if err != nil {
		return err
	}

	// Investigator-flagged alerts require a filing regardless of type.
	if alert.RequiresSAR && !alert.AlertType.FilingMandatory() {
		if _, err := p.filings.CreateFromAlert(ctx, alert); err != nil {
			return err
		}
	}

	return p.recordProcessed(ctx, alert)
}

func (p *Processor) handleFilingMandatory(ctx context.Context, alert *domain.ComplianceAlert) error {
	filing, err := p.filings.CreateFromAlert(ctx, alert)
	if err != nil {
		return err
	}

	if alert.AlertType == domain.AlertTypeTerroristFinancing {
		subject := fmt.Sprintf("Terrorist financing alert for entity %s", alert.EntityID)
		body := fmt.Sprintf("Alert %s opened filing %s, deadline %s. Detection rule: %s",
			alert.AlertID, filing.FilingNumber, filing.Deadline.Format(time.RFC3339), alert.DetectionRule)
		if err := p.notify.NotifyExecutives(ctx, subject, body); err != nil {
			return errs.Transient("consumer.handleFilingMandatory", err)
		}
	}
	return nil
}

func (p *Processor) handleSanctionsMatch(ctx context.Context, alert *domain.ComplianceAlert) error {
	subject := fmt.Sprintf("Sanctions match for entity %s", alert.EntityID)
	body := fmt.Sprintf("Alert %s matched rule %s. Transactions involved: %d. Immediate review required.",
		alert.AlertID, alert.DetectionRule, len(alert.TransactionIDs))
	if err := p.notify.NotifyComplianceOfficer(ctx, subject, body); err != nil {
		return errs.Transient("consumer.handleSanctionsMatch", err)
	}
	return nil
}

func (p *Processor) handlePEPMatch(ctx context.Context, alert *domain.ComplianceAlert) error {
	subject := fmt.Sprintf("PEP match for entity %s", alert.EntityID)
	body := fmt.Sprintf("Alert %s matched rule %s. Enhanced due diligence required before any further activity.",
		alert.AlertID, alert.DetectionRule)
	if err := p.notify.NotifyComplianceOfficer(ctx, subject, body); err != nil {
		return errs.Transient("consumer.handlePEPMatch", err)
	}
	return nil
}

// handleBehavioral corroborates velocity, geographic and generic alerts
// against the fraud platform before deciding whether to page anyone.
func (p *Processor) handleBehavioral(ctx context.Context, alert *domain.ComplianceAlert) error {
	score := alert.RiskScore
	if p.fraud != nil {
		fraudScore, err := p.fraud.EntityRiskScore(ctx, alert.EntityID)
		if err != nil {
			if errs.IsTransient(err) {
				return err
			}
			// A data error from the fraud platform is its problem, not a
			// reason to drop the alert. Fall back to the reported score.
			p.log.Warn("fraud score lookup failed, using reported score",
				logger.StringField("alert_id", alert.AlertID.String()),
				logger.ErrorField(err))
		} else if fraudScore > score {
			score = fraudScore
		}
	}

	if score >= corroborationThreshold {
		subject := fmt.Sprintf("High risk %s alert for entity %s", alert.AlertType, alert.EntityID)
		body := fmt.Sprintf("Alert %s scored %.1f after corroboration. Detection rule: %s",
			alert.AlertID, score, alert.DetectionRule)
		if err := p.notify.NotifyComplianceOfficer(ctx, subject, body); err != nil {
			return errs.Transient("consumer.handleBehavioral", err)
		}
	}
	return nil
}

func (p *Processor) recordProcessed(ctx context.Context, alert *domain.ComplianceAlert) error {
	record := &domain.AuditRecord{
		Action:     "ALERT_PROCESSED",
		EntityID:   alert.EntityID,
		ResourceID: alert.AlertID.String(),
		Actor:      "system:consumer",
		Detail:     fmt.Sprintf("type=%s severity=%s score=%.1f", alert.AlertType, alert.Severity, alert.RiskScore),
		OccurredAt: p.clk.Now(),
	}
	if err := p.audit.Record(ctx, record); err != nil {
		return errs.Transient("consumer.recordProcessed", err)
	}
	return nil
}
