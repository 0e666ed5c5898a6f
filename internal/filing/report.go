package filing

import (
	"context"
	"fmt"
	"time"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// ComplianceReport summarizes filing health over a reporting period
type ComplianceReport struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	PeriodStart time.Time                    `json:"period_start"`
	Counts      map[domain.FilingStatus]int  `json:"counts"`
	FiledOnTime int                          `json:"filed_on_time"`
	TotalDue    int                          `json:"total_due"`
	// ComplianceRate is filed-on-time over total-due, 1.0 when nothing
	// was due.
	ComplianceRate float64 `json:"compliance_rate"`
}

// GenerateReport builds the compliance-rate report for the period
// ending now.
func (s *Service) GenerateReport(ctx context.Context, period time.Duration) (*ComplianceReport, error) {
	ctx, span := s.tracer.Start(ctx, "filing.GenerateReport")
	defer span.End()

	now := s.clk.Now()
	since := now.Add(-period)

	counts, err := s.repo.CountByStatus(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count filings by status: %w", err)
	}

	onTime, total, err := s.repo.CountFiledOnTime(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count on-time filings: %w", err)
	}

	rate := 1.0
	if total > 0 {
		rate = float64(onTime) / float64(total)
	}

	report := &ComplianceReport{
		GeneratedAt:    now,
		PeriodStart:    since,
		Counts:         counts,
		FiledOnTime:    onTime,
		TotalDue:       total,
		ComplianceRate: rate,
	}

	s.log.Info("compliance report generated",
		logger.IntField("filed_on_time", onTime),
		logger.IntField("total_due", total),
		logger.Float64Field("compliance_rate", rate),
	)

	return report, nil
}
