package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// Engine scores transactions against the user's behavioral baseline.
// Scoring itself is pure; collaborator failures never surface to the
// caller, they produce an elevated fail-secure assessment instead.
type Engine struct {
	profiles ProfileRepository
	velocity VelocityTracker
	audit    AuditService

	cfg *config.RiskConfig
	clk clock.Clock
	log *logger.Logger

	countryRisk map[string]float64
}

// ProfileRepository provides user baselines for anomaly scoring
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserRiskProfile, error)
}

// VelocityTracker maintains the per-user trailing transaction window
type VelocityTracker interface {
	Record(ctx context.Context, userID uuid.UUID, at time.Time, amount float64) error
	WindowSince(ctx context.Context, userID uuid.UUID, since time.Time) (count int, total float64, err error)
}

// AuditService records compliance-relevant actions
type AuditService interface {
	Record(ctx context.Context, rec *domain.AuditRecord) error
}

// Country risk scores on the 0-100 scale
const (
	countryRiskHigh     = 90.0
	countryRiskElevated = 60.0
	countryRiskBorder   = 30.0
)

// Device risk assigned to a device never seen for the user
const unknownDeviceRisk = 80.0

// NewEngine creates a new risk scoring engine
func NewEngine(
	profiles ProfileRepository,
	velocity VelocityTracker,
	audit AuditService,
	cfg *config.RiskConfig,
	clk clock.Clock,
	log *logger.Logger,
) *Engine {
	countryRisk := make(map[string]float64)
	for _, c := range cfg.HighRiskCountries {
		countryRisk[c] = countryRiskHigh
	}
	for _, c := range cfg.ElevatedRiskCountries {
		countryRisk[c] = countryRiskElevated
	}

	return &Engine{
		profiles:    profiles,
		velocity:    velocity,
		audit:       audit,
		cfg:         cfg,
		clk:         clk,
		log:         log.Named("risk_engine"),
		countryRisk: countryRisk,
	}
}

// scoringContext holds intermediate inputs gathered before computing
type scoringContext struct {
	profile          *domain.UserRiskProfile
	velocityExceeded bool

	mu sync.Mutex
}

// ScoreTransaction assesses a single transaction. Any collaborator
// error yields the elevated fail-secure assessment with an audit
// record; the error itself is swallowed.
func (e *Engine) ScoreTransaction(ctx context.Context, tx *domain.Transaction) (*domain.RiskAssessment, error) {
	start := e.clk.Now()

	sctx := &scoringContext{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := e.profiles.GetByUserID(gctx, tx.UserID)
		if err != nil {
			return fmt.Errorf("fetch risk profile: %w", err)
		}
		sctx.mu.Lock()
		sctx.profile = profile
		sctx.mu.Unlock()
		return nil
	})

	g.Go(func() error {
		if err := e.velocity.Record(gctx, tx.UserID, tx.InitiatedAt, tx.AmountFloat()); err != nil {
			return fmt.Errorf("record velocity: %w", err)
		}
		since := e.clk.Now().Add(-e.cfg.VelocityWindow)
		count, total, err := e.velocity.WindowSince(gctx, tx.UserID, since)
		if err != nil {
			return fmt.Errorf("read velocity window: %w", err)
		}
		sctx.mu.Lock()
		sctx.velocityExceeded = e.windowExceeded(count, total)
		sctx.mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return e.failSecure(ctx, tx, start, err), nil
	}

	assessment := e.compute(tx, sctx.profile, sctx.velocityExceeded)
	assessment.DurationMs = e.clk.Now().Sub(start).Milliseconds()

	e.log.RiskScored(tx.ID.String(), assessment.Score, string(assessment.Level), assessment.DurationMs)

	return assessment, nil
}

// A profile whose aggregate fraud score reaches this is high risk on
// its own, no matter what the transaction looks like.
const aggregateScoreHighRisk = 75.0

// IsHighRisk is the fast decision path. Obviously dangerous
// transactions short-circuit to true without full scoring: a very
// large amount, a large amount combined with exceeded velocity or a
// destination the user has never sent to, or a user whose aggregate
// fraud score is already critical. Everything else falls back to full
// scoring. It fails secure: any error reports high risk.
func (e *Engine) IsHighRisk(ctx context.Context, tx *domain.Transaction) bool {
	amount := tx.AmountFloat()
	if amount >= e.cfg.CriticalAmountThreshold {
		return true
	}

	profile, err := e.profiles.GetByUserID(ctx, tx.UserID)
	if err != nil {
		e.log.FailSecure(tx.ID.String(), e.cfg.FailSecureScore, err)
		return true
	}
	if profile.HistoricalScore >= aggregateScoreHighRisk {
		return true
	}

	if amount >= e.cfg.HighAmountThreshold {
		since := e.clk.Now().Add(-e.cfg.VelocityWindow)
		count, total, err := e.velocity.WindowSince(ctx, tx.UserID, since)
		if err != nil {
			e.log.FailSecure(tx.ID.String(), e.cfg.FailSecureScore, err)
			return true
		}
		if e.windowExceeded(count, total) || !profile.IsKnownCountry(tx.GetCounterpartyCountry()) {
			return true
		}
	}

	assessment, err := e.ScoreTransaction(ctx, tx)
	if err != nil {
		return true
	}
	return assessment.IsHighRisk()
}

// windowExceeded applies both velocity arms: too many transactions,
// or too much money, inside the trailing window
func (e *Engine) windowExceeded(count int, total float64) bool {
	if count >= e.cfg.VelocityThreshold {
		return true
	}
	return e.cfg.VelocityAmountThreshold > 0 && total >= e.cfg.VelocityAmountThreshold
}

// compute is the pure scoring core. Identical inputs always produce the
// identical assessment.
func (e *Engine) compute(tx *domain.Transaction, profile *domain.UserRiskProfile, velocityExceeded bool) *domain.RiskAssessment {
	factors := make([]domain.RiskFactor, 0, 6)

	anomaly := e.amountAnomaly(tx, profile)
	factors = append(factors, domain.RiskFactor{
		Factor: "AMOUNT_ANOMALY",
		Score:  anomaly,
		Weight: e.cfg.AmountAnomalyWeight,
	})

	var velocityScore float64
	if velocityExceeded {
		velocityScore = e.cfg.VelocityPoints
	}
	factors = append(factors, domain.RiskFactor{
		Factor: "VELOCITY",
		Score:  velocityScore,
		Weight: 1.0,
	})

	geo := e.geographicRisk(tx)
	factors = append(factors, domain.RiskFactor{
		Factor: "GEOGRAPHIC",
		Score:  geo,
		Weight: e.cfg.GeographicWeight,
	})

	device := e.deviceRisk(tx, profile)
	factors = append(factors, domain.RiskFactor{
		Factor: "DEVICE",
		Score:  device,
		Weight: e.cfg.DeviceWeight,
	})

	var timeScore float64
	if e.isUnusualTime(tx.InitiatedAt) {
		timeScore = e.cfg.UnusualTimePoints
	}
	factors = append(factors, domain.RiskFactor{
		Factor: "UNUSUAL_TIME",
		Score:  timeScore,
		Weight: 1.0,
	})

	history := (profile.HistoricalScore / 100.0) * e.cfg.HistoryWeight
	factors = append(factors, domain.RiskFactor{
		Factor: "USER_HISTORY",
		Score:  history,
		Weight: 1.0,
	})

	score := anomaly*e.cfg.AmountAnomalyWeight +
		velocityScore +
		geo*e.cfg.GeographicWeight +
		device*e.cfg.DeviceWeight +
		timeScore +
		history

	score = clamp(score, 0, 100)

	return &domain.RiskAssessment{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Score:         score,
		Level:         domain.CalculateRiskLevel(score),
		Factors:       factors,
		AssessedAt:    e.clk.Now(),
	}
}

// amountAnomaly scores how far the amount sits from the user's mean.
// Without enough history the baseline is meaningless, so the anomaly is
// pinned to the cold-start constant.
func (e *Engine) amountAnomaly(tx *domain.Transaction, profile *domain.UserRiskProfile) float64 {
	if profile.SampleCount < e.cfg.MinHistorySamples {
		return e.cfg.ColdStartAnomaly
	}

	// The +1 keeps a degenerate zero-variance baseline from exploding
	// the score.
	zScore := math.Abs(tx.AmountFloat()-profile.MeanAmount) / (profile.StdDevAmount + 1)
	return math.Min(zScore*e.cfg.ZScoreScale, 100)
}

// geographicRisk scores the counterparty country
func (e *Engine) geographicRisk(tx *domain.Transaction) float64 {
	if risk, ok := e.countryRisk[tx.GetCounterpartyCountry()]; ok {
		return risk
	}
	if tx.IsCrossBorder() {
		return countryRiskBorder
	}
	return 0
}

// deviceRisk scores the originating device
func (e *Engine) deviceRisk(tx *domain.Transaction, profile *domain.UserRiskProfile) float64 {
	if tx.DeviceID == "" {
		return 0
	}
	if !profile.IsKnownDevice(tx.DeviceID) {
		return unknownDeviceRisk
	}
	return profile.DeviceScore
}

// isUnusualTime returns true outside normal banking hours
func (e *Engine) isUnusualTime(at time.Time) bool {
	hour := at.Hour()
	return hour < e.cfg.DayStartHour || hour >= e.cfg.DayEndHour
}

// failSecure builds the elevated assessment used when scoring inputs
// could not be gathered. A scoring outage must not let transactions
// through unexamined.
func (e *Engine) failSecure(ctx context.Context, tx *domain.Transaction, start time.Time, cause error) *domain.RiskAssessment {
	score := e.cfg.FailSecureScore

	assessment := &domain.RiskAssessment{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Score:         score,
		Level:         domain.CalculateRiskLevel(score),
		FailSecure:    true,
		FailReason:    cause.Error(),
		AssessedAt:    e.clk.Now(),
		DurationMs:    e.clk.Now().Sub(start).Milliseconds(),
	}

	e.log.FailSecure(tx.ID.String(), score, cause)

	rec := &domain.AuditRecord{
		ID:         uuid.New(),
		Action:     "RISK_SCORING_FAIL_SECURE",
		EntityID:   tx.UserID.String(),
		ResourceID: tx.ID.String(),
		Actor:      "risk-engine",
		Detail:     cause.Error(),
		OccurredAt: e.clk.Now(),
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		e.log.Error("audit record failed", logger.ErrorField(err))
	}

	return assessment
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
