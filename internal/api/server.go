package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/filing"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// FilingService is the filing surface the API exposes
type FilingService interface {
	SubmitForReview(ctx context.Context, id uuid.UUID, narrative string) (*domain.RegulatoryFiling, error)
	Approve(ctx context.Context, id uuid.UUID, approver string) (*domain.RegulatoryFiling, error)
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) (*domain.RegulatoryFiling, error)
	AttemptFiling(ctx context.Context, id uuid.UUID) error
	GenerateReport(ctx context.Context, period time.Duration) (*filing.ComplianceReport, error)
}

// FilingReader serves filing list and detail views
type FilingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.RegulatoryFiling, error)
	ListActive(ctx context.Context) ([]*domain.RegulatoryFiling, error)
}

// RiskScorer assesses transactions on demand
type RiskScorer interface {
	ScoreTransaction(ctx context.Context, tx *domain.Transaction) (*domain.RiskAssessment, error)
}

// QueueService is the manual queue surface the API exposes
type QueueService interface {
	ListOpen(ctx context.Context) ([]*domain.QueueItemSummary, error)
	Assign(ctx context.Context, id uuid.UUID, officer string) (*domain.ManualFilingQueueItem, error)
	Start(ctx context.Context, id uuid.UUID) (*domain.ManualFilingQueueItem, error)
	Complete(ctx context.Context, id uuid.UUID, officer, resolution string) (*domain.ManualFilingQueueItem, error)
	Escalate(ctx context.Context, id uuid.UUID, reason string) (*domain.ManualFilingQueueItem, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.ManualFilingQueueItem, error)
}

// Server is the HTTP admin surface
type Server struct {
	echo    *echo.Echo
	filings FilingService
	reader  FilingReader
	queue   QueueService
	risk    RiskScorer
	cfg     *config.Config
	clk     clock.Clock
	log     *logger.Logger
}

// NewServer wires routes and middleware
func NewServer(
	filings FilingService,
	reader FilingReader,
	queue QueueService,
	risk RiskScorer,
	cfg *config.Config,
	clk clock.Clock,
	log *logger.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	if cfg.Server.MaxRequestSize > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%d", cfg.Server.MaxRequestSize)))
	}
	if cfg.Security.RateLimitPerMinute > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(
				rate.Limit(float64(cfg.Security.RateLimitPerMinute) / 60.0)),
		}))
	}

	s := &Server{
		echo:    e,
		filings: filings,
		reader:  reader,
		queue:   queue,
		risk:    risk,
		cfg:     cfg,
		clk:     clk,
		log:     log.Named("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	v1 := s.echo.Group("/api/v1", JWTAuth(s.cfg.Security.JWTSecret))

	v1.GET("/filings", s.listFilings)
	v1.GET("/filings/:id", s.getFiling)
	v1.POST("/filings/:id/review", s.submitForReview)
	v1.POST("/filings/:id/approve", s.approveFiling)
	v1.POST("/filings/:id/schedule", s.scheduleFiling)
	v1.POST("/filings/:id/attempt", s.attemptFiling)

	v1.GET("/queue", s.listQueue)
	v1.POST("/queue/:id/assign", s.assignItem)
	v1.POST("/queue/:id/start", s.startItem)
	v1.POST("/queue/:id/complete", s.completeItem)
	v1.POST("/queue/:id/escalate", s.escalateItem)
	v1.POST("/queue/:id/cancel", s.cancelItem)

	v1.POST("/risk/score", s.scoreTransaction)

	v1.GET("/reports/compliance", s.complianceReport)
}

// Start blocks serving HTTP until Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info("http server starting", logger.StringField("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
