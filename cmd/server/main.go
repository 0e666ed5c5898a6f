package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/banking/compliance-service/internal/api"
	"github.com/banking/compliance-service/internal/audit"
	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/consumer"
	"github.com/banking/compliance-service/internal/filing"
	"github.com/banking/compliance-service/internal/fraudclient"
	"github.com/banking/compliance-service/internal/gateway"
	"github.com/banking/compliance-service/internal/manualqueue"
	"github.com/banking/compliance-service/internal/notify"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/logger"
	"github.com/banking/compliance-service/internal/pkg/telemetry"
	"github.com/banking/compliance-service/internal/postgres"
	"github.com/banking/compliance-service/internal/risk"
	"github.com/banking/compliance-service/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "compliance-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.New(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("telemetry shutdown", logger.ErrorField(err))
		}
	}()

	pool, err := postgres.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	producerCfg := sarama.NewConfig()
	producerCfg.Version = sarama.V3_6_0_0
	producerCfg.Producer.Return.Successes = true
	producerCfg.Producer.RequiredAcks = sarama.WaitForAll
	producerCfg.Producer.Retry.Max = cfg.Kafka.MaxRetries
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, producerCfg)
	if err != nil {
		return fmt.Errorf("creating kafka producer: %w", err)
	}
	defer producer.Close()

	clk := clock.Real{}

	auditSvc := audit.NewKafkaService(producer, cfg.Kafka.AuditTopic, log)
	notifySvc := notify.NewKafkaService(producer, cfg.Kafka.NotificationsTopic,
		cfg.Filing.ComplianceOfficer, cfg.Filing.ExecutiveContact, log)
	dlqProducer := consumer.NewDeadLetterProducer(producer, log)

	filingRepo := postgres.NewFilingRepo(pool)
	queueRepo := postgres.NewQueueRepo(pool)
	profileRepo := postgres.NewProfileRepo(pool)
	incidentRepo := postgres.NewIncidentRepo(pool)

	bsaGateway := gateway.New(cfg.Filing.GatewayURL, cfg.Filing.GatewayTimeout)
	fraudClient := fraudclient.New(cfg.Risk.FraudServiceURL, cfg.Risk.FraudServiceTimeout)

	queueSvc := manualqueue.NewService(queueRepo, &cfg.Queue, clk, log)
	filingSvc := filing.NewService(filingRepo, bsaGateway, notifySvc, auditSvc,
		incidentRepo, queueSvc, &cfg.Filing, clk, log)

	velocityTracker := risk.NewRedisVelocityTracker(redisClient, cfg.Redis.VelocityTTL)
	riskEngine := risk.NewEngine(profileRepo, velocityTracker, auditSvc, &cfg.Risk, clk, log)

	dedupCache := consumer.NewRedisDedupCache(redisClient, cfg.Redis.DedupTTL)
	processor := consumer.NewProcessor(filingSvc, notifySvc, auditSvc, fraudClient, clk, log)
	breaker := consumer.NewBreaker(log)
	alertConsumer, err := consumer.NewConsumer(&cfg.Kafka, processor, dedupCache,
		dlqProducer, breaker, notifySvc, auditSvc, clk, log)
	if err != nil {
		return fmt.Errorf("creating alert consumer: %w", err)
	}

	sched := scheduler.New(log)
	sched.Register("draft-sweep", cfg.Scheduler.AlertSweepInterval, filingSvc.SweepDrafts)
	sched.Register("deadline-sweep", cfg.Scheduler.OverdueSweepInterval, filingSvc.SweepDeadlines)
	sched.Register("scheduled-filing-sweep", cfg.Scheduler.FilingSweepInterval, filingSvc.SweepScheduled)
	sched.Register("daily-report", cfg.Scheduler.DailyReportInterval, func(ctx context.Context) error {
		_, err := filingSvc.GenerateReport(ctx, 24*time.Hour)
		return err
	})
	sched.Register("weekly-report", cfg.Scheduler.WeeklyReportInterval, func(ctx context.Context) error {
		_, err := filingSvc.GenerateReport(ctx, 7*24*time.Hour)
		return err
	})

	server := api.NewServer(filingSvc, filingRepo, queueSvc, riskEngine, cfg, clk, log)

	errCh := make(chan error, 3)
	go func() {
		if err := alertConsumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("alert consumer: %w", err)
		}
	}()
	go func() {
		if err := sched.Start(ctx); err != nil {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	log.Info("compliance service started",
		logger.IntField("port", cfg.Server.Port),
		logger.StringField("environment", cfg.Telemetry.Environment))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("component failed", logger.ErrorField(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", logger.ErrorField(err))
	}
	if err := alertConsumer.Close(); err != nil {
		log.Error("consumer close", logger.ErrorField(err))
	}

	log.Info("compliance service stopped")
	return nil
}
