package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"

	"github.com/banking/compliance-service/internal/config"
	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/clock"
	"github.com/banking/compliance-service/internal/pkg/errs"
	"github.com/banking/compliance-service/internal/pkg/logger"
)

// NewBreaker builds the circuit breaker guarding alert processing.
// Five consecutive failures open the circuit for thirty seconds; while
// open, messages take the dead-letter fallback instead of piling up
// retries against a struggling downstream.
func NewBreaker(log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-processing",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.CircuitOpened(name)
			} else {
				log.Info("circuit state changed",
					logger.StringField("name", name),
					logger.StringField("from", from.String()),
					logger.StringField("to", to.String()))
			}
		},
	})
}

// Consumer reads compliance alerts from Kafka and drives them through
// dedup, the circuit breaker and the processor. Every message is acked
// exactly once after its outcome is resolved; only context cancellation
// leaves a message unacked for redelivery.
type Consumer struct {
	group     sarama.ConsumerGroup
	processor *Processor
	dedup     DedupCache
	dlq       *DeadLetterProducer
	breaker   *gobreaker.CircuitBreaker
	notify    Notifier
	audit     AuditService
	clk       clock.Clock
	cfg       *config.KafkaConfig
	log       *logger.Logger
}

// NewConsumer creates a consumer bound to the configured group
func NewConsumer(
	cfg *config.KafkaConfig,
	processor *Processor,
	dedup DedupCache,
	dlq *DeadLetterProducer,
	breaker *gobreaker.CircuitBreaker,
	notify Notifier,
	audit AuditService,
	clk clock.Clock,
	log *logger.Logger,
) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V3_6_0_0
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Consumer{
		group:     group,
		processor: processor,
		dedup:     dedup,
		dlq:       dlq,
		breaker:   breaker,
		notify:    notify,
		audit:     audit,
		clk:       clk,
		cfg:       cfg,
		log:       log.Named("consumer"),
	}, nil
}

// Start consumes the alerts topic until the context is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", logger.ErrorField(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.cfg.AlertsTopic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consuming: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		// A nil return means a rebalance; loop to rejoin.
	}
}

// Close shuts down the consumer group
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes one partition's messages in order
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handleMessage(session.Context(), msg); err != nil {
				// Only cancellation reaches here; leave the message
				// unacked so the next session redelivers it.
				return nil
			}
			session.MarkMessage(msg, "")
		}
	}
}

// handleMessage resolves one message to an outcome. A nil return means
// the message may be acked.
func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope domain.AlertEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return c.deadLetter(ctx, msg, nil, fmt.Sprintf("malformed payload: %v", err), 0)
	}
	alert := envelope.Alert
	if alert == nil {
		return c.deadLetter(ctx, msg, nil, "envelope missing payload", 0)
	}
	if !alert.AlertType.IsKnown() {
		return c.deadLetter(ctx, msg, alert, fmt.Sprintf("unknown alert type %q", alert.AlertType), 0)
	}

	key := alert.DedupKey()
	seen, err := c.dedup.Seen(ctx, key)
	if err != nil {
		// Dedup cache trouble must not stall the pipeline; processing
		// twice beats processing never.
		c.log.Warn("dedup lookup failed, processing anyway",
			logger.StringField("dedup_key", key),
			logger.ErrorField(err))
	} else if seen {
		c.log.AlertDeduplicated(key)
		return nil
	}

	c.log.AlertReceived(alert.AlertID.String(), string(alert.AlertType), alert.EntityID)

	_, procErr := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.processWithRetry(ctx, alert)
	})

	switch {
	case procErr == nil:
		if err := c.dedup.Mark(ctx, key); err != nil {
			c.log.Warn("dedup mark failed",
				logger.StringField("dedup_key", key),
				logger.ErrorField(err))
		}
		return nil

	case errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded):
		return procErr

	case errors.Is(procErr, gobreaker.ErrOpenState) || errors.Is(procErr, gobreaker.ErrTooManyRequests):
		if err := c.deadLetter(ctx, msg, alert, "circuit open", 0); err != nil {
			return err
		}
		subject := "Alert processing circuit open"
		body := fmt.Sprintf("Alert %s for entity %s was dead-lettered without processing; downstream is failing.",
			alert.AlertID, alert.EntityID)
		if err := c.notify.NotifyOperations(ctx, subject, body); err != nil {
			c.log.Error("operations notification failed", logger.ErrorField(err))
		}
		return nil

	case errs.IsData(procErr):
		return c.deadLetter(ctx, msg, alert, fmt.Sprintf("data error: %v", procErr), 1)

	case errs.IsBusiness(procErr):
		return c.routeBusinessFailure(ctx, alert, procErr)

	default:
		return c.deadLetter(ctx, msg, alert, fmt.Sprintf("retries exhausted: %v", procErr), c.cfg.MaxRetries)
	}
}

// processWithRetry retries transient failures with exponential backoff.
// Data and business errors return immediately.
func (c *Consumer) processWithRetry(ctx context.Context, alert *domain.ComplianceAlert) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := c.cfg.RetryBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = c.processor.Process(ctx, alert)
		if err == nil {
			return nil
		}
		if !errs.IsTransient(err) {
			return err
		}
		c.log.Warn("alert processing attempt failed",
			logger.StringField("alert_id", alert.AlertID.String()),
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
	}
	return err
}

// routeBusinessFailure sends policy rejections to a human instead of the
// dead-letter topic; the message itself was well formed and delivered.
func (c *Consumer) routeBusinessFailure(ctx context.Context, alert *domain.ComplianceAlert, cause error) error {
	record := &domain.AuditRecord{
		Action:     "ALERT_BUSINESS_REJECT",
		EntityID:   alert.EntityID,
		ResourceID: alert.AlertID.String(),
		Actor:      "system:consumer",
		Detail:     cause.Error(),
		OccurredAt: c.clk.Now(),
	}
	if err := c.audit.Record(ctx, record); err != nil {
		c.log.Error("audit record failed", logger.ErrorField(err))
	}

	subject := fmt.Sprintf("Alert %s needs investigator review", alert.AlertID)
	body := fmt.Sprintf("Alert type %s for entity %s was rejected by policy: %v",
		alert.AlertType, alert.EntityID, cause)
	if err := c.notify.NotifyComplianceOfficer(ctx, subject, body); err != nil {
		c.log.Error("officer notification failed", logger.ErrorField(err))
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, alert *domain.ComplianceAlert, reason string, attempts int) error {
	if err := c.dlq.Send(msg.Topic, msg.Key, msg.Value, reason, attempts); err != nil {
		c.log.Error("dead letter publish failed",
			logger.StringField("topic", msg.Topic+DeadLetterSuffix),
			logger.ErrorField(err))
		// The message still gets acked; losing it to a retry storm on a
		// dead DLQ would block the whole partition.
	}

	alertID := "unknown"
	entityID := ""
	if alert != nil {
		alertID = alert.AlertID.String()
		entityID = alert.EntityID
	}
	c.log.AlertDeadLettered(alertID, msg.Topic+DeadLetterSuffix, reason, attempts)

	record := &domain.AuditRecord{
		Action:     "ALERT_DEAD_LETTERED",
		EntityID:   entityID,
		ResourceID: alertID,
		Actor:      "system:consumer",
		Detail:     reason,
		OccurredAt: c.clk.Now(),
	}
	if err := c.audit.Record(ctx, record); err != nil {
		c.log.Error("audit record failed", logger.ErrorField(err))
	}
	return nil
}
