package logger

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with compliance-specific functionality
type Logger struct {
	*zap.Logger
	serviceName string
}

// ContextKey for request context values
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	EntityIDKey  ContextKey = "entity_id"
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	FilingIDKey  ContextKey = "filing_id"
)

// New creates a new logger instance
func New(serviceName, environment string, debug bool) (*Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Add service metadata
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     environment,
		"pid":     os.Getpid(),
	}

	zapLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger:      zapLogger,
		serviceName: serviceName,
	}, nil
}

// Named returns a named sub-logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		serviceName: l.serviceName,
	}
}

// WithContext returns a logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if entityID, ok := ctx.Value(EntityIDKey).(string); ok && entityID != "" {
		fields = append(fields, zap.String("entity_id", entityID))
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if spanID, ok := ctx.Value(SpanIDKey).(string); ok && spanID != "" {
		fields = append(fields, zap.String("span_id", spanID))
	}
	if filingID, ok := ctx.Value(FilingIDKey).(string); ok && filingID != "" {
		fields = append(fields, zap.String("filing_id", filingID))
	}

	return &Logger{
		Logger:      l.With(fields...),
		serviceName: l.serviceName,
	}
}

// WithAlert returns a logger with alert context
func (l *Logger) WithAlert(alertID, alertType string) *Logger {
	return &Logger{
		Logger: l.With(
			zap.String("alert_id", alertID),
			zap.String("alert_type", alertType),
		),
		serviceName: l.serviceName,
	}
}

// WithFiling returns a logger with filing context
func (l *Logger) WithFiling(filingID, filingNumber string) *Logger {
	return &Logger{
		Logger: l.With(
			zap.String("filing_id", filingID),
			zap.String("filing_number", filingNumber),
		),
		serviceName: l.serviceName,
	}
}

// AlertReceived logs an incoming compliance alert
func (l *Logger) AlertReceived(alertID, alertType, entityID string) {
	l.Info("alert received",
		zap.String("alert_id", alertID),
		zap.String("alert_type", alertType),
		zap.String("entity_id", entityID),
	)
}

// AlertDeduplicated logs a duplicate alert being skipped
func (l *Logger) AlertDeduplicated(dedupKey string) {
	l.Info("duplicate alert skipped",
		zap.String("dedup_key", dedupKey),
	)
}

// AlertDeadLettered logs an alert routed to the dead letter topic
func (l *Logger) AlertDeadLettered(alertID, topic, reason string, attempts int) {
	l.Error("alert dead lettered",
		zap.String("alert_id", alertID),
		zap.String("dlq_topic", topic),
		zap.String("reason", reason),
		zap.Int("attempts", attempts),
	)
}

// RiskScored logs a completed risk assessment
func (l *Logger) RiskScored(txID string, score float64, level string, durationMs int64) {
	l.Info("transaction scored",
		zap.String("transaction_id", txID),
		zap.Float64("risk_score", score),
		zap.String("risk_level", level),
		zap.Int64("duration_ms", durationMs),
	)
}

// FailSecure logs a fail-secure elevated assessment
func (l *Logger) FailSecure(txID string, score float64, err error) {
	l.Warn("risk scoring failed secure",
		zap.String("transaction_id", txID),
		zap.Float64("risk_score", score),
		zap.Error(err),
	)
}

// FilingCreated logs creation of a regulatory filing
func (l *Logger) FilingCreated(filingID, filingNumber, entityID string, deadline time.Time) {
	l.Info("filing created",
		zap.String("filing_id", filingID),
		zap.String("filing_number", filingNumber),
		zap.String("entity_id", entityID),
		zap.Time("deadline", deadline),
	)
}

// FilingTransition logs a filing status transition
func (l *Logger) FilingTransition(filingID, from, to, actor string) {
	l.Info("filing status changed",
		zap.String("filing_id", filingID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor", actor),
	)
}

// DeadlineEscalation logs an emergency or overdue escalation
func (l *Logger) DeadlineEscalation(filingID, band string, hoursRemaining float64) {
	l.Warn("filing deadline escalation",
		zap.String("filing_id", filingID),
		zap.String("band", band),
		zap.Float64("hours_remaining", hoursRemaining),
	)
}

// ManualQueueItemCreated logs escalation into the manual filing queue
func (l *Logger) ManualQueueItemCreated(itemID, filingID, priority string) {
	l.Warn("manual filing queue item created",
		zap.String("item_id", itemID),
		zap.String("filing_id", filingID),
		zap.String("priority", priority),
	)
}

// CircuitOpened logs a circuit breaker state change to open
func (l *Logger) CircuitOpened(name string) {
	l.Error("circuit breaker opened",
		zap.String("breaker", name),
	)
}

// JobStarted logs a scheduled job run
func (l *Logger) JobStarted(job string) {
	l.Debug("scheduled job started",
		zap.String("job", job),
	)
}

// JobSkipped logs a scheduled job skipped because the prior run is active
func (l *Logger) JobSkipped(job string) {
	l.Warn("scheduled job skipped, previous run still active",
		zap.String("job", job),
	)
}

// Helper field functions

// ErrorField creates an error field
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// DurationField creates a duration field
func DurationField(name string, d time.Duration) zap.Field {
	return zap.Duration(name, d)
}

// StringField creates a string field
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates an int field
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Float64Field creates a float64 field
func Float64Field(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// BoolField creates a bool field
func BoolField(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}
