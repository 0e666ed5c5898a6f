package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the compliance service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Filing    FilingConfig    `mapstructure:"filing"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
	VelocityTTL  time.Duration `mapstructure:"velocity_ttl"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers            []string      `mapstructure:"brokers"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	AlertsTopic        string        `mapstructure:"alerts_topic"`
	AuditTopic         string        `mapstructure:"audit_topic"`
	NotificationsTopic string        `mapstructure:"notifications_topic"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
}

// RiskConfig holds risk scoring configuration
type RiskConfig struct {
	AmountAnomalyWeight     float64       `mapstructure:"amount_anomaly_weight"`
	VelocityPoints          float64       `mapstructure:"velocity_points"`
	GeographicWeight        float64       `mapstructure:"geographic_weight"`
	DeviceWeight            float64       `mapstructure:"device_weight"`
	UnusualTimePoints       float64       `mapstructure:"unusual_time_points"`
	HistoryWeight           float64       `mapstructure:"history_weight"`
	ZScoreScale             float64       `mapstructure:"z_score_scale"`
	ColdStartAnomaly        float64       `mapstructure:"cold_start_anomaly"`
	MinHistorySamples       int           `mapstructure:"min_history_samples"`
	VelocityWindow          time.Duration `mapstructure:"velocity_window"`
	VelocityThreshold       int           `mapstructure:"velocity_threshold"`
	VelocityAmountThreshold float64       `mapstructure:"velocity_amount_threshold"`
	HighAmountThreshold     float64       `mapstructure:"high_amount_threshold"`
	CriticalAmountThreshold float64       `mapstructure:"critical_amount_threshold"`
	FailSecureScore         float64       `mapstructure:"fail_secure_score"`
	DayStartHour            int           `mapstructure:"day_start_hour"`
	DayEndHour              int           `mapstructure:"day_end_hour"`
	HighRiskCountries       []string      `mapstructure:"high_risk_countries"`
	ElevatedRiskCountries   []string      `mapstructure:"elevated_risk_countries"`
	FraudServiceURL         string        `mapstructure:"fraud_service_url"`
	FraudServiceTimeout     time.Duration `mapstructure:"fraud_service_timeout"`
}

// FilingConfig holds regulatory filing configuration
type FilingConfig struct {
	DeadlineDays      int           `mapstructure:"deadline_days"`
	MaxRetries        int           `mapstructure:"max_retries"`
	EmergencyWindow   time.Duration `mapstructure:"emergency_window"`
	CriticalWindow    time.Duration `mapstructure:"critical_window"`
	WarningWindow     time.Duration `mapstructure:"warning_window"`
	ReminderDays      []int         `mapstructure:"reminder_days"`
	ComplianceOfficer string        `mapstructure:"compliance_officer"`
	ExecutiveContact  string        `mapstructure:"executive_contact"`
	GatewayURL        string        `mapstructure:"gateway_url"`
	GatewayTimeout    time.Duration `mapstructure:"gateway_timeout"`
}

// QueueConfig holds manual filing queue configuration
type QueueConfig struct {
	HighPriorityWindow   time.Duration `mapstructure:"high_priority_window"`
	NormalPriorityWindow time.Duration `mapstructure:"normal_priority_window"`
}

// SchedulerConfig holds periodic job configuration
type SchedulerConfig struct {
	AlertSweepInterval   time.Duration `mapstructure:"alert_sweep_interval"`
	OverdueSweepInterval time.Duration `mapstructure:"overdue_sweep_interval"`
	FilingSweepInterval  time.Duration `mapstructure:"filing_sweep_interval"`
	DailyReportInterval  time.Duration `mapstructure:"daily_report_interval"`
	WeeklyReportInterval time.Duration `mapstructure:"weekly_report_interval"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName   string  `mapstructure:"service_name"`
	Environment   string  `mapstructure:"environment"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	Debug         bool    `mapstructure:"debug"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	JWTSecret          string   `mapstructure:"jwt_secret"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("COMPLIANCE_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/compliance-service")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults + env
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_request_size", 1048576) // 1MB

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "compliance_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 20)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")
	v.SetDefault("redis.dedup_ttl", "24h")
	v.SetDefault("redis.velocity_ttl", "2h")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "compliance-service-group")
	v.SetDefault("kafka.alerts_topic", "compliance.alerts")
	v.SetDefault("kafka.audit_topic", "compliance.audit.logs")
	v.SetDefault("kafka.notifications_topic", "compliance.notifications")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", "1s")

	// Risk scoring defaults
	v.SetDefault("risk.amount_anomaly_weight", 0.25)
	v.SetDefault("risk.velocity_points", 20.0)
	v.SetDefault("risk.geographic_weight", 0.15)
	v.SetDefault("risk.device_weight", 0.15)
	v.SetDefault("risk.unusual_time_points", 10.0)
	v.SetDefault("risk.history_weight", 10.0)
	v.SetDefault("risk.z_score_scale", 25.0)
	v.SetDefault("risk.cold_start_anomaly", 50.0)
	v.SetDefault("risk.min_history_samples", 5)
	v.SetDefault("risk.velocity_window", "60m")
	v.SetDefault("risk.velocity_threshold", 10)
	v.SetDefault("risk.velocity_amount_threshold", 25000.0)
	v.SetDefault("risk.high_amount_threshold", 10000.0)
	v.SetDefault("risk.critical_amount_threshold", 50000.0)
	v.SetDefault("risk.fail_secure_score", 70.0)
	v.SetDefault("risk.day_start_hour", 6)
	v.SetDefault("risk.day_end_hour", 22)
	v.SetDefault("risk.high_risk_countries", []string{
		"IR", "KP", "SY", "CU", "MM",
	})
	v.SetDefault("risk.elevated_risk_countries", []string{
		"VE", "BY", "RU", "AF", "YE",
	})
	v.SetDefault("risk.fraud_service_url", "http://localhost:8086")
	v.SetDefault("risk.fraud_service_timeout", "2s")

	// Filing defaults
	v.SetDefault("filing.deadline_days", 30)
	v.SetDefault("filing.max_retries", 3)
	v.SetDefault("filing.emergency_window", "2h")
	v.SetDefault("filing.critical_window", "6h")
	v.SetDefault("filing.warning_window", "24h")
	v.SetDefault("filing.reminder_days", []int{7, 3, 1})
	v.SetDefault("filing.compliance_officer", "compliance-officer@bank.internal")
	v.SetDefault("filing.executive_contact", "compliance-exec@bank.internal")
	v.SetDefault("filing.gateway_url", "http://bsa-gateway:8090")
	v.SetDefault("filing.gateway_timeout", "10s")

	// Manual queue defaults
	v.SetDefault("queue.high_priority_window", "168h")   // 7 days
	v.SetDefault("queue.normal_priority_window", "336h") // 14 days

	// Scheduler defaults
	v.SetDefault("scheduler.alert_sweep_interval", "15m")
	v.SetDefault("scheduler.overdue_sweep_interval", "1h")
	v.SetDefault("scheduler.filing_sweep_interval", "5m")
	v.SetDefault("scheduler.daily_report_interval", "24h")
	v.SetDefault("scheduler.weekly_report_interval", "168h")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "compliance-service")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 0.1)
	v.SetDefault("telemetry.debug", false)

	// Security defaults
	v.SetDefault("security.rate_limit_per_minute", 1000)
	v.SetDefault("security.allowed_origins", []string{"*"})
}
