package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Gateway    GatewayConfig
	Auth       AuthConfig
	Exchange   ExchangeConfig
	Moderation ModerationConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	UploadsPerHour  int
}

// DatabaseConfig holds database configuration. Driver is "postgres" or
// "memory".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	DraftTTL time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	PresignExpiry   time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host                string
	Port                int
	User                string
	Password            string
	Vhost               string
	MaxDeliveryAttempts int
}

// GatewayConfig holds the chat transport endpoint used for direct delivery
type GatewayConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	JWTSecret string
	AdminIDs  []int64
}

// ExchangeConfig holds the task exchange rules
type ExchangeConfig struct {
	ReviewTimeout       time.Duration
	MaxVideosPerUser    int
	MaxStrikes          int
	TrialPeriodDays     int
	DefaultSubPrice     int
	NotificationTimeout time.Duration
	SweepInterval       time.Duration
	SweepGrace          time.Duration
}

// ModerationConfig holds the content denylist
type ModerationConfig struct {
	Denylist []string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// DefaultDenylist is the keyword list used when none is configured
var DefaultDenylist = []string{
	"18+", "adult", "nsfw", "xxx", "crypto", "scam", "hack",
	"free money", "get rich quick", "misleading",
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Exchange.ReviewTimeout <= 0 {
		return fmt.Errorf("invalid config: exchange.reviewTimeout must be positive")
	}
	if c.Exchange.MaxVideosPerUser < 1 {
		return fmt.Errorf("invalid config: exchange.maxVideosPerUser must be at least 1")
	}
	if c.Exchange.MaxStrikes < 1 {
		return fmt.Errorf("invalid config: exchange.maxStrikes must be at least 1")
	}
	if c.Exchange.SweepInterval <= 0 {
		return fmt.Errorf("invalid config: exchange.sweepInterval must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid config: unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// IsAdmin reports whether userID is in the configured admin list
func (a AuthConfig) IsAdmin(userID int64) bool {
	for _, id := range a.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.rateLimitRPS", 5)
	v.SetDefault("server.rateLimitBurst", 10)
	v.SetDefault("server.uploadsPerHour", 30)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "watchswap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.draftTTL", "30m")

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "watchswap")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.presignExpiry", "1h")

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.maxDeliveryAttempts", 5)

	// Gateway defaults
	v.SetDefault("gateway.url", "http://localhost:8081/deliver")
	v.SetDefault("gateway.secret", "")
	v.SetDefault("gateway.timeout", "10s")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "change-me")
	v.SetDefault("auth.adminIDs", []int64{})

	// Exchange defaults
	v.SetDefault("exchange.reviewTimeout", "20m")
	v.SetDefault("exchange.maxVideosPerUser", 5)
	v.SetDefault("exchange.maxStrikes", 4)
	v.SetDefault("exchange.trialPeriodDays", 3)
	v.SetDefault("exchange.defaultSubPrice", 30)
	v.SetDefault("exchange.notificationTimeout", "10s")
	v.SetDefault("exchange.sweepInterval", "1m")
	v.SetDefault("exchange.sweepGrace", "1m")

	// Moderation defaults
	v.SetDefault("moderation.denylist", DefaultDenylist)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "watchswap")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}
