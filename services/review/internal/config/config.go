package config

import (
	"fmt"
	"regexp"
	"time"

	pkgconfig "github.com/healthapp/reviews/pkg/config"
	"github.com/healthapp/reviews/pkg/database"
	pkgkafka "github.com/healthapp/reviews/pkg/kafka"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/pkg/tracing"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"REVIEW_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Postgres database.PostgresConfig
	Redis    database.RedisConfig
	Kafka    pkgkafka.ProducerConfig
	Tracing  tracing.Config
	CORS     middleware.CORSConfig

	// Rating aggregate consumer
	ConsumerGroup string `env:"REVIEW_CONSUMER_GROUP" envDefault:"review-rating-projector"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"identity-service"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"15m"`

	// Caching and rate limits
	RatingCacheTTL time.Duration `env:"RATING_CACHE_TTL" envDefault:"10m"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Moderation
	AutoApprove         bool   `env:"MODERATION_AUTO_APPROVE" envDefault:"true"`
	MinAutoApproveChars int    `env:"MODERATION_MIN_TEXT_LENGTH" envDefault:"10"`
	ProfanityFilter     bool   `env:"MODERATION_PROFANITY_FILTER" envDefault:"true"`
	ProfanityPattern    string `env:"MODERATION_PROFANITY_PATTERN" envDefault:"(?i)\\b(badword1|badword2)\\b"`
	ReportFlagThreshold int    `env:"MODERATION_REPORT_FLAG_THRESHOLD" envDefault:"5"`

	// Slow query logging
	SlowQueryThreshold time.Duration `env:"LOG_SLOW_QUERY" envDefault:"500ms"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Tracing.ServiceName = "review-service"
	return cfg, nil
}

// Validate checks ranges the env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.Tracing.SampleRate)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got %.2f rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.ReportFlagThreshold < 1 {
		return fmt.Errorf("MODERATION_REPORT_FLAG_THRESHOLD must be positive, got %d", c.ReportFlagThreshold)
	}
	if _, err := regexp.Compile(c.ProfanityPattern); err != nil {
		return fmt.Errorf("MODERATION_PROFANITY_PATTERN: %w", err)
	}
	return nil
}
