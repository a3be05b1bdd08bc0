// Package config loads server settings from the environment (and an optional
// .env file) into one struct that is passed to every component at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/studysage/backend/internal/clock"
)

type Config struct {
	// --- Server ---
	Port               string   `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// --- Application ---
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	// Reference zone for every streak and quota day boundary.
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Storage ---
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"studysage"`
	DBPassword  string `envconfig:"DB_PASSWORD" default:"studysage"`
	DBName      string `envconfig:"DB_NAME" default:"studysage"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns  int    `envconfig:"DB_MAX_CONNS" default:"25"`
	DBIdleConns int    `envconfig:"DB_IDLE_CONNS" default:"5"`
	// Extra attempts after a concurrent-update conflict.
	TxMaxRetries int `envconfig:"TX_MAX_RETRIES" default:"3"`

	// --- Auth ---
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"72h"`

	// --- Quota ---
	QuotaDailyFlashcards int    `envconfig:"QUOTA_DAILY_FLASHCARDS" default:"10"`
	QuotaDailyQuizzes    int    `envconfig:"QUOTA_DAILY_QUIZZES" default:"5"`
	QuotaSweepSchedule   string `envconfig:"QUOTA_SWEEP_SCHEDULE" default:"5 0 * * *"`
	GenerationCount      int    `envconfig:"GENERATION_COUNT" default:"10"`

	// --- Payments ---
	StripePaymentLink string `envconfig:"STRIPE_PAYMENT_LINK"`

	// --- AI generation ---
	AIProvider      string        `envconfig:"AI_PROVIDER" default:"anthropic"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5-20250929"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel     string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	AITimeout       time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	UseCLIGenerator bool          `envconfig:"USE_CLI_GENERATOR" default:"false"`
	ClaudeCLIPath   string        `envconfig:"CLAUDE_CLI_PATH" default:"claude"`
	MockGenerator   bool          `envconfig:"MOCK_GENERATOR" default:"false"`
}

// DatabaseDSN returns the PostgreSQL connection URL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location resolves AppTimezone.
func (c *Config) Location() (*time.Location, error) {
	return clock.LoadLocation(c.AppTimezone)
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE: %w", err))
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver))
	}
	switch strings.ToLower(c.AIProvider) {
	case "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be anthropic or openai, got %q", c.AIProvider))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.QuotaDailyFlashcards < 0 || c.QuotaDailyQuizzes < 0 {
		errs = append(errs, errors.New("QUOTA_DAILY_* must be >= 0"))
	}
	if c.GenerationCount < 1 || c.GenerationCount > 50 {
		errs = append(errs, errors.New("GENERATION_COUNT must be between 1 and 50"))
	}
	if c.TxMaxRetries < 0 {
		errs = append(errs, errors.New("TX_MAX_RETRIES must be >= 0"))
	}
	if c.DBMaxConns <= 0 || c.DBIdleConns < 0 || c.DBIdleConns > c.DBMaxConns {
		errs = append(errs, errors.New("invalid DB_MAX_CONNS/DB_IDLE_CONNS"))
	}
	return errors.Join(errs...)
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
