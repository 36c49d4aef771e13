package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server     ServerConfig     `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:",squash"`
	Redis      RedisConfig      `mapstructure:",squash"`
	Scoring    ScoringConfig    `mapstructure:",squash"`
	Reconciler ReconcilerConfig `mapstructure:",squash"`
	Logging    LoggingConfig    `mapstructure:",squash"`
	Policy     PolicyConfig     `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"REDIS_HOST"`
	Port     string        `mapstructure:"REDIS_PORT"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"REDIS_DB"`
	LockTTL  time.Duration `mapstructure:"REDIS_LOCK_TTL"`
}

type ScoringConfig struct {
	Source     string        `mapstructure:"SCORING_SOURCE"` // rules | remote
	RemoteURL  string        `mapstructure:"SCORING_REMOTE_URL"`
	Timeout    time.Duration `mapstructure:"SCORING_TIMEOUT"`
	MaxRetries int           `mapstructure:"SCORING_MAX_RETRIES"`
	RetryDelay time.Duration `mapstructure:"SCORING_RETRY_DELAY"`
}

type ReconcilerConfig struct {
	LedgerRetrySpec  string `mapstructure:"RECONCILER_LEDGER_CRON"`
	ScoringRetrySpec string `mapstructure:"RECONCILER_SCORING_CRON"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// PolicyConfig carries the decision-band and scoring parameters. The source
// material disagrees on the exact numbers, so every one of them is a named
// parameter rather than a constant.
type PolicyConfig struct {
	ApproveBelow          int    `mapstructure:"POLICY_APPROVE_BELOW"`
	RejectAbove           int    `mapstructure:"POLICY_REJECT_ABOVE"`
	ActivityWeight        int    `mapstructure:"POLICY_ACTIVITY_WEIGHT"`
	BehavioralWeight      int    `mapstructure:"POLICY_BEHAVIORAL_WEIGHT"`
	SocioWeight           int    `mapstructure:"POLICY_SOCIO_WEIGHT"`
	DownPaymentRelief     string `mapstructure:"POLICY_DOWN_PAYMENT_RELIEF"`
	SnapshotWindow        int    `mapstructure:"POLICY_SNAPSHOT_WINDOW"`
	CurrencyScale         int32  `mapstructure:"POLICY_CURRENCY_SCALE"`
	PurchaseCeiling       string `mapstructure:"POLICY_PURCHASE_CEILING"`
	PurchaseHighAmount    string `mapstructure:"POLICY_PURCHASE_HIGH_AMOUNT"`
	IslamicCeiling        string `mapstructure:"POLICY_ISLAMIC_CEILING"`
	IslamicHighAmount     string `mapstructure:"POLICY_ISLAMIC_HIGH_AMOUNT"`
	ProhibitedPurposes    string `mapstructure:"POLICY_PROHIBITED_PURPOSES"`
	MinPurposeWords       int    `mapstructure:"POLICY_MIN_PURPOSE_WORDS"`
}

// ProductPolicy is the per-product slice of the policy, with amounts parsed.
type ProductPolicy struct {
	ProductType         string
	AmountCeiling       decimal.Decimal
	HighAmountThreshold decimal.Decimal
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_NAME", "financing")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "postgres")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_LOCK_TTL", "10s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("SCORING_SOURCE", "rules")
	viper.SetDefault("SCORING_TIMEOUT", "5s")
	viper.SetDefault("SCORING_MAX_RETRIES", 2)
	viper.SetDefault("SCORING_RETRY_DELAY", "200ms")
	viper.SetDefault("RECONCILER_LEDGER_CRON", "0 */1 * * * *")
	viper.SetDefault("RECONCILER_SCORING_CRON", "0 */5 * * * *")
	viper.SetDefault("POLICY_APPROVE_BELOW", 40)
	viper.SetDefault("POLICY_REJECT_ABOVE", 70)
	viper.SetDefault("POLICY_ACTIVITY_WEIGHT", 35)
	viper.SetDefault("POLICY_BEHAVIORAL_WEIGHT", 35)
	viper.SetDefault("POLICY_SOCIO_WEIGHT", 30)
	viper.SetDefault("POLICY_DOWN_PAYMENT_RELIEF", "0.20")
	viper.SetDefault("POLICY_SNAPSHOT_WINDOW", 10)
	viper.SetDefault("POLICY_CURRENCY_SCALE", 0)
	viper.SetDefault("POLICY_PURCHASE_CEILING", "100000")
	viper.SetDefault("POLICY_PURCHASE_HIGH_AMOUNT", "150000")
	viper.SetDefault("POLICY_ISLAMIC_CEILING", "300000")
	viper.SetDefault("POLICY_ISLAMIC_HIGH_AMOUNT", "500000")
	viper.SetDefault("POLICY_PROHIBITED_PURPOSES", "alcohol,gambling,tobacco,weapons,interest lending")
	viper.SetDefault("POLICY_MIN_PURPOSE_WORDS", 3)

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	if c.Scoring.Source != "rules" && c.Scoring.Source != "remote" {
		return fmt.Errorf("SCORING_SOURCE must be rules or remote")
	}

	if c.Scoring.Source == "remote" && c.Scoring.RemoteURL == "" {
		return fmt.Errorf("SCORING_REMOTE_URL is required when SCORING_SOURCE is remote")
	}

	p := c.Policy
	if p.ApproveBelow <= 0 || p.RejectAbove >= 100 || p.ApproveBelow > p.RejectAbove {
		return fmt.Errorf("decision bands must satisfy 0 < POLICY_APPROVE_BELOW <= POLICY_REJECT_ABOVE < 100")
	}

	if p.ActivityWeight+p.BehavioralWeight+p.SocioWeight != 100 {
		return fmt.Errorf("score weights must sum to 100")
	}

	if p.SnapshotWindow <= 0 {
		return fmt.Errorf("POLICY_SNAPSHOT_WINDOW must be greater than 0")
	}

	for _, v := range []string{p.DownPaymentRelief, p.PurchaseCeiling, p.PurchaseHighAmount, p.IslamicCeiling, p.IslamicHighAmount} {
		if _, err := decimal.NewFromString(v); err != nil {
			return fmt.Errorf("policy amount %q must be a valid decimal: %w", v, err)
		}
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DSN builds the Postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Addr returns the redis host:port pair.
func (r *RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// ProductPolicyFor resolves the amount parameters for a product type.
func (c *Config) ProductPolicyFor(productType string) ProductPolicy {
	p := ProductPolicy{ProductType: productType}
	switch productType {
	case "islamic_financing":
		p.AmountCeiling, _ = decimal.NewFromString(c.Policy.IslamicCeiling)
		p.HighAmountThreshold, _ = decimal.NewFromString(c.Policy.IslamicHighAmount)
	default:
		p.AmountCeiling, _ = decimal.NewFromString(c.Policy.PurchaseCeiling)
		p.HighAmountThreshold, _ = decimal.NewFromString(c.Policy.PurchaseHighAmount)
	}
	return p
}

// DownPaymentRelief returns the down-payment ratio that reduces behavioral risk.
func (c *Config) DownPaymentRelief() decimal.Decimal {
	relief, _ := decimal.NewFromString(c.Policy.DownPaymentRelief)
	return relief
}

// ProhibitedPurposeList splits the configured prohibited purpose categories.
func (c *Config) ProhibitedPurposeList() []string {
	parts := strings.Split(c.Policy.ProhibitedPurposes, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
