package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Name: "financing"},
		Scoring:  ScoringConfig{Source: "rules"},
		Policy: PolicyConfig{
			ApproveBelow:       40,
			RejectAbove:        70,
			ActivityWeight:     35,
			BehavioralWeight:   35,
			SocioWeight:        30,
			DownPaymentRelief:  "0.20",
			SnapshotWindow:     10,
			PurchaseCeiling:    "100000",
			PurchaseHighAmount: "150000",
			IslamicCeiling:     "300000",
			IslamicHighAmount:  "500000",
			ProhibitedPurposes: "alcohol, Gambling ,tobacco",
			MinPurposeWords:    3,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:          "missing server port",
			mutate:        func(c *Config) { c.Server.Port = "" },
			errorContains: "SERVER_PORT",
		},
		{
			name:          "unknown scoring source",
			mutate:        func(c *Config) { c.Scoring.Source = "oracle" },
			errorContains: "SCORING_SOURCE",
		},
		{
			name:          "remote scoring needs a URL",
			mutate:        func(c *Config) { c.Scoring.Source = "remote" },
			errorContains: "SCORING_REMOTE_URL",
		},
		{
			name: "inverted decision bands",
			mutate: func(c *Config) {
				c.Policy.ApproveBelow = 80
				c.Policy.RejectAbove = 40
			},
			errorContains: "decision bands",
		},
		{
			name:          "weights must sum to 100",
			mutate:        func(c *Config) { c.Policy.ActivityWeight = 50 },
			errorContains: "weights",
		},
		{
			name:          "snapshot window must be positive",
			mutate:        func(c *Config) { c.Policy.SnapshotWindow = 0 },
			errorContains: "POLICY_SNAPSHOT_WINDOW",
		},
		{
			name:          "policy amounts must parse as decimals",
			mutate:        func(c *Config) { c.Policy.PurchaseCeiling = "a lot" },
			errorContains: "valid decimal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestProductPolicyFor(t *testing.T) {
	cfg := validConfig()

	purchase := cfg.ProductPolicyFor("purchase_credit")
	assert.True(t, purchase.AmountCeiling.Equal(decimal.NewFromInt(100000)))
	assert.True(t, purchase.HighAmountThreshold.Equal(decimal.NewFromInt(150000)))

	islamic := cfg.ProductPolicyFor("islamic_financing")
	assert.True(t, islamic.AmountCeiling.Equal(decimal.NewFromInt(300000)))
	assert.True(t, islamic.HighAmountThreshold.Equal(decimal.NewFromInt(500000)))
}

func TestProhibitedPurposeList(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, []string{"alcohol", "gambling", "tobacco"}, cfg.ProhibitedPurposeList())
}

func TestDownPaymentRelief(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.DownPaymentRelief().Equal(decimal.RequireFromString("0.20")))
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		Name:     "financing",
		User:     "postgres",
		Password: "postgres",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=financing sslmode=disable",
		d.DSN())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: "6379"}
	assert.Equal(t, "localhost:6379", r.Addr())
}
