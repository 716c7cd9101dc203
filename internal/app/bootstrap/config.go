package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the escrow engine. It
// merges file defaults and environment overrides to support both local and
// deployed runs. DatabaseURL, RedisURL and KafkaBrokers are all optional:
// without them the engine runs on in-memory adapters, which is what local
// development wants.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string

	GatewayBaseURL string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	ContributionTolerance int64
	DepositFraction       float64
	IdempotencyTTL        time.Duration

	SweepInterval    time.Duration
	SweepBatchSize   int
	SweepConcurrency int
	WindowWarnLead   time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// configFile mirrors the YAML schema used by configs/default.yaml. It is
// intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"dependencies"`
	Gateway struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`
	Funding struct {
		ContributionTolerance int64   `yaml:"contribution_tolerance"`
		DepositFraction       float64 `yaml:"deposit_fraction"`
	} `yaml:"funding"`
	Sweep struct {
		IntervalSeconds  int `yaml:"interval_seconds"`
		BatchSize        int `yaml:"batch_size"`
		Concurrency      int `yaml:"concurrency"`
		WarnLeadHours    int `yaml:"warn_lead_hours"`
	} `yaml:"sweep"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "escrow-engine",
		HTTPPort:           8080,
		GRPCPort:           9090,
		KafkaTopic:         "escrow-engine.events",
		GatewayTimeout:     10 * time.Second,
		DepositFraction:    0.2,
		IdempotencyTTL:     7 * 24 * time.Hour,
		SweepInterval:      time.Minute,
		SweepBatchSize:     200,
		SweepConcurrency:   8,
		WindowWarnLead:     24 * time.Hour,
		MaxDBConns:         20,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Dependencies.KafkaTopic != "" {
			cfg.KafkaTopic = f.Dependencies.KafkaTopic
		}
		if f.Gateway.BaseURL != "" {
			cfg.GatewayBaseURL = f.Gateway.BaseURL
		}
		if f.Gateway.APIKey != "" {
			cfg.GatewayAPIKey = f.Gateway.APIKey
		}
		if f.Gateway.TimeoutSeconds > 0 {
			cfg.GatewayTimeout = time.Duration(f.Gateway.TimeoutSeconds) * time.Second
		}
		if f.Funding.ContributionTolerance > 0 {
			cfg.ContributionTolerance = f.Funding.ContributionTolerance
		}
		if f.Funding.DepositFraction > 0 {
			cfg.DepositFraction = f.Funding.DepositFraction
		}
		if f.Sweep.IntervalSeconds > 0 {
			cfg.SweepInterval = time.Duration(f.Sweep.IntervalSeconds) * time.Second
		}
		if f.Sweep.BatchSize > 0 {
			cfg.SweepBatchSize = f.Sweep.BatchSize
		}
		if f.Sweep.Concurrency > 0 {
			cfg.SweepConcurrency = f.Sweep.Concurrency
		}
		if f.Sweep.WarnLeadHours > 0 {
			cfg.WindowWarnLead = time.Duration(f.Sweep.WarnLeadHours) * time.Hour
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.GatewayBaseURL = envOrDefault("PAYMENT_GATEWAY_URL", cfg.GatewayBaseURL)
	cfg.GatewayAPIKey = envOrDefault("PAYMENT_GATEWAY_API_KEY", cfg.GatewayAPIKey)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.GatewayTimeout = time.Duration(envInt("PAYMENT_GATEWAY_TIMEOUT_SECONDS", int(cfg.GatewayTimeout.Seconds()))) * time.Second
	cfg.ContributionTolerance = int64(envInt("CONTRIBUTION_TOLERANCE", int(cfg.ContributionTolerance)))
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.SweepBatchSize = envInt("SWEEP_BATCH_SIZE", cfg.SweepBatchSize)
	cfg.SweepConcurrency = envInt("SWEEP_CONCURRENCY", cfg.SweepConcurrency)
	cfg.WindowWarnLead = time.Duration(envInt("WINDOW_WARN_LEAD_HOURS", int(cfg.WindowWarnLead.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)

	if raw := os.Getenv("DEPOSIT_FRACTION"); raw != "" {
		if v, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil && v > 0 && v <= 1 {
			cfg.DepositFraction = v
		}
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
