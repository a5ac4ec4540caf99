package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"apocaliptyx/database"
	"apocaliptyx/domain/entities"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Server configuration
	HTTPAddr        string
	Environment     string // "development", "production" or "test"
	LogLevel        string
	StartingBalance int64

	// Events and cache
	NATSServers string // empty disables NATS, events stay in-process
	RedisURL    string // empty disables the scenario cache
	CacheTTL    time.Duration

	// Auth and rate limiting
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int

	// Steal policy
	StealBaseCost         int64
	StealPoolRate         decimal.Decimal
	StealEscalation       decimal.Decimal
	StealCompensationRate decimal.Decimal
	StealCooldown         time.Duration

	// Shields
	ShieldCatalog entities.ShieldCatalog

	// Pools
	ZeroStakePolicy    entities.ZeroStakePolicy
	PoolRecalcSchedule string

	// Discord webhook for steal announcements
	DiscordWebhookID    string
	DiscordWebhookToken string

	// OpenTelemetry
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL combines the base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UseMemoryStore reports whether the service runs without Postgres
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURL == "" && c.Environment != "production"
}

// Load reads the configuration from the environment, after an optional .env file
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr:        getEnvWithDefault("HTTP_ADDR", ":8080"),
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		StartingBalance: p.int64("STARTING_BALANCE", 1000),

		NATSServers: os.Getenv("NATS_SERVERS"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CacheTTL:    p.duration("CACHE_TTL", 30*time.Second),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		RateLimitRPS:   p.float("RATE_LIMIT_RPS", 2),
		RateLimitBurst: p.int("RATE_LIMIT_BURST", 5),

		StealBaseCost:         p.int64("STEAL_BASE_COST", 100),
		StealPoolRate:         p.decimal("STEAL_POOL_RATE", "0.10"),
		StealEscalation:       p.decimal("STEAL_ESCALATION", "0.25"),
		StealCompensationRate: p.decimal("STEAL_COMPENSATION_RATE", "0.5"),
		StealCooldown:         p.duration("STEAL_COOLDOWN", 0),

		ShieldCatalog: entities.ShieldCatalog{
			entities.ShieldTierBasic: {
				Cost:     p.int64("SHIELD_BASIC_COST", 50),
				Duration: p.duration("SHIELD_BASIC_DURATION", time.Hour),
			},
			entities.ShieldTierPremium: {
				Cost:     p.int64("SHIELD_PREMIUM_COST", 150),
				Duration: p.duration("SHIELD_PREMIUM_DURATION", 6*time.Hour),
			},
			entities.ShieldTierUltimate: {
				Cost:     p.int64("SHIELD_ULTIMATE_COST", 400),
				Duration: p.duration("SHIELD_ULTIMATE_DURATION", 24*time.Hour),
			},
		},

		PoolRecalcSchedule: getEnvWithDefault("POOL_RECALC_SCHEDULE", "0 */10 * * * *"),

		DiscordWebhookID:    os.Getenv("DISCORD_WEBHOOK_ID"),
		DiscordWebhookToken: os.Getenv("DISCORD_WEBHOOK_TOKEN"),

		OTelEnabled:              p.bool("OTEL_ENABLED", false),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "apocaliptyx"),
		OTelExportIntervalMillis: p.int("OTEL_EXPORT_INTERVAL_MS", 30000),
	}

	policy, err := entities.ParseZeroStakePolicy(getEnvWithDefault("POOL_ZERO_STAKE_POLICY", string(entities.ZeroStakeCountVotes)))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("POOL_ZERO_STAKE_POLICY: %w", err))
	}
	config.ZeroStakePolicy = policy

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", p.errs[0])
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Environment == "production" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be blank when provided")
	}
	if c.StartingBalance < 0 {
		return fmt.Errorf("STARTING_BALANCE cannot be negative")
	}
	if c.StealBaseCost < 1 {
		return fmt.Errorf("STEAL_BASE_COST must be at least 1")
	}
	if c.StealCompensationRate.IsNegative() || c.StealCompensationRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("STEAL_COMPENSATION_RATE must be between 0 and 1")
	}
	for tier, terms := range c.ShieldCatalog {
		if terms.Duration <= 0 {
			return fmt.Errorf("shield %s duration must be positive", tier)
		}
		if terms.Cost < 0 {
			return fmt.Errorf("shield %s cost cannot be negative", tier)
		}
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects the first error per malformed key instead of silently
// falling back to the default
type parser struct {
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) int64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) int(key string, def int) int {
	return int(p.int64(key, int64(def)))
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	raw := getEnvWithDefault(key, def)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, err)
		return decimal.RequireFromString(def)
	}
	return v
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:              ":0",
		Environment:           "test",
		LogLevel:              "debug",
		StartingBalance:       1000,
		CacheTTL:              time.Minute,
		JWTSecret:             "test-secret",
		RateLimitRPS:          100,
		RateLimitBurst:        100,
		StealBaseCost:         100,
		StealPoolRate:         decimal.RequireFromString("0.10"),
		StealEscalation:       decimal.RequireFromString("0.25"),
		StealCompensationRate: decimal.RequireFromString("0.5"),
		ShieldCatalog:         entities.DefaultShieldCatalog(),
		ZeroStakePolicy:       entities.ZeroStakeCountVotes,
		PoolRecalcSchedule:    "0 */10 * * * *",
		OTelExporterType:      "none",
		OTelServiceName:       "apocaliptyx-test",
	}
}
