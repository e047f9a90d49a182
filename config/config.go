package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultSecret = "your-secret-key"

// Lock backends
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Commission CommissionConfig
	Premium    PremiumConfig
	Lock       LockConfig
	Kafka      KafkaConfig
	Scheduler  SchedulerConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Name            string
	Environment     string
	Port            string
	Debug           bool
	StartingBalance decimal.Decimal
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxIdle        int
	MaxOpen        int
	MaxLife        time.Duration
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
	CacheTTL time.Duration
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	AccessSecret   string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
}

// CommissionConfig holds the split and cascade rules
type CommissionConfig struct {
	DirectShare decimal.Decimal
	UplineShare decimal.Decimal
	Decay       decimal.Decimal
	MaxDepth    int
}

// PremiumConfig holds freeze settings and the global trigger applied at startup
type PremiumConfig struct {
	ProfitBoost decimal.Decimal
	Seed        bool
	Enabled     bool
	Position    int
	Amount      decimal.Decimal
}

// LockConfig selects the per-user lock implementation
type LockConfig struct {
	Backend    string
	TTL        time.Duration
	RetryDelay time.Duration
	Timeout    time.Duration
}

// KafkaConfig holds ledger event stream settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	MaxAttempts  int
}

// SchedulerConfig holds cron specs for the maintenance jobs
type SchedulerConfig struct {
	Enabled         bool
	ReconcileSpec   string
	PeriodResetSpec string
	Timezone        string
	JobTimeout      time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	startingBalance, err := getEnvDecimal("APP_STARTING_BALANCE", "0")
	if err != nil {
		return nil, err
	}
	directShare, err := getEnvDecimal("COMMISSION_DIRECT_SHARE", "0.80")
	if err != nil {
		return nil, err
	}
	uplineShare, err := getEnvDecimal("COMMISSION_UPLINE_SHARE", "0.20")
	if err != nil {
		return nil, err
	}
	decay, err := getEnvDecimal("COMMISSION_DECAY", "0.10")
	if err != nil {
		return nil, err
	}
	premiumAmount, err := getEnvDecimal("PREMIUM_AMOUNT", "0")
	if err != nil {
		return nil, err
	}
	profitBoost, err := getEnvDecimal("PREMIUM_PROFIT_BOOST", "10")
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "Refledger"),
			Environment:     getEnv("APP_ENV", "development"),
			Port:            getEnv("APP_PORT", "8080"),
			Debug:           getEnvBool("APP_DEBUG", true),
			StartingBalance: startingBalance,
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "refledger_db"),
			User:           getEnv("DB_USER", "refledger_user"),
			Password:       getEnv("DB_PASSWORD", "refledger_password"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxIdle:        getEnvInt("DB_MAX_IDLE", 10),
			MaxOpen:        getEnvInt("DB_MAX_OPEN", 100),
			MaxLife:        getEnvDuration("DB_MAX_LIFE", time.Hour),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", time.Minute),
		},
		Auth: AuthConfig{
			AccessSecret:   getEnv("AUTH_ACCESS_SECRET", getEnv("JWT_SECRET", defaultSecret)),
			Issuer:         getEnv("AUTH_ISSUER", "refledger"),
			Audience:       getEnv("AUTH_AUDIENCE", "refledger-clients"),
			AccessTokenTTL: getEnvDuration("AUTH_ACCESS_TTL", 24*time.Hour),
		},
		Commission: CommissionConfig{
			DirectShare: directShare,
			UplineShare: uplineShare,
			Decay:       decay,
			MaxDepth:    getEnvInt("COMMISSION_MAX_DEPTH", 64),
		},
		Premium: PremiumConfig{
			ProfitBoost: profitBoost,
			Seed:        getEnvBool("PREMIUM_SEED", false),
			Enabled:     getEnvBool("PREMIUM_ENABLED", false),
			Position:    getEnvInt("PREMIUM_POSITION", 0),
			Amount:      premiumAmount,
		},
		Lock: LockConfig{
			Backend:    strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory)),
			TTL:        getEnvDuration("LOCK_TTL", 10*time.Second),
			RetryDelay: getEnvDuration("LOCK_RETRY_DELAY", 25*time.Millisecond),
			Timeout:    getEnvDuration("LOCK_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvSlice("KAFKA_BROKERS", []string{}),
			Topic:        getEnv("KAFKA_LEDGER_TOPIC", "ledger-entries"),
			WriteTimeout: getEnvDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
			MaxAttempts:  getEnvInt("KAFKA_MAX_ATTEMPTS", 3),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", true),
			ReconcileSpec:   getEnv("SCHEDULER_RECONCILE_SPEC", "*/15 * * * *"),
			PeriodResetSpec: getEnv("SCHEDULER_PERIOD_RESET_SPEC", "0 0 * * *"),
			Timezone:        getEnv("SCHEDULER_TIMEZONE", "UTC"),
			JobTimeout:      getEnvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
		},
	}

	return config, nil
}

// GetDSN returns database connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// GetRedisAddr returns Redis connection address
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsDevelopment returns true if environment is development
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if environment is production
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// KafkaEnabled reports whether ledger events should be published
func (k *KafkaConfig) KafkaEnabled() bool {
	return len(k.Brokers) > 0
}

// Location resolves the scheduler timezone
func (s *SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvDecimal fails on malformed money values instead of silently using the default
func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnv(key, defaultValue)
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// Validate validates configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Auth.AccessSecret == "" || c.Auth.AccessSecret == defaultSecret {
		return fmt.Errorf("JWT secret must be set and not use default value")
	}
	if c.App.StartingBalance.IsNegative() {
		return fmt.Errorf("starting balance must not be negative")
	}

	one := decimal.NewFromInt(1)
	if c.Commission.DirectShare.IsNegative() || c.Commission.UplineShare.IsNegative() {
		return fmt.Errorf("commission shares must not be negative")
	}
	if c.Commission.DirectShare.Add(c.Commission.UplineShare).GreaterThan(one) {
		return fmt.Errorf("commission shares must not exceed 1")
	}
	if c.Commission.Decay.IsNegative() || c.Commission.Decay.GreaterThanOrEqual(one) {
		return fmt.Errorf("commission decay must be in [0, 1)")
	}
	if c.Commission.MaxDepth < 0 {
		return fmt.Errorf("commission max depth must not be negative")
	}

	if !c.Premium.ProfitBoost.IsPositive() {
		return fmt.Errorf("premium profit boost must be positive")
	}
	if c.Premium.Seed && c.Premium.Enabled {
		if c.Premium.Position <= 0 || !c.Premium.Amount.IsPositive() {
			return fmt.Errorf("enabled premium trigger needs a positive position and amount")
		}
	}

	switch c.Lock.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("redis lock backend requires REDIS_ENABLED")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.Scheduler.Enabled {
		if _, err := c.Scheduler.Location(); err != nil {
			return fmt.Errorf("invalid scheduler timezone: %w", err)
		}
	}

	return nil
}

// Print prints configuration (excluding sensitive data)
func (c *Config) Print() {
	fmt.Printf("=== Configuration ===\n")
	fmt.Printf("App Name: %s\n", c.App.Name)
	fmt.Printf("Environment: %s\n", c.App.Environment)
	fmt.Printf("Port: %s\n", c.App.Port)
	fmt.Printf("Debug: %v\n", c.App.Debug)
	fmt.Printf("Database: %s:%s/%s\n", c.Database.Host, c.Database.Port, c.Database.Name)
	fmt.Printf("Redis: %s:%s/%d (enabled=%v)\n", c.Redis.Host, c.Redis.Port, c.Redis.DB, c.Redis.Enabled)
	fmt.Printf("Lock backend: %s\n", c.Lock.Backend)
	fmt.Printf("Kafka brokers: %v\n", c.Kafka.Brokers)
	fmt.Printf("Commission: direct=%s upline=%s decay=%s\n", c.Commission.DirectShare, c.Commission.UplineShare, c.Commission.Decay)
	fmt.Printf("====================\n")
}
