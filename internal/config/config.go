package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	// CORSHosts are the browser origins (host[:port]) allowed to call the API.
	CORSHosts []string

	DB          DatabaseConfig
	Redis       RedisConfig
	Identity    IdentityConfig
	Marketplace MarketplaceConfig
	Worker      WorkerConfig
	Cache       CacheConfig
	Events      EventsConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// IdentityConfig contains the hosted identity provider admin endpoint.
type IdentityConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// MarketplaceConfig contains the integration gateway used to push listing prices.
type MarketplaceConfig struct {
	GatewayURL   string
	GatewayToken string
	Timeout      time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	PriceSyncInterval time.Duration
	PriceSyncBatch    int
	// SubscriptionExpirySchedule is a standard 5-field cron spec or an
	// @every/@hourly descriptor.
	SubscriptionExpirySchedule string
}

// CacheConfig contains TTLs for Redis-backed read caches.
type CacheConfig struct {
	EntitlementTTL time.Duration
	DirectoryTTL   time.Duration
	BulkLockTTL    time.Duration
}

// EventsConfig tunes the admin event stream.
type EventsConfig struct {
	// ClientBuffer is the number of events queued per connected admin.
	ClientBuffer int
	// DropPolicy is "newest" (discard the incoming event) or "oldest" (evict
	// the oldest queued event) when a client buffer is full.
	DropPolicy string
	Heartbeat  time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine: production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSHosts = getEnvList("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Identity provider
	cfg.Identity = IdentityConfig{
		BaseURL:    getEnv("IDENTITY_BASE_URL", ""),
		ServiceKey: getEnv("IDENTITY_SERVICE_KEY", ""),
	}

	// Marketplace integration gateway
	cfg.Marketplace = MarketplaceConfig{
		GatewayURL:   getEnv("MARKETPLACE_GATEWAY_URL", ""),
		GatewayToken: getEnv("MARKETPLACE_GATEWAY_TOKEN", ""),
	}

	cfg.Worker.PriceSyncBatch = getEnvInt("PRICE_SYNC_BATCH", 100)

	// Admin event stream
	cfg.Events.ClientBuffer = getEnvInt("EVENTS_CLIENT_BUFFER", 64)
	cfg.Events.DropPolicy = strings.ToLower(getEnv("EVENTS_DROP_POLICY", "newest"))

	// Durations
	var err error
	if cfg.Identity.Timeout, err = parseDurationEnv("IDENTITY_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid IDENTITY_TIMEOUT: %w", err)
	}
	if cfg.Marketplace.Timeout, err = parseDurationEnv("MARKETPLACE_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid MARKETPLACE_TIMEOUT: %w", err)
	}
	if cfg.Worker.PriceSyncInterval, err = parseDurationEnv("PRICE_SYNC_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid PRICE_SYNC_INTERVAL: %w", err)
	}
	cfg.Worker.SubscriptionExpirySchedule = getEnv("SUBSCRIPTION_EXPIRY_SCHEDULE", "@hourly")
	if _, err := cron.ParseStandard(cfg.Worker.SubscriptionExpirySchedule); err != nil {
		return nil, fmt.Errorf("invalid SUBSCRIPTION_EXPIRY_SCHEDULE: %w", err)
	}
	if cfg.Cache.EntitlementTTL, err = parseDurationEnv("ENTITLEMENT_CACHE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid ENTITLEMENT_CACHE_TTL: %w", err)
	}
	if cfg.Cache.DirectoryTTL, err = parseDurationEnv("DIRECTORY_CACHE_TTL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid DIRECTORY_CACHE_TTL: %w", err)
	}
	if cfg.Cache.BulkLockTTL, err = parseDurationEnv("BULK_LOCK_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid BULK_LOCK_TTL: %w", err)
	}
	if cfg.Events.Heartbeat, err = parseDurationEnv("EVENTS_HEARTBEAT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid EVENTS_HEARTBEAT: %w", err)
	}

	if cfg.Worker.PriceSyncBatch <= 0 {
		return nil, errors.New("PRICE_SYNC_BATCH must be > 0")
	}
	if cfg.Events.ClientBuffer <= 0 {
		return nil, errors.New("EVENTS_CLIENT_BUFFER must be > 0")
	}
	if cfg.Events.DropPolicy != "newest" && cfg.Events.DropPolicy != "oldest" {
		return nil, fmt.Errorf("invalid EVENTS_DROP_POLICY %q: must be newest or oldest", cfg.Events.DropPolicy)
	}
	if cfg.Events.Heartbeat <= 0 {
		return nil, errors.New("EVENTS_HEARTBEAT must be > 0")
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key, def string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, def), ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
