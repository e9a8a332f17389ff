package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Base URLs per build mode and target. The device address is a LAN placeholder
// and is normally overridden with BIKEMETRO_BASE_URL.
const (
	SimulatorBaseURL  = "http://localhost:8000/api"
	EmulatorBaseURL   = "http://10.0.2.2:8000/api"
	DeviceBaseURL     = "http://192.168.1.100:8000/api"
	ProductionBaseURL = "https://tu-dominio.com/api"
)

type Config struct {
	// API configuration
	Environment string
	Target      string
	BaseURL     string
	APITimeout  time.Duration

	// Session storage
	RedisURL         string
	SessionKeyPrefix string

	// Reservation display
	ActivePollInterval time.Duration
	ReservationTTL     time.Duration
	FreeHours          int
	ExtraHourRate      int64

	// PubNub configuration
	PubNubSubscribeKey string
	PubNubUUID         string

	// Circuit breaker
	BreakerMaxFailures int
	BreakerTimeout     time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string

	LogLevel string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: could not read .env", "error", err)
	}

	cfg := &Config{
		// API
		Environment: getEnv("APP_ENV", "development"),
		Target:      getEnv("BIKEMETRO_TARGET", "simulator"),
		APITimeout:  getEnvAsDuration("API_TIMEOUT", "10s"),

		// Session
		RedisURL:         getEnv("REDIS_URL", ""),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "@bikemetro"),

		// Reservations
		ActivePollInterval: getEnvAsDuration("ACTIVE_POLL_INTERVAL", "30s"),
		ReservationTTL:     getEnvAsDuration("RESERVATION_TTL", "10m"),
		FreeHours:          getEnvAsInt("FREE_HOURS", 2),
		ExtraHourRate:      int64(getEnvAsInt("EXTRA_HOUR_RATE", 500)),

		// PubNub
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "bikemetro-cli"),

		// Breaker
		BreakerMaxFailures: getEnvAsInt("BREAKER_MAX_FAILURES", 5),
		BreakerTimeout:     getEnvAsDuration("BREAKER_TIMEOUT", "30s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", false),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	cfg.BaseURL = getEnv("BIKEMETRO_BASE_URL", ResolveBaseURL(cfg.Environment, cfg.Target))

	return cfg
}

// ResolveBaseURL picks the API root for a build mode and run target.
func ResolveBaseURL(environment, target string) string {
	if strings.EqualFold(environment, "production") {
		return ProductionBaseURL
	}

	switch strings.ToLower(target) {
	case "emulator", "android":
		return EmulatorBaseURL
	case "device":
		return DeviceBaseURL
	default:
		return SimulatorBaseURL
	}
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
