package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/metrics"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/settings"
	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Device   DeviceConfig
	Sync     SyncConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Timezone       *time.Location
	AllowedOrigins []string
}

// DeviceConfig bounds every call made to a terminal.
type DeviceConfig struct {
	Port             int
	ConnectTimeout   time.Duration
	FetchTimeout     time.Duration
	InfoTimeout      time.Duration
	BindAttempts     int
	BreakerFailures  uint32
	BreakerCooldown  time.Duration
	ManualSyncPerMin int
}

// SyncTarget is one terminal synced by the scheduler.
type SyncTarget struct {
	Address   string
	Port      int
	CompanyID string
}

type SyncConfig struct {
	Interval    time.Duration
	Targets     []SyncTarget
	Concurrency int
}

type MetricsConfig struct {
	DefaultCutoff settings.ClockTime
	GraceMinutes  int
	Weights       metrics.Weights
	Tiers         metrics.TierThresholds
	WindowDays    int
	CountWeekends bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance_sync"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Timezone:       loc,
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	if config.Device, err = loadDevice(); err != nil {
		return nil, err
	}
	if config.Sync, err = loadSync(config.Device.Port); err != nil {
		return nil, err
	}
	if config.Metrics, err = loadMetrics(); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadDevice() (DeviceConfig, error) {
	port, err := strconv.Atoi(getEnv("DEVICE_PORT", "4370"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_PORT: %w", err)
	}
	connectTimeout, err := time.ParseDuration(getEnv("DEVICE_CONNECT_TIMEOUT", "10s"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_CONNECT_TIMEOUT: %w", err)
	}
	fetchTimeout, err := time.ParseDuration(getEnv("DEVICE_FETCH_TIMEOUT", "25s"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_FETCH_TIMEOUT: %w", err)
	}
	infoTimeout, err := time.ParseDuration(getEnv("DEVICE_INFO_TIMEOUT", "5s"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_INFO_TIMEOUT: %w", err)
	}
	bindAttempts, err := strconv.Atoi(getEnv("DEVICE_BIND_ATTEMPTS", "3"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_BIND_ATTEMPTS: %w", err)
	}
	breakerFailures, err := strconv.ParseUint(getEnv("DEVICE_BREAKER_FAILURES", "5"), 10, 32)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_BREAKER_FAILURES: %w", err)
	}
	breakerCooldown, err := time.ParseDuration(getEnv("DEVICE_BREAKER_COOLDOWN", "1m"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_BREAKER_COOLDOWN: %w", err)
	}
	perMin, err := strconv.Atoi(getEnv("DEVICE_MANUAL_SYNC_PER_MINUTE", "6"))
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("invalid DEVICE_MANUAL_SYNC_PER_MINUTE: %w", err)
	}

	return DeviceConfig{
		Port:             port,
		ConnectTimeout:   connectTimeout,
		FetchTimeout:     fetchTimeout,
		InfoTimeout:      infoTimeout,
		BindAttempts:     bindAttempts,
		BreakerFailures:  uint32(breakerFailures),
		BreakerCooldown:  breakerCooldown,
		ManualSyncPerMin: perMin,
	}, nil
}

func loadSync(defaultPort int) (SyncConfig, error) {
	interval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "0s"))
	if err != nil {
		return SyncConfig{}, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	concurrency, err := strconv.Atoi(getEnv("SYNC_CONCURRENCY", "4"))
	if err != nil {
		return SyncConfig{}, fmt.Errorf("invalid SYNC_CONCURRENCY: %w", err)
	}

	var targets []SyncTarget
	for _, raw := range getEnvSlice("SYNC_DEVICES", "") {
		target, err := ParseSyncTarget(raw, defaultPort)
		if err != nil {
			return SyncConfig{}, fmt.Errorf("invalid SYNC_DEVICES: %w", err)
		}
		targets = append(targets, target)
	}

	return SyncConfig{
		Interval:    interval,
		Targets:     targets,
		Concurrency: concurrency,
	}, nil
}

func loadMetrics() (MetricsConfig, error) {
	cutoff, err := settings.ParseClock(getEnv("METRICS_DEFAULT_CUTOFF", "09:00"))
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_DEFAULT_CUTOFF: %w", err)
	}
	grace, err := strconv.Atoi(getEnv("METRICS_GRACE_MINUTES", "15"))
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_GRACE_MINUTES: %w", err)
	}
	weights, err := parseFloats(getEnv("METRICS_WEIGHTS", "0.6,0.25,0.15"), 3)
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_WEIGHTS: %w", err)
	}
	tiers, err := parseFloats(getEnv("METRICS_TIER_THRESHOLDS", "95,85,75"), 3)
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_TIER_THRESHOLDS: %w", err)
	}
	windowDays, err := strconv.Atoi(getEnv("METRICS_WINDOW_DAYS", "30"))
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_WINDOW_DAYS: %w", err)
	}
	countWeekends, err := strconv.ParseBool(getEnv("METRICS_COUNT_WEEKENDS", "false"))
	if err != nil {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_COUNT_WEEKENDS: %w", err)
	}

	return MetricsConfig{
		DefaultCutoff: cutoff,
		GraceMinutes:  grace,
		Weights:       metrics.Weights{Attendance: weights[0], Punctuality: weights[1], Consistency: weights[2]},
		Tiers:         metrics.TierThresholds{Excellent: tiers[0], Good: tiers[1], Average: tiers[2]},
		WindowDays:    windowDays,
		CountWeekends: countWeekends,
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Device.BindAttempts < 1 {
		return fmt.Errorf("DEVICE_BIND_ATTEMPTS must be at least 1")
	}
	if c.Device.ConnectTimeout <= 0 || c.Device.FetchTimeout <= 0 || c.Device.InfoTimeout <= 0 {
		return fmt.Errorf("device timeouts must be positive")
	}
	if c.Sync.Interval > 0 && len(c.Sync.Targets) == 0 {
		slog.Warn("SYNC_INTERVAL is set but SYNC_DEVICES is empty; scheduled sync disabled")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1")
	}
	if c.Metrics.GraceMinutes < 0 {
		return fmt.Errorf("METRICS_GRACE_MINUTES must not be negative")
	}
	if err := c.Metrics.Weights.Validate(); err != nil {
		return fmt.Errorf("METRICS_WEIGHTS: %w", err)
	}
	if c.Metrics.WindowDays < 1 {
		return fmt.Errorf("METRICS_WINDOW_DAYS must be at least 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ParseSyncTarget parses "address[:port]@companyID".
func ParseSyncTarget(raw string, defaultPort int) (SyncTarget, error) {
	hostPort, companyID, ok := strings.Cut(strings.TrimSpace(raw), "@")
	if !ok || hostPort == "" || companyID == "" {
		return SyncTarget{}, fmt.Errorf("%q must look like address[:port]@companyID", raw)
	}

	target := SyncTarget{Address: hostPort, Port: defaultPort, CompanyID: companyID}
	if host, port, found := strings.Cut(hostPort, ":"); found && !strings.Contains(port, ":") {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return SyncTarget{}, fmt.Errorf("%q has an invalid port", raw)
		}
		target.Address = host
		target.Port = p
	}
	return target, nil
}

func parseFloats(value string, n int) ([]float64, error) {
	parts := strings.Split(value, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, value)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env, fallback string) []string {
	value := getEnv(env, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
