package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the Valentine server.
type Config struct {
	DatabaseURL   string
	ServerPort    int
	LogLevel      string
	LogFile       string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	Payment   PaymentConfig
	Media     MediaConfig
	Reaper    ReaperConfig
	RateLimit RateLimitConfig

	AllowedOrigins  []string
	TrustedProxies  []string
	RetentionWindow time.Duration
}

// PaymentConfig holds the payment provider credentials.
type PaymentConfig struct {
	KeyID     string
	KeySecret string
	Currency  string
}

// MediaConfig describes the S3-compatible bucket that stores uploaded photos.
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	Prefix          string
}

// ReaperConfig controls when expired pages are swept.
type ReaperConfig struct {
	Schedule string
	Timezone string
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDatabaseURL     = "./data/valentine.db"
	defaultServerPort      = 8080
	defaultLogLevel        = "info"
	defaultEnvironment     = "development"
	defaultShutdownGrace   = 10 * time.Second
	defaultCurrency        = "INR"
	defaultMediaRegion     = "us-east-1"
	defaultMediaPrefix     = "love-pages"
	defaultReaperSchedule  = "0 3 * * *"
	defaultReaperTimezone  = "UTC"
	defaultRetentionWindow = 7 * 24 * time.Hour
	defaultRateLimitRPS    = 5
	defaultRateLimitBurst  = 20
	defaultRateLimitTTL    = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", defaultDatabaseURL),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LogFile:       os.Getenv("LOG_FILE"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
		Payment: PaymentConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
			Currency:  strings.ToUpper(getEnv("PAYMENT_CURRENCY", defaultCurrency)),
		},
		Media: MediaConfig{
			Bucket:          os.Getenv("MEDIA_BUCKET"),
			Region:          getEnv("MEDIA_REGION", defaultMediaRegion),
			Endpoint:        os.Getenv("MEDIA_ENDPOINT"),
			AccessKeyID:     os.Getenv("MEDIA_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("MEDIA_SECRET_ACCESS_KEY"),
			PublicBaseURL:   strings.TrimRight(os.Getenv("MEDIA_PUBLIC_BASE_URL"), "/"),
			Prefix:          strings.Trim(getEnv("MEDIA_PREFIX", defaultMediaPrefix), "/"),
		},
		Reaper: ReaperConfig{
			Schedule: getEnv("REAPER_SCHEDULE", defaultReaperSchedule),
			Timezone: getEnv("REAPER_TIMEZONE", defaultReaperTimezone),
		},
		AllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		TrustedProxies: parseList(os.Getenv("TRUSTED_PROXIES")),
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if cfg.RetentionWindow, err = getDuration("RETENTION_WINDOW", defaultRetentionWindow); err != nil {
		return nil, err
	}
	if cfg.RetentionWindow <= 0 {
		return nil, eris.New("RETENTION_WINDOW must be positive")
	}

	if cfg.RateLimit.ClientTTL, err = getDuration("RATE_LIMIT_TTL", defaultRateLimitTTL); err != nil {
		return nil, err
	}

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.Itoa(defaultRateLimitRPS))
	if cfg.RateLimit.RequestsPerSecond, err = strconv.ParseFloat(rpsValue, 64); err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}

	burstValue := getEnv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateLimitBurst))
	if cfg.RateLimit.Burst, err = strconv.Atoi(burstValue); err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_BURST value: %s", burstValue)
	}

	return cfg, nil
}

// Validate reports missing settings that the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Payment.KeyID) == "" || strings.TrimSpace(c.Payment.KeySecret) == "" {
		return eris.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if strings.TrimSpace(c.Media.Bucket) == "" {
		return eris.New("MEDIA_BUCKET is required")
	}
	if _, err := time.LoadLocation(c.Reaper.Timezone); err != nil {
		return eris.Wrapf(err, "invalid REAPER_TIMEZONE value: %s", c.Reaper.Timezone)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func parseList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
