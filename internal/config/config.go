package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig captures all tunable parameters for the tracking gateway
// process. Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type GatewayConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisPrefix   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	StaleAfter time.Duration

	LogLevel      string
	RunMigrations bool
}

// ScreenConfig holds the client-side knobs of the live tracking screen.
type ScreenConfig struct {
	PollInterval    time.Duration
	StaleAfter      time.Duration
	AverageSpeedKmh float64
	ToastDuration   time.Duration
	ServiceBaseURL  string
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisPrefix:     "livetrack",
		KafkaTopic:      "rider-fixes",
		StaleAfter:      120 * time.Second,
		LogLevel:        "info",
	}
}

// DefaultScreenConfig matches the product defaults: a 10s poll, two-minute
// staleness window, 40 km/h ETA speed and a 3s toast.
func DefaultScreenConfig(baseURL string) ScreenConfig {
	return ScreenConfig{
		PollInterval:    10 * time.Second,
		StaleAfter:      120 * time.Second,
		AverageSpeedKmh: 40,
		ToastDuration:   3 * time.Second,
		ServiceBaseURL:  baseURL,
	}
}

// LoadScreenConfig reads screen overrides from the environment on top of the
// product defaults.
func LoadScreenConfig(baseURL string) (ScreenConfig, error) {
	cfg := DefaultScreenConfig(baseURL)
	var errs []error
	setDurationFromEnv(&cfg.PollInterval, "POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.StaleAfter, "RIDER_STALE_AFTER", &errs)
	setDurationFromEnv(&cfg.ToastDuration, "TOAST_DURATION", &errs)
	setFloatFromEnv(&cfg.AverageSpeedKmh, "AVERAGE_SPEED_KMH", &errs)
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisPrefix, "REDIS_PREFIX")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.StaleAfter, "RIDER_STALE_AFTER", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("RIDER_STALE_AFTER must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
