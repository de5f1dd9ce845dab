package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	APIBaseURL       string
	CachePath        string
	StoragePath      string
	Locale           string
	PollInterval     time.Duration
	PollMaxAttempts  int
	HTTPTimeout      time.Duration
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Poll interval bounds shared by every pipeline controller. Values outside the
// window are clamped rather than rejected.
const (
	minPollInterval = 1 * time.Second
	maxPollInterval = 2 * time.Second
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:9000"),
		CachePath:        getEnv("CACHE_PATH", "./aistory.db"),
		StoragePath:      getEnv("STORAGE_PATH", "./exports"),
		Locale:           getEnv("LOCALE", "en"),
		PollInterval:     time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 1500)),
		PollMaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 20),
		HTTPTimeout:      time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)),
		Port:             getEnv("PORT", "9000"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if cfg.PollInterval > maxPollInterval {
		cfg.PollInterval = maxPollInterval
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
