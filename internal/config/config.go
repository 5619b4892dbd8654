package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration, read once at startup. The
// signing secret has no default: a deployment without DOLLHAUS_AUTH_SECRET
// refuses to start instead of silently signing with a known value.
type Config struct {
	ListenAddr     string
	DatabaseDSN    string
	AuthSecret     string
	TokenIssuer    string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
	BcryptCost     int
	SweepInterval  time.Duration
	AuditRetention time.Duration
	RateBurst      int
	RatePerSecond  int
	MaxBodyBytes   int64
}

const envPrefix = "DOLLHAUS_"

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     getenv("ADDR", ":8080"),
		DatabaseDSN:    getenv("PG_DSN", ""),
		AuthSecret:     strings.TrimSpace(os.Getenv(envPrefix + "AUTH_SECRET")),
		TokenIssuer:    getenv("TOKEN_ISSUER", "dollhaus"),
		AccessTTL:      24 * time.Hour,
		RefreshTTL:     7 * 24 * time.Hour,
		ResetTTL:       time.Hour,
		SweepInterval:  time.Hour,
		AuditRetention: 90 * 24 * time.Hour,
		RateBurst:      20,
		RatePerSecond:  10,
		MaxBodyBytes:   1 << 20,
	}

	if cfg.AuthSecret == "" {
		return Config{}, errors.New("config: " + envPrefix + "AUTH_SECRET is required")
	}

	var err error
	if cfg.AccessTTL, err = durationEnv("ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = durationEnv("REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.ResetTTL, err = durationEnv("RESET_TTL", cfg.ResetTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.AuditRetention, err = durationEnv("AUDIT_RETENTION", cfg.AuditRetention); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = intEnv("BCRYPT_COST", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intEnv("RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSecond, err = intEnv("RATE_PER_SECOND", cfg.RatePerSecond); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s%s: %w", envPrefix, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s%s must be positive", envPrefix, key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}
