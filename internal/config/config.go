// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Escrow    EscrowConfig    `yaml:"escrow"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"dbPath"`
}

// EscrowConfig is the ledger's administrative initialization: the owner and
// arbitrator principals, the payout fee, and the timeout grace period.
type EscrowConfig struct {
	Owner      string        `yaml:"owner"`
	Arbitrator string        `yaml:"arbitrator"`
	FeePercent uint64        `yaml:"feePercent"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type RateLimitConfig struct {
	Enabled *bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// Default returns the baseline configuration used when no file or override
// supplies a value.
func Default() Config {
	enabled := true
	return Config{
		Server: ServerConfig{
			Port:   8080,
			DBPath: "./data/escrow.db",
		},
		Escrow: EscrowConfig{
			FeePercent: 2,
			Timeout:    30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled: &enabled,
			RPS:     30,
			Burst:   60,
		},
	}
}

// LoadFromPath reads the configuration file at configPath (or the default
// candidates if empty), merges it over the defaults, and applies env
// overrides last.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/config.yaml",
			"config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies set fields of src over dst.
func Merge(dst *Config, src Config) {
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.DBPath != "" {
		dst.Server.DBPath = src.Server.DBPath
	}
	if src.Escrow.Owner != "" {
		dst.Escrow.Owner = src.Escrow.Owner
	}
	if src.Escrow.Arbitrator != "" {
		dst.Escrow.Arbitrator = src.Escrow.Arbitrator
	}
	if src.Escrow.FeePercent != 0 {
		dst.Escrow.FeePercent = src.Escrow.FeePercent
	}
	if src.Escrow.Timeout != 0 {
		dst.Escrow.Timeout = src.Escrow.Timeout
	}
	if src.Auth.JWTSecret != "" {
		dst.Auth.JWTSecret = src.Auth.JWTSecret
	}
	if src.Auth.TokenTTL != 0 {
		dst.Auth.TokenTTL = src.Auth.TokenTTL
	}
	if src.RateLimit.Enabled != nil {
		dst.RateLimit.Enabled = src.RateLimit.Enabled
	}
	if src.RateLimit.RPS != 0 {
		dst.RateLimit.RPS = src.RateLimit.RPS
	}
	if src.RateLimit.Burst != 0 {
		dst.RateLimit.Burst = src.RateLimit.Burst
	}
}

// ApplyEnvOverrides applies ESCROWD_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_PORT")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Server.Port = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_DB_PATH")); raw != "" {
		cfg.Server.DBPath = raw
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_OWNER")); raw != "" {
		cfg.Escrow.Owner = raw
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_ARBITRATOR")); raw != "" {
		cfg.Escrow.Arbitrator = raw
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_FEE_PERCENT")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.Escrow.FeePercent = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_TIMEOUT")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.Escrow.Timeout = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_JWT_SECRET")); raw != "" {
		cfg.Auth.JWTSecret = raw
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_TOKEN_TTL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.Auth.TokenTTL = parsed
		}
	}
	if enabled, ok := parseBoolEnv("ESCROWD_RATE_LIMIT_ENABLED"); ok {
		cfg.RateLimit.Enabled = &enabled
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_RATE_LIMIT_RPS")); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			cfg.RateLimit.RPS = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ESCROWD_RATE_LIMIT_BURST")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.RateLimit.Burst = parsed
		}
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Escrow.Owner == "" {
		return fmt.Errorf("escrow.owner must be set")
	}
	if c.Escrow.Arbitrator == "" {
		return fmt.Errorf("escrow.arbitrator must be set")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret must be set")
	}
	return nil
}

func parseBoolEnv(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}
