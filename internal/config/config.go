package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2334
	defaultEnv        = "development"

	defaultDBHost           = "127.0.0.1"
	defaultDBPort           = 3306
	defaultDBUser           = "root"
	defaultDBName           = "mx_identity"
	defaultDBCharset        = "utf8mb4"
	defaultRedisHost        = "localhost"
	defaultRedisPort        = 6379
	defaultLockoutThreshold = 5
	defaultLockoutMinutes   = 30
)

// Load reads the YAML config file, fills defaults and validates the result.
// A missing file is not an error; env vars can carry everything.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env + defaults
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("MX_IDENTITY_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("MX_IDENTITY_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("MX_IDENTITY_ACCESS_SECRET"); v != "" {
		cfg.Auth.AccessSecret = v
	}
	if v := os.Getenv("MX_IDENTITY_REFRESH_SECRET"); v != "" {
		cfg.Auth.RefreshSecret = v
	}
	if v := os.Getenv("MX_IDENTITY_ENV"); v != "" {
		cfg.Env = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.Auth.LockoutThreshold == 0 {
		cfg.Auth.LockoutThreshold = defaultLockoutThreshold
	}
	if cfg.Auth.LockoutMinutes == 0 {
		cfg.Auth.LockoutMinutes = defaultLockoutMinutes
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
}

func validate(cfg *AppConfig) error {
	if cfg.Auth.AccessSecret == "" || cfg.Auth.RefreshSecret == "" {
		return errors.New("config: auth.access_secret and auth.refresh_secret are required")
	}
	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return errors.New("config: auth.access_secret and auth.refresh_secret must differ")
	}
	if cfg.Env != "development" && cfg.Env != "production" {
		return fmt.Errorf("config: unknown env %q", cfg.Env)
	}
	return nil
}

// IsProduction reports whether the service runs with production logging.
func (c *AppConfig) IsProduction() bool { return c.Env == "production" }
