package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mx-space/identity/internal/pkg/mail"
)

// Duration accepts "15m"-style strings (or integer seconds) in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("config: invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the stdlib type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	PublicBaseURL  string                `yaml:"public_base_url"`
	Auth           AuthConfig            `yaml:"auth"`
	Mail           mail.Config           `yaml:"mail"`
}

type DatabaseRuntimeConfig struct {
	DSN      string `yaml:"dsn"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// AuthConfig covers credential issuance, lockout and recovery tokens.
// The two signing secrets are required and must differ.
type AuthConfig struct {
	AccessSecret      string   `yaml:"access_secret"`
	RefreshSecret     string   `yaml:"refresh_secret"`
	AccessTTL         Duration `yaml:"access_ttl"`
	RefreshTTL        Duration `yaml:"refresh_ttl"`
	Issuer            string   `yaml:"issuer"`
	Audience          string   `yaml:"audience"`
	BcryptCost        int      `yaml:"bcrypt_cost"`
	PasswordMinLength int      `yaml:"password_min_length"`
	LockoutThreshold  int      `yaml:"lockout_threshold"`
	LockoutMinutes    int      `yaml:"lockout_minutes"`
	VerifyTokenTTL    Duration `yaml:"verify_token_ttl"`
	ResetTokenTTL     Duration `yaml:"reset_token_ttl"`
}
