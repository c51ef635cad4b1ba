package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gatekeeper/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Email     EmailConfig     `yaml:"email" toml:"email"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
}

type ServerConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Host    string `yaml:"host" toml:"host"`
	Port    int    `yaml:"port" toml:"port"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// Environment is "development" or "production". Production turns on
	// Secure cookies, HSTS and CSP.
	Environment    string   `yaml:"environment" toml:"environment"`
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" toml:"driver"`
	Path         string `yaml:"path" toml:"path"`
	DSN          string `yaml:"dsn" toml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
}

// RedisConfig enables the shared rate limit store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

type AuthConfig struct {
	AccessSecret           string        `yaml:"access_secret" toml:"access_secret"`
	RefreshSecret          string        `yaml:"refresh_secret" toml:"refresh_secret"`
	AccessTokenTTL         time.Duration `yaml:"access_token_ttl" toml:"access_token_ttl"`
	RefreshTokenTTL        time.Duration `yaml:"refresh_token_ttl" toml:"refresh_token_ttl"`
	VerificationTokenTTL   time.Duration `yaml:"verification_token_ttl" toml:"verification_token_ttl"`
	PasswordResetTTL       time.Duration `yaml:"password_reset_ttl" toml:"password_reset_ttl"`
	Issuer                 string        `yaml:"issuer" toml:"issuer"`
	Audience               string        `yaml:"audience" toml:"audience"`
	BcryptCost             int           `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
	RequireVerifiedEmail   *bool         `yaml:"require_verified_email" toml:"require_verified_email"`
	AllowAdminRegistration bool          `yaml:"allow_admin_registration" toml:"allow_admin_registration"`
	LockoutThreshold       int           `yaml:"lockout_threshold" toml:"lockout_threshold"`
	LockoutDuration        time.Duration `yaml:"lockout_duration" toml:"lockout_duration"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval" toml:"cleanup_interval"`
}

// VerifiedEmailRequired defaults to true when unset.
func (a AuthConfig) VerifiedEmailRequired() bool {
	return a.RequireVerifiedEmail == nil || *a.RequireVerifiedEmail
}

type LimitRule struct {
	Limit  int           `yaml:"limit" toml:"limit"`
	Window time.Duration `yaml:"window" toml:"window"`
}

type RateLimitConfig struct {
	Login               LimitRule `yaml:"login" toml:"login"`
	Register            LimitRule `yaml:"register" toml:"register"`
	PasswordReset       LimitRule `yaml:"password_reset" toml:"password_reset"`
	Verification        LimitRule `yaml:"verification" toml:"verification"`
	ChangePassword      LimitRule `yaml:"change_password" toml:"change_password"`
	IPRequestsPerMinute int       `yaml:"ip_requests_per_minute" toml:"ip_requests_per_minute"`
}

type EmailConfig struct {
	// Driver is "smtp" or "log". The log driver writes messages to the
	// application log instead of sending them.
	Driver        string     `yaml:"driver" toml:"driver"`
	SMTP          SMTPConfig `yaml:"smtp" toml:"smtp"`
	AppName       string     `yaml:"app_name" toml:"app_name"`
	RatePerSecond float64    `yaml:"rate_per_second" toml:"rate_per_second"`
	Burst         int        `yaml:"burst" toml:"burst"`
	QueueSize     int        `yaml:"queue_size" toml:"queue_size"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	From     string `yaml:"from" toml:"from"`
}

type LoggingConfig struct {
	Level       string        `yaml:"level" toml:"level"`
	Format      string        `yaml:"format" toml:"format"`
	AuditDir    string        `yaml:"audit_dir" toml:"audit_dir"`
	AuditMaxAge time.Duration `yaml:"audit_max_age" toml:"audit_max_age"`
}

type AuditConfig struct {
	BufferSize int `yaml:"buffer_size" toml:"buffer_size"`
}

// Load reads a YAML or TOML file, chosen by extension, then applies
// environment overrides, validation and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GATEKEEPER_ACCESS_SECRET"); v != "" {
		c.Auth.AccessSecret = v
	}
	if v := os.Getenv("GATEKEEPER_REFRESH_SECRET"); v != "" {
		c.Auth.RefreshSecret = v
	}
	if v := os.Getenv("GATEKEEPER_SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("GATEKEEPER_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("GATEKEEPER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

func (c *Config) validate() error {
	if len(c.Auth.AccessSecret) < 32 {
		return fmt.Errorf("auth.access_secret must be at least 32 characters")
	}
	if len(c.Auth.RefreshSecret) < 32 {
		return fmt.Errorf("auth.refresh_secret must be at least 32 characters")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("auth.access_secret and auth.refresh_secret must differ")
	}
	if c.Auth.BcryptCost < 12 {
		return fmt.Errorf("auth.bcrypt_cost must be at least 12")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth token TTLs must be positive")
	}
	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		return fmt.Errorf("auth.access_token_ttl must be shorter than auth.refresh_token_ttl")
	}

	switch c.Database.Driver {
	case "sqlite3":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	switch c.Email.Driver {
	case "log":
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp.host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp.port is required")
		}
		if c.Email.SMTP.From == "" {
			return fmt.Errorf("email.smtp.from is required")
		}
	default:
		return fmt.Errorf("email.driver must be smtp or log, got %q", c.Email.Driver)
	}

	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "Gatekeeper"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/gatekeeper.db"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = ratelimit.DefaultKeyPrefix
	}

	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.VerificationTokenTTL == 0 {
		c.Auth.VerificationTokenTTL = 24 * time.Hour
	}
	if c.Auth.PasswordResetTTL == 0 {
		c.Auth.PasswordResetTTL = time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "gatekeeper"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "gatekeeper"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = 5
	}
	if c.Auth.LockoutDuration == 0 {
		c.Auth.LockoutDuration = 15 * time.Minute
	}
	if c.Auth.CleanupInterval == 0 {
		c.Auth.CleanupInterval = time.Hour
	}

	if c.RateLimit.IPRequestsPerMinute == 0 {
		c.RateLimit.IPRequestsPerMinute = 60
	}

	if c.Email.Driver == "" {
		c.Email.Driver = "smtp"
	}
	if c.Email.AppName == "" {
		c.Email.AppName = c.Server.Name
	}
	if c.Email.RatePerSecond == 0 {
		c.Email.RatePerSecond = 5
	}
	if c.Email.Burst == 0 {
		c.Email.Burst = 10
	}
	if c.Email.QueueSize == 0 {
		c.Email.QueueSize = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.AuditMaxAge == 0 {
		c.Logging.AuditMaxAge = 90 * 24 * time.Hour
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 256
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
