package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the optional YAML file checked by Load.
// Precedence: defaults < YAML < environment.
const DefaultConfigFile = "tenantguard.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Security  SecurityConfig  `yaml:"security"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConns       int    `yaml:"max_conns"`
	MinConns       int    `yaml:"min_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	// IdleTimeout expires sessions that have not been seen for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	CookieName  string        `yaml:"cookie_name"`
}

// RateLimitConfig holds per-action-class quotas, all expressed as
// attempts per minute.
type RateLimitConfig struct {
	Auth    int `yaml:"auth"`
	Mutate  int `yaml:"mutate"`
	Export  int `yaml:"export"`
	Default int `yaml:"default"`

	// ExemptIPs is an explicit allow-list of client IPs that bypass
	// admission (e.g. internal security scanners). Empty exempts nothing.
	ExemptIPs []string `yaml:"exempt_ips"`
}

type SecurityConfig struct {
	// TrustedOrigin is the absolute origin this deployment serves,
	// e.g. "https://app.example.com". Redirect targets must resolve to it.
	TrustedOrigin string `yaml:"trusted_origin"`

	// CSPAllowedHosts are external hosts permitted as script/style sources.
	CSPAllowedHosts []string `yaml:"csp_allowed_hosts"`

	// APIKeySecret keys the HMAC under which API keys are hashed.
	APIKeySecret string `yaml:"api_key_secret"`

	// SuperadminEnabled gates the acting-as-tenant bypass globally.
	SuperadminEnabled bool `yaml:"superadmin_enabled"`

	// StoreTimeout bounds every session/directory lookup made while
	// building a request context. On timeout the request degrades to
	// anonymous.
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// RedirectFallback is the known-safe path substituted for any
	// rejected redirect target.
	RedirectFallback string `yaml:"redirect_fallback"`
}

// Load returns the configuration assembled from defaults, the optional
// YAML file, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	return &cfg, nil
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			MaxConns:       20,
			MinConns:       5,
			MigrationsPath: "migrations",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Session: SessionConfig{
			IdleTimeout: 30 * time.Minute,
			CookieName:  "tg_session",
		},
		RateLimit: RateLimitConfig{
			Auth:    10,
			Mutate:  30,
			Export:  20,
			Default: 200,
		},
		Security: SecurityConfig{
			TrustedOrigin:    "http://localhost:8080",
			StoreTimeout:     2 * time.Second,
			RedirectFallback: "/",
		},
	}
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.Database.MigrationsPath)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Security.TrustedOrigin = getEnv("TRUSTED_ORIGIN", cfg.Security.TrustedOrigin)
	cfg.Security.APIKeySecret = getEnv("API_KEY_SECRET", cfg.Security.APIKeySecret)
	cfg.Security.RedirectFallback = getEnv("REDIRECT_FALLBACK", cfg.Security.RedirectFallback)

	if hosts := os.Getenv("CSP_ALLOWED_HOSTS"); hosts != "" {
		cfg.Security.CSPAllowedHosts = splitList(hosts)
	}
	if ips := os.Getenv("RATE_LIMIT_EXEMPT_IPS"); ips != "" {
		cfg.RateLimit.ExemptIPs = splitList(ips)
	}

	var err error
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns); err != nil {
		return fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if cfg.Database.MinConns, err = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns); err != nil {
		return fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.RateLimit.Auth, err = getEnvInt("RATE_LIMIT_AUTH", cfg.RateLimit.Auth); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_AUTH: %w", err)
	}
	if cfg.RateLimit.Mutate, err = getEnvInt("RATE_LIMIT_MUTATE", cfg.RateLimit.Mutate); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_MUTATE: %w", err)
	}
	if cfg.RateLimit.Export, err = getEnvInt("RATE_LIMIT_EXPORT", cfg.RateLimit.Export); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_EXPORT: %w", err)
	}
	if cfg.RateLimit.Default, err = getEnvInt("RATE_LIMIT_DEFAULT", cfg.RateLimit.Default); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_DEFAULT: %w", err)
	}
	if cfg.Session.IdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", cfg.Session.IdleTimeout); err != nil {
		return fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %w", err)
	}
	if cfg.Security.StoreTimeout, err = getEnvDuration("STORE_TIMEOUT", cfg.Security.StoreTimeout); err != nil {
		return fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	if cfg.Security.SuperadminEnabled, err = getEnvBool("SUPERADMIN_ENABLED", cfg.Security.SuperadminEnabled); err != nil {
		return fmt.Errorf("invalid SUPERADMIN_ENABLED: %w", err)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Security.APIKeySecret == "" {
		missing = append(missing, "API_KEY_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	origin, err := url.Parse(c.Security.TrustedOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("TRUSTED_ORIGIN must be an absolute http(s) origin, got %q", c.Security.TrustedOrigin)
	}
	return nil
}

// TrustedOriginURL returns the parsed trusted origin. Call Validate first.
func (c *Config) TrustedOriginURL() *url.URL {
	u, _ := url.Parse(c.Security.TrustedOrigin)
	return u
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
