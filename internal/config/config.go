package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Backend   BackendConfig
	Directory DirectoryConfig
	OIDC      OIDCConfig
	Session   SessionConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration for the local backend.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/l2vpn-manager.db"`
}

// BackendConfig selects the provisioning backend. An empty URL means the
// in-process backend over the local database.
type BackendConfig struct {
	URL          string        `env:"BACKEND_URL"`
	APIKey       string        `env:"BACKEND_API_KEY"`
	TokenURL     string        `env:"BACKEND_TOKEN_URL"`
	ClientID     string        `env:"BACKEND_CLIENT_ID"`
	ClientSecret string        `env:"BACKEND_CLIENT_SECRET"`
	Timeout      time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
}

// Remote reports whether a remote backend is configured.
func (c *BackendConfig) Remote() bool {
	return c.URL != ""
}

// DirectoryConfig holds the directory seed and lookup cache settings.
type DirectoryConfig struct {
	SeedFile      string        `env:"DIRECTORY_SEED_FILE"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"5m"`
}

// OIDCConfig holds OIDC authentication configuration.
type OIDCConfig struct {
	Enabled         bool          `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL       string        `env:"OIDC_ISSUER_URL"`
	ClientID        string        `env:"OIDC_CLIENT_ID"`
	ClientSecret    string        `env:"OIDC_CLIENT_SECRET"`
	RedirectURL     string        `env:"OIDC_REDIRECT_URL"`
	Scopes          string        `env:"OIDC_SCOPES" envDefault:"openid,email,profile"`
	SessionSecret   string        `env:"OIDC_SESSION_SECRET"`
	SessionDuration time.Duration `env:"OIDC_SESSION_DURATION" envDefault:"24h"`
	AllowedDomains  string        `env:"OIDC_ALLOWED_DOMAINS"`
	LogoutURL       string        `env:"OIDC_LOGOUT_URL"`
}

// GetScopes returns the OIDC scopes as a slice.
func (c *OIDCConfig) GetScopes() []string {
	if c.Scopes == "" {
		return []string{"openid", "email", "profile"}
	}
	return splitList(c.Scopes)
}

// GetAllowedDomains returns the allowed domains as a slice.
func (c *OIDCConfig) GetAllowedDomains() []string {
	if c.AllowedDomains == "" {
		return nil
	}
	return splitList(c.AllowedDomains)
}

// GetSessionSecretBytes returns the session secret as bytes.
func (c *OIDCConfig) GetSessionSecretBytes() ([]byte, error) {
	if c.SessionSecret == "" {
		return nil, fmt.Errorf("OIDC_SESSION_SECRET is required")
	}
	// 64 hex chars = 32 bytes
	if len(c.SessionSecret) == 64 {
		if decoded, err := hex.DecodeString(c.SessionSecret); err == nil {
			return decoded, nil
		}
	}
	if len(c.SessionSecret) != 32 {
		return nil, fmt.Errorf("OIDC_SESSION_SECRET must be 32 bytes (or 64 hex characters)")
	}
	return []byte(c.SessionSecret), nil
}

// SessionConfig describes who is editing when OIDC is off, and which
// workgroup the editor works in.
type SessionConfig struct {
	WorkgroupID      int    `env:"DEFAULT_WORKGROUP_ID" envDefault:"1"`
	DefaultUserEmail string `env:"DEFAULT_USER_EMAIL"`
	ReadOnly         bool   `env:"READ_ONLY" envDefault:"false"`
	BootstrapAPIKey  string `env:"BOOTSTRAP_API_KEY"`

	// Timezone is used to show and parse provision and remove times.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
}

// Location loads the configured timezone.
func (c *SessionConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	return loc, nil
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Backend); err != nil {
		return nil, fmt.Errorf("parsing backend config: %w", err)
	}
	if err := env.Parse(&cfg.Directory); err != nil {
		return nil, fmt.Errorf("parsing directory config: %w", err)
	}
	if err := env.Parse(&cfg.OIDC); err != nil {
		return nil, fmt.Errorf("parsing oidc config: %w", err)
	}
	if err := env.Parse(&cfg.Session); err != nil {
		return nil, fmt.Errorf("parsing session config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	if c.Backend.Remote() {
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("BACKEND_URL is invalid: %w", err)
		}
		if c.Backend.ClientID != "" && c.Backend.TokenURL == "" {
			return fmt.Errorf("BACKEND_TOKEN_URL is required when BACKEND_CLIENT_ID is set")
		}
	}

	if c.Session.WorkgroupID <= 0 {
		return fmt.Errorf("DEFAULT_WORKGROUP_ID must be positive")
	}
	if _, err := c.Session.Location(); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC_CLIENT_SECRET is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC_REDIRECT_URL is required when OIDC is enabled")
		}
		if _, err := c.OIDC.GetSessionSecretBytes(); err != nil {
			return err
		}
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
