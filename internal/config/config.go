package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported values for DatabaseConfig.Driver
const (
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPGX      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig `yaml:"database"`
	HTTP        HTTPConfig     `yaml:"http"`
	Auth        AuthConfig     `yaml:"auth"`
	Session     SessionConfig  `yaml:"session"`
	Logging     LoggingConfig  `yaml:"logging"`
	NodeID      int64          `yaml:"node_id" default:"1"`         // Snowflake node for ID generation
	Environment string         `yaml:"environment" default:"local"` // local, dev, prod
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" default:"postgres"`
	DSN      string         `yaml:"dsn,omitempty"` // Overrides the per-driver settings when set
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"idlink"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" default:"idlink.db"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host        string `yaml:"host" default:"localhost"`
	Port        int    `yaml:"port" default:"8080"`
	FrontendURL string `yaml:"frontend_url" default:"http://localhost:3000"` // Where the browser lands after login
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	EmailLookupTimeout time.Duration    `yaml:"email_lookup_timeout" default:"3s"`
	Providers          []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds OAuth2 provider configuration.
// Endpoint URLs are optional; well-known defaults are used per provider.
type ProviderConfig struct {
	Name         string   `yaml:"name"` // "google", "github"
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes,omitempty"`
	AuthURL      string   `yaml:"auth_url,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	UserInfoURL  string   `yaml:"userinfo_url,omitempty"`
	EmailsURL    string   `yaml:"emails_url,omitempty"` // Secondary emails API, GitHub only
}

// SessionConfig holds cookie session configuration
type SessionConfig struct {
	Secret string        `yaml:"secret"` // base64, 32 or 64 bytes
	MaxAge time.Duration `yaml:"max_age" default:"168h"`
	Secure bool          `yaml:"secure"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	File   string `yaml:"file,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// ConnectionString returns the DSN for the configured driver
func (d *DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == DriverSQLite {
		return SQLiteDSN(d.SQLite.Path)
	}
	return d.Postgres.ConnectionString()
}

// SQLiteDSN builds a modernc.org/sqlite DSN with foreign keys enforced
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Provider returns the provider configuration with the given name (case-insensitive)
func (a *AuthConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range a.Providers {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Address returns host:port for the HTTP listener
func (h *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
