package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// envOverrides are applied after the config file so secrets can stay out of it
type envOverrides struct {
	DatabaseDriver     string `env:"IDLINK_DATABASE_DRIVER"`
	DatabaseDSN        string `env:"IDLINK_DATABASE_DSN"`
	HTTPPort           int    `env:"IDLINK_HTTP_PORT"`
	SessionSecret      string `env:"IDLINK_SESSION_SECRET"`
	GoogleClientSecret string `env:"IDLINK_GOOGLE_CLIENT_SECRET"`
	GitHubClientSecret string `env:"IDLINK_GITHUB_CLIENT_SECRET"`
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"/etc/idlink/config.yaml",
	"/etc/idlink/config.yml",
}

// Defaults returns the configuration used before any file or environment is applied
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "idlink",
				User:     "postgres",
				SSLMode:  "disable",
			},
			SQLite: SQLiteConfig{Path: "idlink.db"},
		},
		HTTP: HTTPConfig{
			Host:        "localhost",
			Port:        8080,
			FrontendURL: "http://localhost:3000",
		},
		Auth: AuthConfig{
			EmailLookupTimeout: 3 * time.Second,
		},
		Session: SessionConfig{
			MaxAge: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NodeID:      1,
		Environment: "local",
	}
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	config := Defaults()

	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		fmt.Fprintf(os.Stderr, "[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	} else {
		fmt.Fprintf(os.Stderr, "[CONFIG] No config file found, using defaults\n")
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides copies non-empty IDLINK_* variables over file values
func applyEnvOverrides(config *Config) error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if overrides.DatabaseDriver != "" {
		config.Database.Driver = overrides.DatabaseDriver
	}
	if overrides.DatabaseDSN != "" {
		config.Database.DSN = overrides.DatabaseDSN
	}
	if overrides.HTTPPort != 0 {
		config.HTTP.Port = overrides.HTTPPort
	}
	if overrides.SessionSecret != "" {
		config.Session.Secret = overrides.SessionSecret
	}

	for i := range config.Auth.Providers {
		p := &config.Auth.Providers[i]
		switch strings.ToLower(p.Name) {
		case "google":
			if overrides.GoogleClientSecret != "" {
				p.ClientSecret = overrides.GoogleClientSecret
			}
		case "github":
			if overrides.GitHubClientSecret != "" {
				p.ClientSecret = overrides.GitHubClientSecret
			}
		}
	}

	return nil
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	switch config.Database.Driver {
	case DriverPostgres, DriverPGX:
		if config.Database.DSN == "" {
			if config.Database.Postgres.Host == "" {
				return fmt.Errorf("postgres host is required")
			}
			if config.Database.Postgres.Database == "" {
				return fmt.Errorf("postgres database name is required")
			}
			if config.Database.Postgres.User == "" {
				return fmt.Errorf("postgres user is required")
			}
		}
	case DriverSQLite:
		if config.Database.DSN == "" && config.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q (must be postgres, pgx, or sqlite)", config.Database.Driver)
	}

	if config.HTTP.Port < 1 || config.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}

	if config.Auth.EmailLookupTimeout <= 0 {
		return fmt.Errorf("auth.email_lookup_timeout must be positive")
	}
	if config.Auth.EmailLookupTimeout > 30*time.Second {
		return fmt.Errorf("auth.email_lookup_timeout must not exceed 30s")
	}

	seen := make(map[string]bool)
	for _, p := range config.Auth.Providers {
		name := strings.ToLower(p.Name)
		if name == "" {
			return fmt.Errorf("auth.providers: name is required")
		}
		if seen[name] {
			return fmt.Errorf("auth.providers: duplicate provider %s", p.Name)
		}
		seen[name] = true
		if p.ClientID == "" {
			return fmt.Errorf("provider %s: client_id is required", p.Name)
		}
		if p.RedirectURL == "" {
			return fmt.Errorf("provider %s: redirect_url is required", p.Name)
		}
	}

	return nil
}
