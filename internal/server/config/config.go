package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Database struct {
		Driver string
		URL    string
	}
	API struct {
		Host string
		Port string
	}
	JWT struct {
		Secret     string
		Expiration time.Duration
	}
	// RequireAuth protects the record routes with a bearer token
	RequireAuth    bool
	CredentialMode string

	SnapshotPath      string
	AccountMirrorPath string

	Forward struct {
		URL     string
		Timeout time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration. Callers load .env first if they want one.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Database.Driver = getEnv("DB_DRIVER", "sqlite")
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.Database.Driver)
	}
	cfg.Database.URL = getEnv("DATABASE_URL", "user_data.db")

	cfg.API.Host = getEnv("API_HOST", "0.0.0.0")
	cfg.API.Port = getEnv("API_PORT", "8080")

	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	if cfg.JWT.Expiration, err = parseDuration("JWT_EXPIRATION", "168h"); err != nil {
		return nil, err
	}
	if cfg.RequireAuth, err = parseBool("REQUIRE_AUTH", false); err != nil {
		return nil, err
	}
	if cfg.RequireAuth && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("REQUIRE_AUTH is set but JWT_SECRET is empty")
	}
	cfg.CredentialMode = getEnv("CREDENTIAL_MODE", "plain")

	cfg.SnapshotPath = getEnv("SNAPSHOT_PATH", "view_user.json")
	cfg.AccountMirrorPath = getEnv("ACCOUNT_MIRROR_PATH", "signupdetails.json")

	cfg.Forward.URL = os.Getenv("FORWARD_URL")
	if cfg.Forward.Timeout, err = parseDuration("FORWARD_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.API.Host + ":" + c.API.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
