// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: when empty the server runs with in-memory
	// repositories, which is only suitable for development and tests.
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// Flutterwave
	FlwSecretKey          string `koanf:"flw_secret_key"`
	FlwWebhookSecret      string `koanf:"flw_webhook_secret"`
	FlwBaseURL            string `koanf:"flw_base_url"`
	GatewayTimeoutSeconds int    `koanf:"gateway_timeout_seconds"`

	// BaseURL is the externally reachable base URL of this service, used to
	// build the redirect-back URL embedded in payment initialization.
	BaseURL string `koanf:"base_url"`

	// Browser landing pages after the payment callback. Default to
	// {base_url}/payment-success and {base_url}/payment-failed.
	SuccessURL string `koanf:"success_url"`
	FailureURL string `koanf:"failure_url"`

	// AdminEmails is the explicit administrator allow-list. There is no
	// in-code fallback identity; an empty list is a startup error.
	AdminEmails []string `koanf:"admin_emails"`

	// Redis (optional; enables the Redis-backed rate limiter and health check)
	RedisURL string `koanf:"redis_url"`

	// Object storage for movie files and payment proofs (S3/R2 compatible).
	// Optional as a group: the download and proof-upload endpoints are
	// disabled when unset.
	StorageBucket          string `koanf:"storage_bucket"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	StorageEndpoint        string `koanf:"storage_endpoint"`
	SignedURLTTLMinutes    int    `koanf:"signed_url_ttl_minutes"`

	// AllowUnownedGrants controls whether paid records without a resolved
	// owner are surfaced to admins as claimable. Unowned records never
	// grant download access directly regardless of this flag.
	AllowUnownedGrants bool `koanf:"allow_unowned_grants"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret        = errors.New("JWT_SECRET is required")
	ErrMissingFlwSecretKey     = errors.New("FLW_SECRET_KEY is required")
	ErrMissingFlwWebhookSecret = errors.New("FLW_WEBHOOK_SECRET is required")
	ErrMissingBaseURL          = errors.New("BASE_URL is required")
	ErrMissingAdminEmails      = errors.New("ADMIN_EMAILS is required and must not be empty")
	ErrMissingStorageBucket    = errors.New("STORAGE_BUCKET is required")
	ErrMissingStorageAccessKey = errors.New("STORAGE_ACCESS_KEY_ID is required")
	ErrMissingStorageSecretKey = errors.New("STORAGE_SECRET_ACCESS_KEY is required")
	ErrMissingStorageEndpoint  = errors.New("STORAGE_ENDPOINT is required")
	ErrInvalidPort             = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultGatewayTimeoutSeconds = 15
	DefaultSignedURLTTLMinutes   = 60
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	gatewayTimeout, timeoutErr := getEnvIntOrDefault("GATEWAY_TIMEOUT_SECONDS", k.Int("gateway_timeout_seconds"), DefaultGatewayTimeoutSeconds)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	signedURLTTL, ttlErr := getEnvIntOrDefault("SIGNED_URL_TTL_MINUTES", k.Int("signed_url_ttl_minutes"), DefaultSignedURLTTLMinutes)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}

	allowUnowned := false
	if k.Exists("allow_unowned_grants") {
		allowUnowned = k.Bool("allow_unowned_grants")
	}
	if val := os.Getenv("ALLOW_UNOWNED_GRANTS"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			allowUnowned = true
		case "false", "0", "no", "off":
			allowUnowned = false
		}
	}

	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:             getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		FlwSecretKey:          getEnvOrKoanf("FLW_SECRET_KEY", k, "flw_secret_key"),
		FlwWebhookSecret:      getEnvOrKoanf("FLW_WEBHOOK_SECRET", k, "flw_webhook_secret"),
		FlwBaseURL:            getEnvOrKoanf("FLW_BASE_URL", k, "flw_base_url"),
		GatewayTimeoutSeconds: gatewayTimeout,
		BaseURL:               getEnvOrKoanf("BASE_URL", k, "base_url"),
		SuccessURL:            getEnvOrKoanf("SUCCESS_URL", k, "success_url"),
		FailureURL:            getEnvOrKoanf("FAILURE_URL", k, "failure_url"),
		AdminEmails:           parseAdminEmails(os.Getenv("ADMIN_EMAILS"), k.Strings("admin_emails")),
		RedisURL:              getEnvOrKoanf("REDIS_URL", k, "redis_url"),

		StorageBucket:          getEnvOrKoanf("STORAGE_BUCKET", k, "storage_bucket"),
		StorageAccessKeyID:     getEnvOrKoanf("STORAGE_ACCESS_KEY_ID", k, "storage_access_key_id"),
		StorageSecretAccessKey: getEnvOrKoanf("STORAGE_SECRET_ACCESS_KEY", k, "storage_secret_access_key"),
		StorageEndpoint:        getEnvOrKoanf("STORAGE_ENDPOINT", k, "storage_endpoint"),
		SignedURLTTLMinutes:    signedURLTTL,

		AllowUnownedGrants: allowUnowned,
	}

	// Derived defaults
	if cfg.SuccessURL == "" && cfg.BaseURL != "" {
		cfg.SuccessURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/payment-success"
	}
	if cfg.FailureURL == "" && cfg.BaseURL != "" {
		cfg.FailureURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/payment-failed"
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// parseAdminEmails merges the env value (comma-separated) with the file
// value, env taking precedence. Emails are lower-cased and trimmed.
func parseAdminEmails(envVal string, fileVal []string) []string {
	raw := fileVal
	if envVal != "" {
		raw = strings.Split(envVal, ",")
	}
	var out []string
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.FlwSecretKey == "" {
		errs = append(errs, ErrMissingFlwSecretKey)
	}
	if c.FlwWebhookSecret == "" {
		errs = append(errs, ErrMissingFlwWebhookSecret)
	}
	if c.BaseURL == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if len(c.AdminEmails) == 0 {
		errs = append(errs, ErrMissingAdminEmails)
	}

	// Storage configuration is optional. Only validate fields if any value is set.
	if c.StorageBucket != "" || c.StorageAccessKeyID != "" || c.StorageSecretAccessKey != "" || c.StorageEndpoint != "" {
		if c.StorageBucket == "" {
			errs = append(errs, ErrMissingStorageBucket)
		}
		if c.StorageAccessKeyID == "" {
			errs = append(errs, ErrMissingStorageAccessKey)
		}
		if c.StorageSecretAccessKey == "" {
			errs = append(errs, ErrMissingStorageSecretKey)
		}
		if c.StorageEndpoint == "" {
			errs = append(errs, ErrMissingStorageEndpoint)
		}
	}

	return errs
}

// StorageConfigured reports whether the object-storage group is set.
func (c *Config) StorageConfigured() bool {
	return c.StorageBucket != "" && c.StorageAccessKeyID != "" &&
		c.StorageSecretAccessKey != "" && c.StorageEndpoint != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":             maskSecret(c.JWTSecret),
		"flw_secret_key":         maskFlwKey(c.FlwSecretKey),
		"flw_webhook_secret":     maskSecret(c.FlwWebhookSecret),
		"flw_base_url":           c.FlwBaseURL,
		"base_url":               c.BaseURL,
		"success_url":            c.SuccessURL,
		"failure_url":            c.FailureURL,
		"admin_emails":           fmt.Sprintf("%d configured", len(c.AdminEmails)),
		"redis_url":              maskDatabaseURL(c.RedisURL),
		"storage_bucket":         c.StorageBucket,
		"storage_access_key_id":  maskSecret(c.StorageAccessKeyID),
		"storage_endpoint":       c.StorageEndpoint,
		"signed_url_ttl_minutes": fmt.Sprintf("%d", c.SignedURLTTLMinutes),
		"allow_unowned_grants":   fmt.Sprintf("%t", c.AllowUnownedGrants),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters
// followed by ****. If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskFlwKey masks a Flutterwave API key, preserving the prefix
// (FLWSECK-..., FLWSECK_TEST-...).
func maskFlwKey(s string) string {
	if s == "" {
		return "<not set>"
	}
	if idx := strings.Index(s, "-"); idx != -1 {
		return s[:idx+1] + "****"
	}
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
