// Package config provides configuration management for the ming-mong server.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080, or 8443 when TLS is enabled)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Append logs to this file instead of stdout
//   - RECLAIM_PORT: Free the listening port from previous occupants at startup (default: true)
//
// TLS Configuration:
//   - ENABLE_TLS: Enable TLS ("true", "1" or "yes")
//   - TLS_MODE: Certificate strategy - "none", "self-signed" or "auto" (default: none)
//   - TLS_DOMAIN: Domain for automatic public certificates (default: derived from public IP)
//   - TLS_CERT_FILE: Certificate file path (default: server.crt when TLS enabled)
//   - TLS_KEY_FILE: Private key file path (default: server.key when TLS enabled)
//
// ACME Configuration:
//   - ACME_TIMEOUT: Upper bound on the certificate issuance exchange (default: 5m)
//   - ACME_DIRECTORY_URL: ACME directory endpoint (default: Let's Encrypt production)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/acme"

	"mingmong/internal/common/errors"
)

// TLS certificate strategies accepted by TLS_MODE.
const (
	TLSModeNone       = "none"
	TLSModeSelfSigned = "self-signed"
	TLSModeAuto       = "auto"
)

// Config holds all configuration values for the ming-mong server.
// All fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port        string // Server port number
	LogLevel    string // Logging level (debug, info, warn, error)
	LogFile     string // Optional log file path
	ReclaimPort bool   // Whether to free the listening port at startup

	// TLS configuration
	EnableTLS   bool   // Whether TLS was requested
	TLSMode     string // Certificate strategy: none, self-signed, auto
	TLSDomain   string // Operator-supplied domain for automatic certificates
	TLSCertFile string // Certificate file path
	TLSKeyFile  string // Private key file path

	// ACME configuration
	ACMETimeout      string // Upper bound on the issuance exchange (e.g. "5m")
	ACMEDirectoryURL string // ACME directory endpoint
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	enableTLS := getTLSFlagEnv("ENABLE_TLS")
	tlsMode := getEnv("TLS_MODE", TLSModeNone)
	if tlsMode != TLSModeNone {
		enableTLS = true
	}

	defaultPort := "8080"
	if enableTLS {
		defaultPort = "8443"
	}

	return &Config{
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		ReclaimPort: getBoolEnv("RECLAIM_PORT", true),

		EnableTLS:   enableTLS,
		TLSMode:     tlsMode,
		TLSDomain:   getEnv("TLS_DOMAIN", ""),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		ACMETimeout:      getEnv("ACME_TIMEOUT", "5m"),
		ACMEDirectoryURL: getEnv("ACME_DIRECTORY_URL", acme.LetsEncryptURL),
	}
}

// ACMETimeoutDuration returns the parsed ACME exchange timeout.
// Validate() guarantees the value parses; a zero return means no bound.
func (c *Config) ACMETimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ACMETimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getTLSFlagEnv parses the ENABLE_TLS style flag, which historically accepts
// "true", "1" and "yes".
func getTLSFlagEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("PORT must be a valid port number between 1 and 65535")
	}

	switch c.TLSMode {
	case TLSModeNone, TLSModeSelfSigned, TLSModeAuto:
		// Valid modes
	default:
		return errors.ConfigError("TLS_MODE must be 'none', 'self-signed' or 'auto'")
	}

	if _, err := time.ParseDuration(c.ACMETimeout); err != nil {
		return errors.ConfigError("ACME_TIMEOUT must be a valid duration (e.g., '5m', '90s')")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.ConfigError("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return nil
}
