package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/markhold/gatehouse/pkg/password"
)

// minSessionSecretLength guards against weak cookie signing keys
const minSessionSecretLength = 64

// Config holds the gatehouse daemon configuration
type Config struct {
	// Core server settings
	ListenAddr string `json:"listen_addr"`
	Port       int    `json:"port"`
	Production bool   `json:"production,omitempty"` // Secure cookies, release-mode HTTP engine

	// Credential store
	UsersStorePath string `json:"users_store_path"` // Path to the JSON user store

	// Session settings
	CookieName      string `json:"cookie_name"`
	SessionKey      string `json:"session_key"`                // Session key holding the bound user id
	SessionSecret   string `json:"session_secret,omitempty"`   // Cookie signing secret; SESSION_SECRET env overrides
	SessionExpire   int    `json:"session_expire"`             // Session lifetime in seconds
	SessionRotation *bool  `json:"session_rotation,omitempty"` // Rotate session state at login
	CSRFProtection  *bool  `json:"csrf_protection,omitempty"`  // Require CSRF tokens on state-changing requests
	LoginPath       string `json:"login_path"`

	// Hashing scheme: "bcrypt" or "hmac"
	HashScheme string `json:"hash_scheme"`
	BcryptCost int    `json:"bcrypt_cost"`
	HMACKey    string `json:"hmac_key,omitempty"` // HMAC_KEY env overrides

	// Password strength rules
	MinPasswordLength int   `json:"min_password_length"`
	RequireDigit      *bool `json:"require_digit,omitempty"`
	RequireUpper      *bool `json:"require_upper,omitempty"`
	RequireLower      *bool `json:"require_lower,omitempty"`
	RequireSpecial    *bool `json:"require_special,omitempty"`

	// Lockout settings
	MaxFailedAttempts int `json:"max_failed_attempts"`
	LockoutDuration   int `json:"lockout_duration"` // Lockout window in seconds

	// Logging settings
	AppLogPath   string `json:"app_log_path,omitempty"`   // Optional: application log file
	AuditLogPath string `json:"audit_log_path,omitempty"` // Optional: authentication audit log
	Debug        bool   `json:"debug,omitempty"`          // Enable debug logging
}

// LoadConfig loads configuration from a JSON file, applies defaults and
// environment overrides, and validates the result
func LoadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	// Convert relative paths to absolute paths based on config file location
	configDir := filepath.Dir(path)
	if config.UsersStorePath != "" && !filepath.IsAbs(config.UsersStorePath) {
		config.UsersStorePath = filepath.Join(configDir, config.UsersStorePath)
	}
	if config.AppLogPath != "" && !filepath.IsAbs(config.AppLogPath) {
		config.AppLogPath = filepath.Join(configDir, config.AppLogPath)
	}
	if config.AuditLogPath != "" && !filepath.IsAbs(config.AuditLogPath) {
		config.AuditLogPath = filepath.Join(configDir, config.AuditLogPath)
	}

	// Secrets may live in the environment rather than the config file.
	// A .env next to the process is honored when present.
	_ = godotenv.Load()
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.SessionSecret = v
	}
	if v := os.Getenv("HMAC_KEY"); v != "" {
		config.HMACKey = v
	}
	if v := os.Getenv("USERS_PATH"); v != "" {
		config.UsersStorePath = v
	}

	applyDefaults(config)
	return config.Validate()
}

// applyDefaults fills unset optional settings with the historical
// defaults
func applyDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.CookieName == "" {
		config.CookieName = "session"
	}
	if config.SessionKey == "" {
		config.SessionKey = "user_id"
	}
	if config.SessionExpire == 0 {
		config.SessionExpire = 86400 // 1 day
	}
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	if config.HashScheme == "" {
		config.HashScheme = password.SchemeBcrypt
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = 12
	}
	if config.MinPasswordLength == 0 {
		config.MinPasswordLength = 12
	}
	if config.MaxFailedAttempts == 0 {
		config.MaxFailedAttempts = 5
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = 900 // 15 minutes
	}

	defaultTrue(&config.SessionRotation)
	defaultTrue(&config.CSRFProtection)
	defaultTrue(&config.RequireDigit)
	defaultTrue(&config.RequireUpper)
	defaultTrue(&config.RequireLower)
	defaultTrue(&config.RequireSpecial)
}

func defaultTrue(b **bool) {
	if *b == nil {
		t := true
		*b = &t
	}
}

// Validate rejects configurations that must not reach request time.
// Secrets are never silently defaulted.
func (c *Config) Validate() error {
	if c.UsersStorePath == "" {
		return fmt.Errorf("users_store_path is required")
	}
	if len(c.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("session_secret must be at least %d characters", minSessionSecretLength)
	}
	if c.SessionExpire < 0 {
		return fmt.Errorf("session_expire must be positive")
	}

	switch c.HashScheme {
	case password.SchemeBcrypt:
		// Cost bounds are enforced by the hasher itself
	case password.SchemeHMAC:
		if len(c.HMACKey) < 32 {
			return fmt.Errorf("hmac_key must be at least 32 bytes for the hmac scheme")
		}
	default:
		return fmt.Errorf("unknown hash_scheme %q", c.HashScheme)
	}

	return nil
}
