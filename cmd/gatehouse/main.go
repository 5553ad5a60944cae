package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/markhold/gatehouse/pkg/authentication"
	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/lockout"
	"github.com/markhold/gatehouse/pkg/logging"
	"github.com/markhold/gatehouse/pkg/password"
	"github.com/markhold/gatehouse/pkg/session"
	"github.com/markhold/gatehouse/pkg/webserver"
)

var (
	version     = "dev" // Will be set during build
	cfgFile     string
	showVersion bool
)

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

var rootCmd = &cobra.Command{
	Use:           "gatehouse",
	Short:         "Gatehouse session manager",
	SilenceUsage:  false,
	SilenceErrors: true,
	Long: `Gatehouse - file-backed authentication and session management

Gatehouse authenticates users against a JSON credential store and manages
the security lifecycle of their sessions: password verification,
brute-force lockout, session rotation and CSRF protection.

Configuration file must be in JSON format with the following structure:
{
    "listen_addr": "0.0.0.0",
    "port": 8080,
    "users_store_path": "users.json",
    "cookie_name": "session",
    "session_key": "user_id",
    "session_expire": 86400,
    "login_path": "/login",
    "hash_scheme": "bcrypt",
    "bcrypt_cost": 12,
    "min_password_length": 12,
    "max_failed_attempts": 5,
    "lockout_duration": 900,
    "session_rotation": true,
    "csrf_protection": true,
    "audit_log_path": "log/gatehouse-audit.log"
}

The session secret is read from the SESSION_SECRET environment variable
(or the config file) and must be at least 64 characters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("Gatehouse %s\n", version)
			return nil
		}

		if cfgFile == "" {
			return fmt.Errorf("config file is required (use --config)")
		}

		// Convert to absolute path if needed
		if !filepath.IsAbs(cfgFile) {
			var err error
			cfgFile, err = filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to get absolute path: %v", err)
			}
		}

		// Load configuration
		var config Config
		if err := LoadConfig(cfgFile, &config); err != nil {
			return fmt.Errorf("failed to load config: %v", err)
		}

		// Initialize logging
		level := logging.LevelInfo
		if config.Debug {
			level = logging.LevelDebug
		}
		logger, err := logging.NewAppLogger(config.AppLogPath, level, 0)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %v", err)
		}
		defer logger.Close()

		audit, err := logging.NewAuditLogger(config.AuditLogPath)
		if err != nil {
			return fmt.Errorf("failed to initialize audit logging: %v", err)
		}

		// Credential store; a corrupt store file is fatal here
		store, err := credstore.NewFileStore(afero.NewOsFs(), config.UsersStorePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open user store: %v", err)
		}

		// Hashing scheme and password rules
		hasher, err := password.NewHasher(config.HashScheme, config.BcryptCost, []byte(config.HMACKey))
		if err != nil {
			return fmt.Errorf("failed to configure hashing: %v", err)
		}
		rules := password.Policy{
			MinLength:      config.MinPasswordLength,
			RequireDigit:   *config.RequireDigit,
			RequireUpper:   *config.RequireUpper,
			RequireLower:   *config.RequireLower,
			RequireSpecial: *config.RequireSpecial,
		}

		// Authentication service
		lockoutPolicy := lockout.NewPolicy(config.MaxFailedAttempts, time.Duration(config.LockoutDuration)*time.Second, nil)
		authenticator, err := authentication.NewAuthenticator(store, hasher, lockoutPolicy, rules)
		if err != nil {
			return fmt.Errorf("failed to create authenticator: %v", err)
		}
		authenticator.SetLogger(logger)
		authenticator.SetAudit(audit)

		// Session controller
		controller, err := session.NewController(store, config.SessionKey, *config.SessionRotation, *config.CSRFProtection)
		if err != nil {
			return fmt.Errorf("failed to create session controller: %v", err)
		}
		controller.SetLogger(logger)

		// Seed a default admin on first start with an empty store
		if store.Count() == 0 {
			if err := seedAdmin(authenticator, logger); err != nil {
				return fmt.Errorf("failed to seed admin user: %v", err)
			}
		}

		// Create and start web server
		server, err := webserver.New(&webserver.Config{
			ListenAddr:    config.ListenAddr,
			Port:          config.Port,
			CookieName:    config.CookieName,
			SessionSecret: config.SessionSecret,
			SessionExpire: time.Duration(config.SessionExpire) * time.Second,
			LoginPath:     config.LoginPath,
			Production:    config.Production,
		}, store, authenticator, controller, logger)
		if err != nil {
			return fmt.Errorf("failed to create web server: %v", err)
		}

		fmt.Printf("Starting Gatehouse %s on %s:%d\n", version, config.ListenAddr, config.Port)
		return server.ListenAndServe()
	},
}

// seedAdmin creates the initial admin account with a random password
// that satisfies the default strength rules. The password is printed
// once so the operator can log in and change it.
func seedAdmin(authenticator *authentication.Authenticator, logger logging.Logger) error {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	pass := "Aa1!" + hex.EncodeToString(buf)

	user, err := authenticator.Register("admin", pass)
	if err != nil {
		return err
	}

	logger.Info("Created default admin user", "username", user.Username)
	fmt.Printf("Created default admin user (username: admin, password: %s)\n", pass)
	return nil
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "path to config file (required)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version information")
}
