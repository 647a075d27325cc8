package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Rules    RulesConfig       `yaml:"rules"`
	Sync     SyncConfig        `yaml:"sync"`
	AutoSave AutoSaveConfig    `yaml:"auto_save"`
	Pairing  PairingConfig     `yaml:"pairing"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Pairing.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the database paths. Ledger holds the local ledger,
// Codes holds the pairing-code store for the remote role.
type SQLiteConfig struct {
	Ledger string `yaml:"ledger"`
	Codes  string `yaml:"codes"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Ledger, validation.Required),
		validation.Field(&c.Codes, validation.Required),
	)
}

// RulesConfig holds the optional path to a YAML classification rules file.
// When Path is empty the bundled defaults are used and hot reload is off.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig controls the reconciliation scheduler.
type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("sync: poll_interval %s is below the 1s minimum", c.PollInterval)
	}
	return nil
}

// AutoSaveConfig gates which transaction types reconciliation persists.
type AutoSaveConfig struct {
	Income  bool `yaml:"income"`
	Expense bool `yaml:"expense"`
}

// PairingConfig points the device role at a remote store. With the default
// value the daemon talks to its own remote endpoints.
type PairingConfig struct {
	RemoteURL string `yaml:"remote_url"`
}

// Validate validates the pairing configuration.
func (c *PairingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RemoteURL, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the device API. The
// pairing remote endpoints are never authenticated.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Ledger: "./gagyebu.db",
			Codes:  "./gagyebu-codes.db",
		},
		Sync: SyncConfig{
			PollInterval: 30 * time.Second,
		},
		AutoSave: AutoSaveConfig{
			Income:  true,
			Expense: true,
		},
		Pairing: PairingConfig{
			RemoteURL: "http://127.0.0.1:8080",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
