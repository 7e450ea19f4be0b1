package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wssync/internal/catalogue"
	"github.com/starford/wssync/internal/watcher"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var plainFileName = regexp.MustCompile(`^[^/\\]+$`)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Sync      SyncConfig        `yaml:"sync"`
	Catalogue CatalogueConfig   `yaml:"catalogue"`
	Watch     WatchConfig       `yaml:"watch"`
	History   HistoryConfig     `yaml:"history"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Catalogue.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
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

// SyncConfig describes the source and target trees.
type SyncConfig struct {
	// Source holds one directory per workspace.
	Source string `yaml:"source"`
	// Target receives the mirrored workspaces and the catalogue.
	Target string `yaml:"target"`
	// Docs narrows each workspace to a sub-directory (e.g. "report").
	Docs    string   `yaml:"docs"`
	Exclude []string `yaml:"exclude"`
	DryRun  bool     `yaml:"dry_run"`
	Lock    bool     `yaml:"lock"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required.Error("source root is required (--src)")),
		validation.Field(&c.Target, validation.Required.Error("target root is required (--target)")),
	)
}

// CatalogueConfig controls the generated catalogue file.
type CatalogueConfig struct {
	// Prefix is prepended to the doc and image paths of each entry.
	// Nil means no prefix; an explicit "" means "/".
	Prefix *string `yaml:"prefix"`
	// File is the catalogue name under the target root.
	File string `yaml:"file"`
}

// Validate validates the catalogue configuration.
func (c *CatalogueConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.File, validation.Required, validation.Match(plainFileName)),
	)
}

// LinkPrefix returns the normalized prefix for catalogue links.
func (c *CatalogueConfig) LinkPrefix() string {
	return catalogue.ResolvePrefix(c.Prefix)
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
	)
}

// HistoryConfig holds the optional run-history database location.
// An empty Path disables history.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether run history is recorded.
func (c *HistoryConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration for POST /api/sync.
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
	// Normalise empty mode to "disabled".
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
		Catalogue: CatalogueConfig{
			File: catalogue.DefaultFile,
		},
		Watch: WatchConfig{
			Debounce: watcher.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
