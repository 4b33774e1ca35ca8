package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/panela/internal/session"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	API       APIConfig         `yaml:"api"`
	Session   SessionConfig     `yaml:"session"`
	Templates TemplatesConfig   `yaml:"templates"`
	Ledger    LedgerConfig      `yaml:"ledger"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Templates.Validate(); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	return c.Events.Validate()
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

// APIConfig points at the remote recipe API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SessionConfig controls the auth cookie and the sign-in redirect.
type SessionConfig struct {
	CookieName   string `yaml:"cookie_name"`
	SecureCookie bool   `yaml:"secure_cookie"`
	LoginPath    string `yaml:"login_path"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	if c.CookieName == "" {
		c.CookieName = session.DefaultCookieName
	}
	if c.LoginPath == "" {
		c.LoginPath = session.DefaultRedirect
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("login_path %q must start with /", c.LoginPath)
	}
	return nil
}

// TemplatesConfig selects where page templates come from.
//
// An empty Dir uses the templates compiled into the binary. Watch only
// applies when Dir is set.
type TemplatesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the templates configuration.
func (c *TemplatesConfig) Validate() error {
	if c.Watch && c.Dir == "" {
		return fmt.Errorf("watch requires dir")
	}
	return nil
}

// LedgerConfig locates the SQLite upload ledger. An empty Path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether uploads are recorded.
func (c *LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// EventsConfig tunes the live-update stream.
type EventsConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3000,
			},
		},
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			CookieName: session.DefaultCookieName,
			LoginPath:  session.DefaultRedirect,
		},
		Ledger: LedgerConfig{
			Path: "./panela.db",
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
