package internal

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/provider"
	"github.com/starford/orgsync/internal/syncer"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Document DocumentConfig    `yaml:"document"`
	Provider ProviderConfig    `yaml:"provider"`
	Sync     SyncConfig        `yaml:"sync"`
	History  HistoryConfig     `yaml:"history"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Document.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// NewLogger builds the slog logger described by the configuration.
func (c *ApplicationConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
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

// DocumentConfig holds the path of the Org outline.
type DocumentConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the document configuration.
func (c *DocumentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ProviderConfig selects and configures the issue source.
type ProviderConfig struct {
	Kind      string        `yaml:"kind"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	Gitea     GiteaConfig   `yaml:"gitea"`
}

// GiteaConfig holds Gitea connection settings.
type GiteaConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Validate validates the provider configuration.
func (c *ProviderConfig) Validate() error {
	if c.Kind == "" {
		c.Kind = string(provider.KindGitHub)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.In(string(provider.KindGitHub), string(provider.KindGitea))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheSize, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Kind == string(provider.KindGitea) && c.Gitea.URL == "" {
		return fmt.Errorf("provider: kind is %q but gitea.url is empty", provider.KindGitea)
	}
	return nil
}

// Build creates the configured provider.
func (c *ProviderConfig) Build(logger *slog.Logger) (provider.Provider, error) {
	return provider.New(provider.Config{
		Kind:       provider.Kind(c.Kind),
		Timeout:    c.Timeout,
		GiteaURL:   c.Gitea.URL,
		GiteaToken: c.Gitea.Token,
		CacheSize:  c.CacheSize,
		Logger:     logger,
	})
}

// SyncConfig holds the default sync options. Interval enables periodic
// syncs in serve mode; zero disables them.
type SyncConfig struct {
	Repo     string        `yaml:"repo"`
	State    string        `yaml:"state"`
	Limit    int           `yaml:"limit"`
	Comments bool          `yaml:"comments"`
	Backup   bool          `yaml:"backup"`
	LinkTag  bool          `yaml:"link_tag"`
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Repo, validation.By(validRepo)),
		validation.Field(&c.State, validation.In(string(issue.FilterAll), string(issue.FilterOpen), string(issue.FilterClosed))),
		validation.Field(&c.Limit, validation.Min(0)),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

func validRepo(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := issue.ParseRepo(s)
	return err
}

// Options returns the sync options for document.
func (c *SyncConfig) Options(document string) syncer.Options {
	state := issue.StateFilter(c.State)
	if state == "" {
		state = issue.FilterAll
	}
	return syncer.Options{
		Repo:     c.Repo,
		Document: document,
		State:    state,
		Limit:    c.Limit,
		Comments: c.Comments,
		Backup:   c.Backup,
		LinkTag:  c.LinkTag,
	}
}

// HistoryConfig holds the SQLite sync log configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
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
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Document: DocumentConfig{
			Path: "issues.org",
		},
		Provider: ProviderConfig{
			Kind:      string(provider.KindGitHub),
			Timeout:   provider.DefaultTimeout,
			CacheSize: 512,
		},
		Sync: SyncConfig{
			State:    string(issue.FilterAll),
			Comments: true,
			Backup:   true,
			LinkTag:  true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".orgsync/history.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
