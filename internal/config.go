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
	App       ApplicationConfig `yaml:"app"`
	Registry  RegistryConfig    `yaml:"registry"`
	Cache     CacheConfig       `yaml:"cache"`
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
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

// RegistryConfig holds the resource registry configuration.
//
// SeedFile is an optional YAML file with statically configured resources.
// LogPath is the SQLite discovery log that persists discovered resources
// and cache status across restarts.
type RegistryConfig struct {
	SeedFile string `yaml:"seed_file"`
	LogPath  string `yaml:"log_path"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogPath, validation.Required),
	)
}

// CacheConfig holds artifact cache configuration.
type CacheConfig struct {
	Dir                  string `yaml:"dir"`
	TTLSeconds           int    `yaml:"ttl_seconds"`
	MaxFileSize          int64  `yaml:"max_file_size"`
	MaxConcurrentFetches int    `yaml:"max_concurrent_fetches"`
	FetchTimeoutSeconds  int    `yaml:"fetch_timeout_seconds"`
}

// TTL returns the time-to-live as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FetchTimeout returns the per-resource fetch timeout as a duration.
func (c *CacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.TTLSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxConcurrentFetches, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.FetchTimeoutSeconds, validation.Required, validation.Min(1)),
	)
}

// DiscoveryConfig holds GitHub organization discovery configuration.
// Org may be empty, which disables discovery (static registry only).
type DiscoveryConfig struct {
	Org            string `yaml:"org"`
	RepoSuffix     string `yaml:"repo_suffix"`
	ArtifactBranch string `yaml:"artifact_branch"`
	ArtifactPath   string `yaml:"artifact_path"`
	APIBaseURL     string `yaml:"api_base_url"`
	RawBaseURL     string `yaml:"raw_base_url"`
	Token          string `yaml:"token"`
}

// Validate validates the discovery configuration.
func (c *DiscoveryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RepoSuffix, validation.Required),
		validation.Field(&c.ArtifactBranch, validation.Required),
		validation.Field(&c.ArtifactPath, validation.Required),
		validation.Field(&c.APIBaseURL, validation.Required),
		validation.Field(&c.RawBaseURL, validation.Required),
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
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Registry: RegistryConfig{
			SeedFile: "config/resources.yaml",
			LogPath:  "./raido.db",
		},
		Cache: CacheConfig{
			Dir:                  "./cache",
			TTLSeconds:           86400, // 24 hours
			MaxFileSize:          50 << 20,
			MaxConcurrentFetches: 4,
			FetchTimeoutSeconds:  60,
		},
		Discovery: DiscoveryConfig{
			RepoSuffix:     "-models",
			ArtifactBranch: "docs",
			ArtifactPath:   "docs",
			APIBaseURL:     "https://api.github.com",
			RawBaseURL:     "https://raw.githubusercontent.com",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
