// ABOUTME: Configuration loading and parsing for spacesync
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete spacesync configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Teachable TeachableConfig `yaml:"teachable"`
	Circle    CircleConfig    `yaml:"circle"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// JWTSecret guards the read-only admin API; if empty, the API is open.
// WebhookSecret, when set, must match the X-Webhook-Secret header on
// inbound enrollment webhooks.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// TeachableConfig holds course registry (Teachable) API configuration.
// APIKey may be empty at load time; reconciler runs gate on it per invocation.
type TeachableConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CircleConfig holds space registry (Circle) API configuration.
// Circle's admin v2 API handles space creation and renames; the v1 API
// handles deletion and member invites, so both tokens are needed.
type CircleConfig struct {
	APITokenV1   string           `yaml:"api_token_v1"`
	APITokenV2   string           `yaml:"api_token_v2"`
	BaseURL      string           `yaml:"base_url"`
	CommunityID  string           `yaml:"community_id"`
	SpaceGroupID string           `yaml:"space_group_id"`
	Space        SpaceFlagsConfig `yaml:"space"`
}

// SpaceFlagsConfig holds visibility flags applied to newly created spaces.
type SpaceFlagsConfig struct {
	Private              bool `yaml:"private"`
	HiddenFromNonMembers bool `yaml:"hidden_from_non_members"`
	Hidden               bool `yaml:"hidden"`
}

// SyncConfig holds periodic reconciliation configuration
type SyncConfig struct {
	// DeleteInterval is the cadence for the periodic rename/delete passes:
	// disabled, every_minute, hourly, twicedaily, or daily.
	DeleteInterval string `yaml:"delete_interval"`

	HTTPTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	HTTPTimeoutRaw string `yaml:"http_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when fields are omitted.
const (
	DefaultTeachableBaseURL = "https://developers.teachable.com"
	DefaultCircleBaseURL    = "https://app.circle.so"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultDeleteInterval   = "daily"
)

// validDeleteIntervals matches the cadences the scheduler understands.
var validDeleteIntervals = []string{"disabled", "every_minute", "hourly", "twicedaily", "daily"}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Teachable.BaseURL == "" {
		cfg.Teachable.BaseURL = DefaultTeachableBaseURL
	}
	if cfg.Circle.BaseURL == "" {
		cfg.Circle.BaseURL = DefaultCircleBaseURL
	}
	if cfg.Sync.DeleteInterval == "" {
		cfg.Sync.DeleteInterval = DefaultDeleteInterval
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
//
// Registry credentials (teachable.api_key, circle.api_token_v1/v2,
// circle.community_id) are deliberately not required here: they can be filled
// in after first start, and the reconcilers skip work with a diagnostic until
// they are present.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	valid := false
	for _, v := range validDeleteIntervals {
		if c.Sync.DeleteInterval == v {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("sync.delete_interval %q is invalid (expected one of %v)", c.Sync.DeleteInterval, validDeleteIntervals)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Sync.HTTPTimeoutRaw == "" {
		cfg.Sync.HTTPTimeout = DefaultHTTPTimeout
		return nil
	}

	var err error
	cfg.Sync.HTTPTimeout, err = time.ParseDuration(cfg.Sync.HTTPTimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing http_timeout %q: %w", cfg.Sync.HTTPTimeoutRaw, err)
	}

	return nil
}
