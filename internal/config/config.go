// ABOUTME: Configuration loading and parsing for spacegate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete spacegate configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Sweeps   SweepsConfig   `yaml:"sweeps"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// TokenSecret signs session tokens for fully verified sessions
	TokenSecret string `yaml:"token_secret"`
}

// SweepsConfig holds background sweep intervals
type SweepsConfig struct {
	SessionInterval    time.Duration `yaml:"-"`
	DelegationInterval time.Duration `yaml:"-"`
	ChallengeInterval  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionIntervalRaw    string `yaml:"session_interval"`
	DelegationIntervalRaw string `yaml:"delegation_interval"`
	ChallengeIntervalRaw  string `yaml:"challenge_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default sweep intervals applied when the config file leaves them unset.
const (
	DefaultSessionSweepInterval    = time.Hour
	DefaultDelegationSweepInterval = time.Hour
	DefaultChallengeSweepInterval  = 15 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required")
	}
	if len(c.Auth.TokenSecret) < 32 {
		return fmt.Errorf("auth.token_secret must be at least 32 characters")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sweeps.SessionIntervalRaw != "" {
		cfg.Sweeps.SessionInterval, err = time.ParseDuration(cfg.Sweeps.SessionIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing session_interval %q: %w", cfg.Sweeps.SessionIntervalRaw, err)
		}
	}

	if cfg.Sweeps.DelegationIntervalRaw != "" {
		cfg.Sweeps.DelegationInterval, err = time.ParseDuration(cfg.Sweeps.DelegationIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing delegation_interval %q: %w", cfg.Sweeps.DelegationIntervalRaw, err)
		}
	}

	if cfg.Sweeps.ChallengeIntervalRaw != "" {
		cfg.Sweeps.ChallengeInterval, err = time.ParseDuration(cfg.Sweeps.ChallengeIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing challenge_interval %q: %w", cfg.Sweeps.ChallengeIntervalRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in sweep intervals left unset by the config file.
func applyDefaults(cfg *Config) {
	if cfg.Sweeps.SessionInterval == 0 {
		cfg.Sweeps.SessionInterval = DefaultSessionSweepInterval
	}
	if cfg.Sweeps.DelegationInterval == 0 {
		cfg.Sweeps.DelegationInterval = DefaultDelegationSweepInterval
	}
	if cfg.Sweeps.ChallengeInterval == 0 {
		cfg.Sweeps.ChallengeInterval = DefaultChallengeSweepInterval
	}
}
