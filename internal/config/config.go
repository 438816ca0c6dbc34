// Package config loads phasegate settings from the project dot directory
// via viper. The config file is flat `key: value` YAML, so hand-edited
// files and the setup command produce the same shape.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// DotDirName is the per-project directory holding state, config, the
// decision log, and debug logs.
const DotDirName = ".phasegate"

// configFileName is the config file inside the dot directory.
const configFileName = "config.yaml"

// Mode controls when evaluations run.
type Mode string

const (
	// ModeAlways evaluates on every user prompt.
	ModeAlways Mode = "always"
	// ModePull evaluates only when explicitly requested.
	ModePull Mode = "pull"
)

// ParseMode converts a mode string, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeAlways):
		return ModeAlways, nil
	case string(ModePull):
		return ModePull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected always or pull)", s)
	}
}

// Config represents the complete phasegate configuration.
type Config struct {
	// Mode controls when evaluations run: "always" or "pull"
	Mode string `mapstructure:"mode"`
	// Model is the model alias passed to the evaluator CLI
	Model string `mapstructure:"model"`
	// EvalTimeoutSeconds bounds one evaluation subprocess
	EvalTimeoutSeconds int `mapstructure:"eval_timeout_seconds"`
	// CarryoverDecisionCount is how many recent decisions to fold into the
	// next evaluation prompt
	CarryoverDecisionCount int `mapstructure:"carryover_decision_count"`
	// CarryoverWindowMinutes bounds how far back transcript messages are
	// considered for carryover context
	CarryoverWindowMinutes int `mapstructure:"carryover_window_minutes"`
	// OHEndeavorID is the Open Horizons endeavor decisions are logged to.
	// The OH_ENDEAVOR_ID environment variable takes precedence.
	OHEndeavorID string `mapstructure:"oh_endeavor_id"`
	// LogLevel is the debug log level: "debug", "info", "warn", "error"
	LogLevel string `mapstructure:"log_level"`

	// Warnings lists file values that were ignored in favor of their
	// defaults. Populated by Load, never read from the file.
	Warnings []string `mapstructure:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mode:                   string(ModeAlways),
		Model:                  "sonnet",
		EvalTimeoutSeconds:     120,
		CarryoverDecisionCount: 2,
		CarryoverWindowMinutes: 5,
		OHEndeavorID:           "",
		LogLevel:               "info",
	}
}

// EvalTimeout returns the evaluation timeout as a time.Duration.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutSeconds) * time.Second
}

// CarryoverWindow returns the carryover window as a time.Duration.
func (c *Config) CarryoverWindow() time.Duration {
	return time.Duration(c.CarryoverWindowMinutes) * time.Minute
}

// EndeavorID returns the Open Horizons endeavor id, with the environment
// variable taking precedence over the config file.
func (c *Config) EndeavorID() string {
	if id := os.Getenv("OH_ENDEAVOR_ID"); id != "" {
		return id
	}
	return c.OHEndeavorID
}

// SetDefaults registers default values with a viper instance.
func SetDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("model", defaults.Model)
	v.SetDefault("eval_timeout_seconds", defaults.EvalTimeoutSeconds)
	v.SetDefault("carryover_decision_count", defaults.CarryoverDecisionCount)
	v.SetDefault("carryover_window_minutes", defaults.CarryoverWindowMinutes)
	v.SetDefault("oh_endeavor_id", defaults.OHEndeavorID)
	v.SetDefault("log_level", defaults.LogLevel)
}

// Load reads the configuration for a project rooted at projectDir. A
// missing config file yields defaults; environment variables with the
// PHASEGATE_ prefix override file values.
//
// Each key falls back to its default individually when the value is
// missing, unparsable, or out of range, so a typo in one key never takes
// the whole configuration down. Load only errors when the file exists
// but cannot be read.
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("PHASEGATE")
	v.AutomaticEnv()

	cfg := Default()

	if data, err := os.ReadFile(File(projectDir)); err == nil {
		v.SetConfigType("yaml")
		if rerr := v.ReadConfig(bytes.NewReader(data)); rerr != nil {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("config file is not valid YAML, using defaults: %v", rerr))
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Mode = cfg.stringKey(v, "mode", cfg.Mode, validMode)
	cfg.Model = cfg.stringKey(v, "model", cfg.Model, nil)
	cfg.EvalTimeoutSeconds = cfg.intKey(v, "eval_timeout_seconds", cfg.EvalTimeoutSeconds, positive)
	cfg.CarryoverDecisionCount = cfg.intKey(v, "carryover_decision_count", cfg.CarryoverDecisionCount, nonNegative)
	cfg.CarryoverWindowMinutes = cfg.intKey(v, "carryover_window_minutes", cfg.CarryoverWindowMinutes, nonNegative)
	cfg.OHEndeavorID = cfg.stringKey(v, "oh_endeavor_id", cfg.OHEndeavorID, nil)
	cfg.LogLevel = cfg.stringKey(v, "log_level", cfg.LogLevel, validLogLevel)

	return cfg, nil
}

// stringKey extracts one string value, keeping def when the value cannot
// be cast or fails check. The skipped value is reported via Warnings.
func (c *Config) stringKey(v *viper.Viper, key, def string, check func(string) error) string {
	val, err := cast.ToStringE(v.Get(key))
	if err == nil && check != nil {
		err = check(val)
	}
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %v, using %q", key, err, def))
		return def
	}
	return val
}

// intKey is stringKey for integer values.
func (c *Config) intKey(v *viper.Viper, key string, def int, check func(int) error) int {
	val, err := cast.ToIntE(v.Get(key))
	if err == nil && check != nil {
		err = check(val)
	}
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: %v, using %d", key, err, def))
		return def
	}
	return val
}

func validMode(s string) error {
	_, err := ParseMode(s)
	return err
}

func validLogLevel(s string) error {
	switch s {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log_level %q", s)
	}
}

func positive(n int) error {
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func nonNegative(n int) error {
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

// Dir returns the dot directory for a project root.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, DotDirName)
}

// File returns the config file path for a project root.
func File(projectDir string) string {
	return filepath.Join(Dir(projectDir), configFileName)
}
