// Package config handles configuration loading for foreman.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/foreman/internal/strategy"
)

// Config holds all configuration for foreman.
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	TUI      TUIConfig      `mapstructure:"tui"`
	LogFile  string         `mapstructure:"log_file"`
	DataDir  string         `mapstructure:"data_dir"`
}

// AgentConfig holds child agent process settings.
type AgentConfig struct {
	// Binary is the child agent executable.
	Binary string `mapstructure:"binary"`
	// Model is the model identifier passed to every child.
	Model string `mapstructure:"model"`
	// DispatchTimeout is the per-dispatch deadline. Zero disables it.
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	// WorkDir is the working directory for children, if non-empty.
	WorkDir string `mapstructure:"work_dir"`
}

// ProfilesConfig holds role catalog settings.
type ProfilesConfig struct {
	// Dir is the directory of YAML profile files.
	Dir string `mapstructure:"dir"`
	// Watch reloads the catalog when profile files change on disk.
	Watch bool `mapstructure:"watch"`
}

// PipelineConfig holds the fixed step sequence for pipeline mode.
type PipelineConfig struct {
	Steps []strategy.Step `mapstructure:"steps"`
}

// TUIConfig holds status display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, a project override, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FOREMAN_*)
// 2. Project config (.foreman.yaml in the current directory)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if _, err := os.Stat(".foreman.yaml"); err == nil {
		project := viper.New()
		project.SetConfigFile(".foreman.yaml")
		if err := project.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(project.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FOREMAN")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.binary", "claude")
	v.SetDefault("agent.model", "")
	v.SetDefault("agent.dispatch_timeout", time.Duration(0))
	v.SetDefault("profiles.dir", ".foreman/profiles")
	v.SetDefault("profiles.watch", true)
	v.SetDefault("tui.refresh_rate", 250*time.Millisecond)
	v.SetDefault("log_file", "")
	v.SetDefault("data_dir", defaultDataDir())
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "foreman")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "foreman")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "foreman")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "foreman")
}
