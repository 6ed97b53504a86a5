// Package config implements the CLI configuration system: a YAML user config
// in the XDG config directory, an optional project-local override, and
// INFERADB_* environment variables, resolved in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// ProjectConfigFile is the per-project override looked up in the working
// directory.
const ProjectConfigFile = ".inferadb-cli.yaml"

// userConfigRelPath is the user config location relative to the XDG config home.
const userConfigRelPath = "inferadb/cli.yaml"

// DefaultAPIURL is the production API endpoint used when a profile does not
// pin one.
const DefaultAPIURL = "https://api.inferadb.com"

// Config is the persisted CLI configuration.
type Config struct {
	// DefaultProfile names the profile used when none is selected explicitly.
	DefaultProfile string `yaml:"default_profile,omitempty"`

	// Profiles maps profile names to connection targets.
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`

	// Output holds formatting preferences.
	Output OutputConfig `yaml:"output,omitempty"`

	// LogFile, when set, redirects logs to a rotating file at this path.
	LogFile string `yaml:"log_file,omitempty"`
}

// OutputConfig holds output formatting preferences.
type OutputConfig struct {
	// Format is the default output format: table, json, or yaml.
	Format string `yaml:"format,omitempty"`
	// Color controls color output: auto, always, or never.
	Color string `yaml:"color,omitempty"`
}

// Load resolves configuration from all sources.
//
// Resolution order, highest precedence last applied:
//  1. defaults
//  2. user config (XDG config dir)
//  3. project config (.inferadb-cli.yaml in the working directory)
//  4. environment variables (INFERADB_PROFILE, INFERADB_URL, INFERADB_ORG,
//     INFERADB_VAULT)
//
// Command-line flags are applied by the caller on top of the result.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if userPath, err := UserConfigPath(); err == nil {
		if _, statErr := os.Stat(userPath); statErr == nil {
			userCfg, loadErr := LoadFromFile(userPath)
			if loadErr != nil {
				return nil, loadErr
			}
			cfg.merge(userCfg)
		}
	}

	if _, err := os.Stat(ProjectConfigFile); err == nil {
		projectCfg, loadErr := LoadFromFile(ProjectConfigFile)
		if loadErr != nil {
			return nil, loadErr
		}
		cfg.merge(projectCfg)
	}

	cfg.applyEnvOverrides()

	if len(cfg.Profiles) == 0 {
		cfg.Profiles = map[string]*Profile{"default": {}}
		cfg.DefaultProfile = "default"
	}

	return cfg, nil
}

// LoadFromFile reads a single YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to the user config file, creating the
// directory if needed.
func (c *Config) Save() error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// UserConfigPath returns the user config file path inside the XDG config
// directory, e.g. ~/.config/inferadb/cli.yaml.
func UserConfigPath() (string, error) {
	path, err := xdg.ConfigFile(userConfigRelPath)
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return path, nil
}

// EffectiveProfileName resolves which profile a command should act on:
// explicit override first, then the configured default, then "default".
func (c *Config) EffectiveProfileName(override string) string {
	if override != "" {
		return override
	}
	if c.DefaultProfile != "" {
		return c.DefaultProfile
	}
	return "default"
}

// GetProfile looks up a profile by name.
func (c *Config) GetProfile(name string) (*Profile, bool) {
	profile, ok := c.Profiles[name]
	return profile, ok
}

// SetProfile adds or replaces a profile.
func (c *Config) SetProfile(name string, profile *Profile) {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = profile
}

// DeleteProfile removes a profile, clearing the default if it pointed there.
func (c *Config) DeleteProfile(name string) {
	delete(c.Profiles, name)
	if c.DefaultProfile == name {
		c.DefaultProfile = ""
	}
}

func defaultConfig() *Config {
	return &Config{
		Profiles: make(map[string]*Profile),
		Output:   OutputConfig{Format: "table", Color: "auto"},
	}
}

// merge overlays other onto c; set fields in other win.
func (c *Config) merge(other *Config) {
	if other.DefaultProfile != "" {
		c.DefaultProfile = other.DefaultProfile
	}
	for name, profile := range other.Profiles {
		c.SetProfile(name, profile)
	}
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}
	if other.Output.Color != "" {
		c.Output.Color = other.Output.Color
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
}

// applyEnvOverrides folds INFERADB_* environment variables into the config.
// URL/org/vault land in a synthetic "env" profile so they never clobber a
// saved profile on disk.
func (c *Config) applyEnvOverrides() {
	if profile := os.Getenv("INFERADB_PROFILE"); profile != "" {
		c.DefaultProfile = profile
	}

	url := os.Getenv("INFERADB_URL")
	org := os.Getenv("INFERADB_ORG")
	vault := os.Getenv("INFERADB_VAULT")
	if url == "" && org == "" && vault == "" {
		return
	}

	envProfile, ok := c.Profiles["env"]
	if !ok {
		envProfile = &Profile{}
		c.SetProfile("env", envProfile)
	}
	if url != "" {
		envProfile.URL = url
	}
	if org != "" {
		envProfile.Org = org
	}
	if vault != "" {
		envProfile.Vault = vault
	}
}
