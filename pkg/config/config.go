// Package config provides configuration management for tfload
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v4"
)

// Config represents the tfload configuration
type Config struct {
	// Root is the directory to parse (defaults to the current directory)
	Root string `yaml:"root,omitempty" json:"root,omitempty" jsonschema:"description=Directory to parse,default=."`

	// Exclude is a list of glob patterns for paths to skip during the directory walk
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty" jsonschema:"description=Glob patterns for paths to exclude from parsing"`

	// VarFiles is an ordered list of .tfvars files applied after environment variables
	VarFiles []string `yaml:"var_files,omitempty" json:"var_files,omitempty" jsonschema:"description=Ordered list of .tfvars files consulted after TF_VAR_ environment variables"`

	// NestedModules enables nested (as opposed to flat) module resolution
	NestedModules bool `yaml:"nested_modules" json:"nested_modules" jsonschema:"description=Resolve nested modules recursively instead of flattening module calls to a single level,default=false"`

	// DownloadExternalModules enables fetching of git/registry/OCI module sources
	DownloadExternalModules bool `yaml:"download_external_modules" json:"download_external_modules" jsonschema:"description=Download external module sources (git, registry, OCI) during resolution,default=false"`

	// ExternalModulesDir is the folder (relative to root) external module sources are fetched into
	ExternalModulesDir string `yaml:"external_modules_dir,omitempty" json:"external_modules_dir,omitempty" jsonschema:"description=Folder external module sources are downloaded into,default=.external_modules"`

	// IgnoreHiddenDirs skips dot-prefixed directories during the walk
	IgnoreHiddenDirs bool `yaml:"ignore_hidden_dirs" json:"ignore_hidden_dirs" jsonschema:"description=Skip dot-prefixed directories while walking the root,default=true"`

	// LogLevel controls verbosity of pkg/log output (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty" jsonschema:"description=Log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Root:                ".",
		NestedModules:       false,
		DownloadExternalModules: false,
		ExternalModulesDir:  ".external_modules",
		IgnoreHiddenDirs:    true,
		LogLevel:            "info",
	}
}

// Load reads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from file or returns default if not found
func LoadOrDefault(dir string) (*Config, error) {
	configPaths := []string{
		filepath.Join(dir, ".tfload.yaml"),
		filepath.Join(dir, ".tfload.yml"),
		filepath.Join(dir, "tfload.yaml"),
		filepath.Join(dir, "tfload.yml"),
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := DefaultConfig()
	cfg.Root = dir
	return cfg, nil
}

// SchemaURL is the URL to the JSON Schema for tfload configuration
const SchemaURL = "https://raw.githubusercontent.com/tfload/tfload/main/.tfload.schema.json"

// Save writes configuration to a file with a yaml-language-server schema reference
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := fmt.Sprintf("# yaml-language-server: $schema=%s\n", SchemaURL)
	content := append([]byte(header), data...)

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	return nil
}
