package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quidome/photo-retime/pkg/scan"
)

type Config struct {
	// Timezone is an IANA zone name; empty means the process local zone.
	Timezone        string        `yaml:"timezone"`
	ExiftoolPath    string        `yaml:"exiftool_path"`
	StayOpen        bool          `yaml:"stay_open"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	IncludeActivity bool          `yaml:"include_activity"`
	CheckContent    bool          `yaml:"check_content"`
	DryRun          bool          `yaml:"dry_run"`
	Strict          bool          `yaml:"strict"`
	Verbose         bool          `yaml:"verbose"`
}

func DefaultConfig() *Config {
	return &Config{
		IncludeActivity: true,
	}
}

func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ToolTimeout < 0 {
		return &ValidationError{Field: "tool_timeout", Message: "must not be negative"}
	}
	if _, err := c.Location(); err != nil {
		return &ValidationError{Field: "timezone", Message: err.Error()}
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Patterns returns the filename globs the config selects.
func (c *Config) Patterns() []string {
	if c.IncludeActivity {
		return []string{scan.PhotoPattern, scan.ActivityPattern}
	}
	return []string{scan.PhotoPattern}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
