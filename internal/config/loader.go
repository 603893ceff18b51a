package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".webcrawler.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .webcrawler.yaml configuration file.
// Zero values and nil pointers mean "not set" and leave the corresponding
// Config field untouched.
type File struct {
	Format        string            `yaml:"format,omitempty"`
	Workers       int               `yaml:"workers,omitempty"`
	Timeout       time.Duration     `yaml:"timeout,omitempty"`
	MaxRetries    int               `yaml:"max_retries,omitempty"`
	RespectRobots *bool             `yaml:"respect_robots,omitempty"`
	UserAgent     string            `yaml:"user_agent,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	MaxBodySize   int64             `yaml:"max_body_size,omitempty"`
	CrawlDelay    time.Duration     `yaml:"crawl_delay,omitempty"`
	Proxy         string            `yaml:"proxy,omitempty"`
	LogLevel      string            `yaml:"log_level,omitempty"`
	LogFile       string            `yaml:"log_file,omitempty"`
	History       *bool             `yaml:"history,omitempty"`
	DBDir         string            `yaml:"db_dir,omitempty"`
	Progress      *bool             `yaml:"progress,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .webcrawler.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	return ""
}

// XDGConfigDir returns the XDG config directory for webcrawler.
// On Linux: ~/.config/webcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Apply copies every value set in the file onto c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Format != "" {
		c.Format = f.Format
	}
	if f.Workers != 0 {
		c.Workers = f.Workers
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.MaxRetries != 0 {
		c.MaxRetries = f.MaxRetries
	}
	if f.RespectRobots != nil {
		c.RespectRobots = *f.RespectRobots
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
	if f.MaxBodySize != 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.CrawlDelay != 0 {
		c.CrawlDelay = f.CrawlDelay
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.LogFile != "" {
		c.LogFile = f.LogFile
	}
	if f.History != nil {
		c.SaveHistory = *f.History
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.Progress != nil {
		c.ShowProgress = *f.Progress
	}
}
