package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawler"

	// DefaultWorkers is the number of fetch tasks allowed in flight at once.
	DefaultWorkers = 5

	// DefaultTimeout bounds a single fetch attempt, including reading the body.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of attempts a URL gets before it is
	// abandoned. The name follows the --max-retries flag; it counts attempts.
	DefaultMaxRetries = 3

	// DefaultFormat is the output encoding used when none is given.
	DefaultFormat = "csv"

	// DefaultUserAgent is sent with page and robots.txt requests.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultLogLevel is the minimum level written to the log.
	DefaultLogLevel = "info"
)

// Config holds all configuration options for a crawl run.
// It is populated from defaults, the optional config file and CLI flags,
// in that order, and passed down explicitly; nothing reads global state.
type Config struct {
	// URL is a single page to crawl. Mutually exclusive with InputFile.
	URL string

	// InputFile is a csv, json or text file listing URLs to crawl.
	InputFile string

	// OutputName is the output file path without extension.
	// The format is appended as the extension, e.g. "out" -> "out.json".
	OutputName string

	// Format is the output encoding, "csv" or "json".
	Format string

	// Workers is the maximum number of concurrent fetch tasks.
	Workers int

	// Timeout bounds each fetch attempt.
	Timeout time.Duration

	// MaxRetries is the number of attempts per URL, including the first.
	MaxRetries int

	// RespectRobots enables robots.txt gating. When disabled the gate
	// never touches the network.
	RespectRobots bool

	// UserAgent is the User-Agent header for every request and the agent
	// name matched against robots.txt groups.
	UserAgent string

	// Headers are extra request headers sent with page fetches.
	Headers map[string]string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// CrawlDelay is the minimum spacing between requests to the same host.
	// Zero disables per-host pacing.
	CrawlDelay time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFile, when set, receives a rotating copy of the log.
	LogFile string

	// SaveHistory records the run and its pages in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string

	// ShowProgress renders a progress bar on stdout during batch runs.
	ShowProgress bool

	// ConfigFilePath is the path of the YAML configuration file, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Format:        DefaultFormat,
		Workers:       DefaultWorkers,
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RespectRobots: true,
		UserAgent:     DefaultUserAgent,
		Headers:       make(map[string]string),
		MaxBodySize:   DefaultMaxBodySize,
		LogLevel:      DefaultLogLevel,
		SaveHistory:   true,
		DBDir:         XDGDataDir(),
		ShowProgress:  true,
	}
}

// OutputPath returns the output file path: OutputName plus the format
// as extension.
func (c *Config) OutputPath() string {
	return c.OutputName + "." + strings.ToLower(c.Format)
}

// XDGDataDir returns the XDG data directory for webcrawler.
// On Linux: ~/.local/share/webcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the XDG state directory for webcrawler, the
// suggested home of log files.
// On Linux: ~/.local/state/webcrawler
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. It runs once after flag parsing, before any network
// activity, so that configuration mistakes never reach the scheduler.
func (c *Config) Validate() error {
	if c.URL == "" && c.InputFile == "" {
		return ErrNoTarget
	}
	if c.URL != "" && c.InputFile != "" {
		return ErrConflictingTargets
	}
	if strings.TrimSpace(c.OutputName) == "" {
		return ErrNoOutput
	}
	switch strings.ToLower(c.Format) {
	case "csv", "json":
	default:
		return ErrUnsupportedFormat
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}
