package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with
// errors.Is by callers that want to react to a specific problem.
var (
	// ErrNoTarget is returned when neither a URL nor an input file is given.
	ErrNoTarget = errors.New("no target specified: provide --url or --file")

	// ErrConflictingTargets is returned when both --url and --file are given.
	ErrConflictingTargets = errors.New("conflicting targets: --url and --file cannot be used together")

	// ErrNoOutput is returned when the output name is empty.
	ErrNoOutput = errors.New("no output specified: use --output")

	// ErrUnsupportedFormat is returned when the output format is not csv or json.
	ErrUnsupportedFormat = errors.New("unsupported output format: must be csv or json")

	// ErrInvalidWorkers is returned when the concurrency limit is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the per-attempt timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the attempt limit is below one.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be at least 1")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidLogLevel is returned for a log level other than debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn or error")
)
