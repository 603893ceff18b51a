package engine

import "errors"

var (
	// ErrInvalidURL is returned for URLs without a scheme or host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrNoValidURLs is returned when validation leaves nothing to crawl.
	ErrNoValidURLs = errors.New("no valid urls to crawl")

	// ErrAlreadyRun is returned when an Engine is asked for a second run.
	ErrAlreadyRun = errors.New("engine already ran")
)
