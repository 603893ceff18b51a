package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// CrawlResult is what a completed task hands to the result sink.
// Sinks serialize the embedded ExtractedContent; the remaining fields
// are bookkeeping for the crawl history.
type CrawlResult struct {
	ExtractedContent

	// StatusCode is the HTTP status of the successful attempt.
	StatusCode int `json:"-"`

	// ContentHash is the hex SHA3-256 of the response body.
	ContentHash string `json:"-"`

	// FetchedAt is when the successful attempt completed.
	FetchedAt time.Time `json:"-"`

	// Attempts is how many attempts the task needed, at least 1.
	Attempts int `json:"-"`
}

// HashContent returns the hex SHA3-256 digest of body, or "" for an
// empty body.
func HashContent(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}
