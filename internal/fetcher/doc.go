// Package fetcher performs single HTTP fetch attempts and classifies them
// for the retry loop.
//
// Fetch never returns an error. Every attempt ends in a model.FetchOutcome:
// Success with a UTF-8 body, Retryable for transient failures (network
// errors, timeouts, 5xx and 429) or Fatal for everything else. The retry
// loop itself lives in the scheduler; this package supplies the Backoff
// policy it sleeps on and the per-host rate limiter it waits on.
package fetcher
