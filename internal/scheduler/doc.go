// Package scheduler runs crawl tasks under a concurrency bound.
//
// Each input URL becomes one model.CrawlTask driven through its lifecycle
// by a single goroutine: robots check, fetch attempts separated by
// randomized exponential backoff, extraction. Results are handed to the
// caller from the goroutine that produced them, so they arrive in
// completion order rather than input order.
//
// A task that is disallowed, fails fatally or exhausts its attempts emits
// nothing and logs exactly one event saying why.
package scheduler
