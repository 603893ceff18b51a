// Package model defines the data structures shared by the crawl engine.
//
// This package contains the following main types:
//   - CrawlTask: one URL's fetch-and-extract attempt sequence
//   - FetchOutcome: the classified result of a single fetch attempt
//   - ExtractedContent: titles, paragraphs, links and images of a page
//   - CrawlResult: the unit handed to result sinks
//   - Summary: per-run counters reported by the scheduler and engine
//
// Models live in their own package so that the scheduler, sinks and the
// history database can share them without import cycles.
package model
