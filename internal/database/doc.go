// Package database keeps the crawl history in a SQLite file.
//
// Each crawl invocation is a run. A run records the pages it produced
// (URL, status, SHA3 content hash, titles, links, images) and the URLs
// that ended without a result, together with the final summary. The
// history backs the `history` command and lets an interrupted run be
// inspected after the fact.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, opened with WAL
// journaling and a single connection.
package database
