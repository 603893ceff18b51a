// Package main provides the entry point for the webcrawler CLI.
//
// webcrawler fetches a list of web pages concurrently, honoring robots.txt,
// retrying transient failures with backoff, and writes the extracted
// titles, paragraphs, links and images to a CSV or JSON file.
//
// Usage:
//
//	webcrawler crawl --url https://example.com --output result
//	webcrawler crawl --file urls.txt --output result --format json
//
// See --help for all available options.
package main

// main is the entry point for webcrawler.
func main() {
	Execute()
}
