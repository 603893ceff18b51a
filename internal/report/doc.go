// Package report renders stored crawl runs for humans and tools.
//
// Writers share the Writer interface:
//   - TableWriter: terminal tables built with go-pretty
//   - MarkdownWriter: a Markdown document with a mermaid pie chart
//   - JSONWriter: structured JSON for scripting
//
// The package also provides ProgressBar, the live progress display used by
// the crawl command.
package report
