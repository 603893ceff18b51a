package report

import (
	"io"

	"github.com/nao1215/webcrawler/internal/database"
)

// RunReport bundles a stored run with its pages and failures.
type RunReport struct {
	Run      database.Run
	Pages    []database.Page
	Failures []database.Failure
}

// Writer renders run history.
type Writer interface {
	// WriteRuns renders an overview of several runs.
	WriteRuns(runs []database.Run) error

	// WriteRun renders one run in detail.
	WriteRun(report RunReport) error
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// runStatus describes whether a run finished.
func runStatus(run database.Run) string {
	if run.Finished() {
		return "finished"
	}
	return "incomplete"
}

// truncateString shortens s to maxLen bytes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// orDash replaces an empty cell with "-".
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
