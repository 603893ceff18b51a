package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/webcrawler/internal/database"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs run history as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRuns writes a table with one row per run.
func (w *MarkdownWriter) WriteRuns(runs []database.Run) error {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format(timeLayout),
			"`" + truncateString(run.Source, 40) + "`",
			strconv.Itoa(run.Summary.Succeeded),
			strconv.Itoa(run.Summary.Scheduled() - run.Summary.Succeeded),
			runStatus(run),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Source", "Succeeded", "Not Crawled", "Status"},
		Rows:   rows,
	})
	return md.Build()
}

// WriteRun writes the full report of one run.
func (w *MarkdownWriter) WriteRun(report RunReport) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report.Run)
	w.writeSummary(md, report.Run)
	w.writePages(md, report.Pages)
	w.writeFailures(md, report.Failures)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run database.Run) {
	md.H1(fmt.Sprintf("Crawl Run #%d", run.ID))
	md.PlainText("")

	finished := "-"
	if run.Finished() {
		finished = run.FinishedAt.Local().Format(timeLayout)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + orDash(run.Source) + "`"},
			{"Output", "`" + orDash(run.OutputPath) + "`"},
			{"Format", orDash(run.Format)},
			{"Started", run.StartedAt.Local().Format(timeLayout)},
			{"Finished", finished},
		},
	})
	md.PlainText("")

	if !run.Finished() {
		md.Warningf("This run did not finish. Counts cover only what was recorded before it stopped.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run database.Run) {
	s := run.Summary
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Input URLs", strconv.Itoa(s.Total)},
			{"Rejected", strconv.Itoa(s.Rejected)},
			{"Succeeded", strconv.Itoa(s.Succeeded)},
			{"Disallowed by robots.txt", strconv.Itoa(s.Disallowed)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Retries exhausted", strconv.Itoa(s.Exhausted)},
			{"Skipped", strconv.Itoa(s.Skipped)},
			{"Sink errors", strconv.Itoa(s.SinkErrors)},
		},
	})
	md.PlainText("")

	if s.Scheduled() > 0 {
		w.writePieChart(md, run)
	}
	w.writeAlert(md, run)
}

// writePieChart writes a mermaid pie chart of task outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, run database.Run) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Task Outcomes"),
		piechart.WithShowData(true),
	)

	s := run.Summary
	for _, slice := range []struct {
		label string
		count int
	}{
		{"Succeeded", s.Succeeded},
		{"Disallowed", s.Disallowed},
		{"Failed", s.Failed},
		{"Exhausted", s.Exhausted},
		{"Skipped", s.Skipped},
	} {
		if slice.count > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.count))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run database.Run) {
	s := run.Summary
	notCrawled := s.Scheduled() - s.Succeeded
	switch {
	case s.Scheduled() == 0:
		md.Note("No URL was scheduled in this run.")
	case s.Succeeded == 0:
		md.Cautionf("None of the %d scheduled URL(s) produced a result.", s.Scheduled())
	case s.SinkErrors > 0:
		md.Warningf("%d result(s) could not be written to the output.", s.SinkErrors)
	case notCrawled > 0:
		md.Importantf("%d of %d URL(s) produced no result.", notCrawled, s.Scheduled())
	default:
		md.Tip("Every scheduled URL was crawled.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []database.Page) {
	md.H2("Pages")
	md.PlainText("")

	if len(pages) == 0 {
		md.PlainText("No pages recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		title := "-"
		if len(p.Titles) > 0 {
			title = truncateString(p.Titles[0], 50)
		}
		rows = append(rows, []string{
			truncateString(p.URL, 60),
			strconv.Itoa(p.StatusCode),
			title,
			strconv.Itoa(len(p.Links)),
			strconv.Itoa(len(p.Images)),
			strconv.Itoa(p.Attempts),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Title", "Links", "Images", "Attempts"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, failures []database.Failure) {
	if len(failures) == 0 {
		return
	}

	md.H2("Not Crawled")
	md.PlainText("")

	items := make([]string, 0, len(failures))
	for _, f := range failures {
		items = append(items, fmt.Sprintf("`%s`: %s after %d attempt(s)", f.URL, f.State, f.Attempts))
	}
	md.BulletList(items...)
	md.PlainText("")
}
