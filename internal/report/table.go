package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/model"
)

// urlColumnWidth caps URL cells so tables fit a normal terminal.
const urlColumnWidth = 60

// TableWriter renders run history as terminal tables.
type TableWriter struct {
	baseWriter
	style table.Style
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithStyle sets the go-pretty table style. The default is table.StyleLight.
func WithStyle(style table.Style) TableWriterOption {
	return func(w *TableWriter) {
		w.style = style
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
		style:      table.StyleLight,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *TableWriter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w.output)
	t.SetStyle(w.style)
	if title != "" {
		t.SetTitle("%s", title)
	}
	return t
}

// WriteSummary writes the outcome counts of a run.
func (w *TableWriter) WriteSummary(s model.Summary) error {
	w.writeSummary(s)
	return nil
}

func (w *TableWriter) writeSummary(s model.Summary) {
	t := w.newTable("Summary")
	t.AppendHeader(table.Row{"Outcome", "Count"})
	t.AppendRows([]table.Row{
		{"Input URLs", s.Total},
		{"Rejected", s.Rejected},
		{"Succeeded", s.Succeeded},
		{"Disallowed", s.Disallowed},
		{"Failed", s.Failed},
		{"Exhausted", s.Exhausted},
		{"Skipped", s.Skipped},
		{"Sink errors", s.SinkErrors},
	})
	t.Render()
}

// WriteRuns writes one row per run, newest first as given.
func (w *TableWriter) WriteRuns(runs []database.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w.output, "No runs recorded.")
		return err
	}

	t := w.newTable("")
	t.AppendHeader(table.Row{"ID", "Started", "Source", "Format", "Total", "Succeeded", "Not Crawled", "Status"})
	for _, run := range runs {
		s := run.Summary
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Local().Format(timeLayout),
			truncateString(run.Source, 40),
			orDash(run.Format),
			s.Total,
			s.Succeeded,
			s.Scheduled() - s.Succeeded,
			runStatus(run),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Runs", len(runs)})
	t.Render()
	return nil
}

// WriteRun writes the run properties, its summary, its pages and its failures.
func (w *TableWriter) WriteRun(report RunReport) error {
	run := report.Run

	finished := "-"
	if run.Finished() {
		finished = run.FinishedAt.Local().Format(timeLayout)
	}
	info := w.newTable(fmt.Sprintf("Run #%d", run.ID))
	info.AppendRows([]table.Row{
		{"Source", orDash(run.Source)},
		{"Output", orDash(run.OutputPath)},
		{"Format", orDash(run.Format)},
		{"Started", run.StartedAt.Local().Format(timeLayout)},
		{"Finished", finished},
		{"Status", runStatus(run)},
	})
	info.Render()

	w.writeSummary(run.Summary)

	if len(report.Pages) > 0 {
		pages := w.newTable("Pages")
		pages.AppendHeader(table.Row{"URL", "Status", "Titles", "Links", "Images", "Paragraphs", "Attempts"})
		pages.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: urlColumnWidth},
		})
		for _, p := range report.Pages {
			pages.AppendRow(table.Row{
				p.URL, p.StatusCode, len(p.Titles), len(p.Links), len(p.Images), p.Paragraphs, p.Attempts,
			})
		}
		pages.Render()
	}

	if len(report.Failures) > 0 {
		failures := w.newTable("Not Crawled")
		failures.AppendHeader(table.Row{"URL", "State", "Attempts"})
		failures.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: urlColumnWidth},
		})
		for _, f := range report.Failures {
			failures.AppendRow(table.Row{f.URL, f.State, f.Attempts})
		}
		failures.Render()
	}
	return nil
}
