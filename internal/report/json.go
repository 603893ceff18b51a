package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/model"
)

// JSONWriter outputs run history as JSON for scripting.
type JSONWriter struct {
	baseWriter

	// indent is the per-level indentation. Empty means compact output.
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type jsonRun struct {
	ID         int64         `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Source     string        `json:"source"`
	OutputPath string        `json:"output_path"`
	Format     string        `json:"format"`
	Summary    model.Summary `json:"summary"`
}

type jsonPage struct {
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	ContentHash string    `json:"content_hash"`
	Titles      []string  `json:"titles"`
	Links       []string  `json:"links"`
	Images      []string  `json:"images"`
	Paragraphs  int       `json:"paragraphs"`
	Attempts    int       `json:"attempts"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type jsonFailure struct {
	URL        string    `json:"url"`
	State      string    `json:"state"`
	Attempts   int       `json:"attempts"`
	RecordedAt time.Time `json:"recorded_at"`
}

type jsonRunReport struct {
	jsonRun
	Pages    []jsonPage    `json:"pages"`
	Failures []jsonFailure `json:"failures"`
}

func toJSONRun(run database.Run) jsonRun {
	out := jsonRun{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		Source:     run.Source,
		OutputPath: run.OutputPath,
		Format:     run.Format,
		Summary:    run.Summary,
	}
	if run.Finished() {
		finished := run.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// WriteRuns writes the runs as a JSON array.
func (w *JSONWriter) WriteRuns(runs []database.Run) error {
	out := make([]jsonRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, toJSONRun(run))
	}
	return w.encode(out)
}

// WriteRun writes one run with its pages and failures as a JSON object.
func (w *JSONWriter) WriteRun(report RunReport) error {
	out := jsonRunReport{
		jsonRun:  toJSONRun(report.Run),
		Pages:    make([]jsonPage, 0, len(report.Pages)),
		Failures: make([]jsonFailure, 0, len(report.Failures)),
	}
	for _, p := range report.Pages {
		out.Pages = append(out.Pages, jsonPage{
			URL:         p.URL,
			StatusCode:  p.StatusCode,
			ContentHash: p.ContentHash,
			Titles:      nonNil(p.Titles),
			Links:       nonNil(p.Links),
			Images:      nonNil(p.Images),
			Paragraphs:  p.Paragraphs,
			Attempts:    p.Attempts,
			FetchedAt:   p.FetchedAt,
		})
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, jsonFailure{
			URL:        f.URL,
			State:      f.State,
			Attempts:   f.Attempts,
			RecordedAt: f.RecordedAt,
		})
	}
	return w.encode(out)
}

func (w *JSONWriter) encode(v any) error {
	enc := json.NewEncoder(w.output)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	return enc.Encode(v)
}
