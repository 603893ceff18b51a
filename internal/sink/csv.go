package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/nao1215/webcrawler/internal/model"
)

// CSVSink writes one row per record under a header fixed by the first record.
type CSVSink struct {
	mu        sync.Mutex
	w         *csv.Writer
	header    []string
	finalized bool
}

// NewCSV creates a CSV sink writing to w.
func NewCSV(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Append writes result's extracted content as one row.
func (s *CSVSink) Append(result model.CrawlResult) error {
	return s.WriteRecord(result.ExtractedContent)
}

// WriteRecord writes one row. The first call writes the header; later
// records with a different field set fail with ErrFieldMismatch and
// leave the output untouched.
func (s *CSVSink) WriteRecord(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrFinalized
	}

	fields := rec.Fields()
	if s.header == nil {
		if err := s.w.Write(fields); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		s.header = slices.Clone(fields)
	} else if !slices.Equal(s.header, fields) {
		return fmt.Errorf("%w: expected %v, got %v", ErrFieldMismatch, s.header, fields)
	}

	row := make([]string, len(fields))
	for i, field := range fields {
		v, _ := rec.Value(field)
		row[i] = formatCell(v)
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

// Finalize flushes buffered output.
func (s *CSVSink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}
	s.finalized = true
	s.w.Flush()
	return s.w.Error()
}

// formatCell renders a field value. Sequences use the list literal form
// ['a', 'b'] so existing consumers of the CSV keep working.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return listLiteral(val)
	default:
		return fmt.Sprint(val)
	}
}

func listLiteral(items []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteItem(item))
	}
	b.WriteByte(']')
	return b.String()
}

// quoteItem quotes s with single quotes, or double quotes when s contains
// a single quote and no double quote.
func quoteItem(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
