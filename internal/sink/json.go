package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/webcrawler/internal/model"
)

// JSON array framing.
const (
	jsonOpen      = "[\n"
	jsonSeparator = ",\n"
	jsonClose     = "\n]\n"
	jsonEmpty     = "[]\n"
)

// JSONSink streams records as elements of one JSON array.
type JSONSink struct {
	mu        sync.Mutex
	w         io.Writer
	indent    string
	opened    bool
	finalized bool
}

// JSONOption configures a JSONSink.
type JSONOption func(*JSONSink)

// WithIndent sets the per-level indentation of each element. An empty
// string writes compact elements.
func WithIndent(indent string) JSONOption {
	return func(s *JSONSink) {
		s.indent = indent
	}
}

// NewJSON creates a JSON sink writing to w. Elements are indented with
// four spaces and non-ASCII text is written unescaped.
func NewJSON(w io.Writer, opts ...JSONOption) *JSONSink {
	s := &JSONSink{w: w, indent: "    "}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes result as the next array element.
func (s *JSONSink) Append(result model.CrawlResult) error {
	data, err := s.encode(normalize(result.ExtractedContent))
	if err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrFinalized
	}

	prefix := jsonSeparator
	if !s.opened {
		prefix = jsonOpen
	}
	buf := make([]byte, 0, len(prefix)+len(data))
	buf = append(buf, prefix...)
	buf = append(buf, data...)
	if _, err := s.w.Write(buf); err != nil {
		return fmt.Errorf("write json record: %w", err)
	}
	s.opened = true
	return nil
}

// Finalize closes the array. An array without elements is written as [].
func (s *JSONSink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}
	s.finalized = true

	closing := jsonClose
	if !s.opened {
		closing = jsonEmpty
	}
	if _, err := io.WriteString(s.w, closing); err != nil {
		return fmt.Errorf("close json array: %w", err)
	}
	return nil
}

func (s *JSONSink) encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", s.indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalize replaces nil sequences so they encode as [] instead of null.
func normalize(c model.ExtractedContent) model.ExtractedContent {
	for _, p := range []*[]string{&c.Titles, &c.Paragraphs, &c.Links, &c.Images} {
		if *p == nil {
			*p = []string{}
		}
	}
	return c
}
