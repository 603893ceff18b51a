package sink

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/webcrawler/internal/model"
)

// Sink receives crawl results. Append may be called concurrently.
// Finalize completes the output and is safe to call more than once.
type Sink interface {
	Append(result model.CrawlResult) error
	Finalize() error
}

// Record is a named set of fields. model.ExtractedContent implements it.
type Record interface {
	Fields() []string
	Value(field string) (any, bool)
}

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// String returns the format name, which is also the file extension.
func (f Format) String() string {
	return string(f)
}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// MultiSink fans every result out to several sinks.
type MultiSink struct {
	mu    sync.Mutex
	sinks []Sink
}

// Multi creates a sink that appends to and finalizes all of sinks.
func Multi(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append appends result to every sink. A failing sink does not stop the
// others; all errors are returned joined.
func (m *MultiSink) Append(result model.CrawlResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finalize finalizes every sink.
func (m *MultiSink) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, s := range m.sinks {
		if err := s.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
