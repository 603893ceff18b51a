// Package loader reads crawl input URLs from files.
package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/webcrawler/internal/engine"
	"github.com/nao1215/webcrawler/internal/log"
)

// urlColumn is the CSV column and JSON key holding a URL.
const urlColumn = "url"

var (
	// ErrNoURLColumn is returned for CSV files without a url column.
	ErrNoURLColumn = errors.New("no 'url' column found")

	// ErrUnsupportedJSON is returned for JSON that is neither a list nor
	// an object with a url key.
	ErrUnsupportedJSON = errors.New("json input must be a list of urls or an object with a 'url' key")
)

// Option configures Load.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that reports dropped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Load reads URLs from path. The format follows the extension:
//
//   - .csv: the "url" column of a file with a header row
//   - .json: a list of URL strings (or objects with a "url" key), or a
//     single object with a "url" key
//   - anything else: one URL per line; blank lines and lines starting
//     with # are ignored
//
// Invalid URLs are dropped with a log line and duplicates keep their
// first position.
func Load(path string, opts ...Option) ([]string, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read url file: %w", err)
	}

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		raw, err = fromCSV(data)
	case ".json":
		raw, err = fromJSON(data)
	default:
		raw, err = fromLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	urls := clean(raw, o.logger)
	o.logger.Info("loaded urls", "path", path, "valid", len(urls), "entries", len(raw))
	return urls, nil
}

func fromCSV(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoURLColumn
		}
		return nil, err
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), urlColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoURLColumn
	}

	var urls []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col < len(record) {
			urls = append(urls, record[col])
		}
	}
	return urls, nil
}

func fromJSON(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrUnsupportedJSON
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		urls := make([]string, 0, len(items))
		for _, item := range items {
			if u, ok := urlFromJSON(item); ok {
				urls = append(urls, u)
			}
		}
		return urls, nil
	case '{':
		u, ok := urlFromJSON(trimmed)
		if !ok {
			return nil, ErrUnsupportedJSON
		}
		return []string{u}, nil
	default:
		return nil, ErrUnsupportedJSON
	}
}

// urlFromJSON accepts a JSON string or an object with a string url field.
func urlFromJSON(item json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return s, true
	}
	var obj map[string]any
	if err := json.Unmarshal(item, &obj); err != nil {
		return "", false
	}
	s, ok := obj[urlColumn].(string)
	return s, ok
}

func fromLines(data []byte) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

// clean drops invalid URLs and duplicates, keeping first-seen order.
func clean(raw []string, logger *slog.Logger) []string {
	seen := make(map[string]struct{}, len(raw))
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if err := engine.ValidateURL(u); err != nil {
			logger.Warn("dropping invalid url", "url", u)
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
