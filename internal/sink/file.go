package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink is a format sink bound to a file it owns.
type FileSink struct {
	Sink

	path string

	closeOnce sync.Once
	file      *os.File
}

// Open creates (or truncates) path and returns a sink in the given format.
// Missing parent directories are created. The file is closed by Finalize.
func Open(path string, format Format) (*FileSink, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	var inner Sink
	switch format {
	case FormatCSV:
		inner = NewCSV(f)
	case FormatJSON:
		inner = NewJSON(f)
	}
	return &FileSink{Sink: inner, path: path, file: f}, nil
}

// Path returns the output file path.
func (s *FileSink) Path() string {
	return s.path
}

// Finalize completes the format framing, syncs and closes the file.
// Calling it again is a no-op.
func (s *FileSink) Finalize() error {
	var err error
	s.closeOnce.Do(func() {
		finalizeErr := s.Sink.Finalize()
		syncErr := s.file.Sync()
		closeErr := s.file.Close()
		err = errors.Join(finalizeErr, syncErr, closeErr)
	})
	return err
}
