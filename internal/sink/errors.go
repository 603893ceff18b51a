package sink

import "errors"

var (
	// ErrFieldMismatch is returned when a record's field set differs from
	// the header established by the first record.
	ErrFieldMismatch = errors.New("record fields do not match header")

	// ErrUnsupportedFormat is returned for output formats other than csv and json.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrFinalized is returned by Append after Finalize.
	ErrFinalized = errors.New("sink already finalized")
)
