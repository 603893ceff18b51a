package model

// OutcomeKind discriminates the variants of FetchOutcome.
type OutcomeKind int

const (
	// OutcomeSuccess carries a response body ready for extraction.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable is a transient failure: network error, timeout, 5xx or 429.
	OutcomeRetryable
	// OutcomeFatal is a permanent failure such as a 404.
	OutcomeFatal
	// OutcomeDisallowed means robots.txt denied the fetch.
	OutcomeDisallowed
)

// String returns the outcome name used in log output.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeDisallowed:
		return "disallowed"
	default:
		return "unknown"
	}
}

// FetchOutcome is the classified result of one fetch attempt.
// Only the fields relevant to Kind are populated.
type FetchOutcome struct {
	Kind OutcomeKind

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// ContentType is the response Content-Type header (Success only).
	ContentType string

	// Body is the decoded response body (Success only).
	Body []byte

	// FinalURL is the URL after redirects (Success only).
	FinalURL string

	// Reason describes a Retryable or Fatal outcome.
	Reason string
}

// Success builds a successful outcome.
func Success(statusCode int, contentType string, body []byte, finalURL string) FetchOutcome {
	return FetchOutcome{
		Kind:        OutcomeSuccess,
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        body,
		FinalURL:    finalURL,
	}
}

// Retryable builds a transient failure outcome.
func Retryable(statusCode int, reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeRetryable, StatusCode: statusCode, Reason: reason}
}

// Fatal builds a permanent failure outcome.
func Fatal(statusCode int, reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeFatal, StatusCode: statusCode, Reason: reason}
}

// Disallowed builds the robots.txt denial outcome.
func Disallowed() FetchOutcome {
	return FetchOutcome{Kind: OutcomeDisallowed, Reason: "disallowed by robots.txt"}
}

// IsSuccess reports whether the outcome carries a body.
func (o FetchOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}
