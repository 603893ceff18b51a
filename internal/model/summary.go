package model

// Summary counts what happened to the URLs of one run.
// Every scheduled URL lands in exactly one of Succeeded, Disallowed,
// Failed, Exhausted or Skipped.
type Summary struct {
	// Total is the number of URLs handed to the engine.
	Total int `json:"total"`

	// Rejected is the number of URLs that failed validation or repeated an
	// earlier URL, and were never scheduled.
	Rejected int `json:"rejected"`

	// Succeeded is the number of URLs that produced a result.
	Succeeded int `json:"succeeded"`

	// Disallowed is the number of URLs denied by robots.txt.
	Disallowed int `json:"disallowed"`

	// Failed is the number of URLs that hit a fatal fetch outcome.
	Failed int `json:"failed"`

	// Exhausted is the number of URLs that ran out of retries.
	Exhausted int `json:"exhausted"`

	// Skipped is the number of URLs not started because the run was stopped.
	Skipped int `json:"skipped"`

	// SinkErrors is the number of results the output sink failed to write.
	SinkErrors int `json:"sink_errors"`
}

// Scheduled returns how many URLs reached the scheduler.
func (s Summary) Scheduled() int {
	return s.Succeeded + s.Disallowed + s.Failed + s.Exhausted + s.Skipped
}

// Written returns how many results reached the output. Side records such
// as the crawl history do not count here.
func (s Summary) Written() int {
	return s.Succeeded - s.SinkErrors
}

// Add merges other into s.
func (s *Summary) Add(other Summary) {
	s.Total += other.Total
	s.Rejected += other.Rejected
	s.Succeeded += other.Succeeded
	s.Disallowed += other.Disallowed
	s.Failed += other.Failed
	s.Exhausted += other.Exhausted
	s.Skipped += other.Skipped
	s.SinkErrors += other.SinkErrors
}
