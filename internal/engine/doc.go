// Package engine orchestrates a crawl run: it validates the input URLs,
// hands the valid ones to the scheduler and streams every result into the
// sink. The sink is finalized on every exit path, including cancellation,
// so a JSON array is always closed when the process shuts down cleanly.
package engine
