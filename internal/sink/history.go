package sink

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
)

// PageRecorder persists one crawled page of a run.
type PageRecorder interface {
	RecordPage(ctx context.Context, runID int64, result model.CrawlResult) error
}

// HistorySink records every result of a run in the crawl history.
//
// Recording is best effort: a failed write is logged and counted, never
// returned, so it does not count against the run's output.
type HistorySink struct {
	ctx      context.Context //nolint:containedctx // records outlive individual Append calls
	recorder PageRecorder
	runID    int64
	logger   *slog.Logger
	failures atomic.Int64
}

// NewHistory creates a sink that records results under runID. A nil
// logger discards failure reports.
func NewHistory(ctx context.Context, recorder PageRecorder, runID int64, logger *slog.Logger) *HistorySink {
	if logger == nil {
		logger = log.Discard()
	}
	return &HistorySink{
		ctx:      context.WithoutCancel(ctx),
		recorder: recorder,
		runID:    runID,
		logger:   logger,
	}
}

// Append records result. The recorder serializes its own writes.
func (h *HistorySink) Append(result model.CrawlResult) error {
	if err := h.recorder.RecordPage(h.ctx, h.runID, result); err != nil {
		h.failures.Add(1)
		h.logger.Warn("failed to record page in history",
			"run_id", h.runID,
			"url", result.URL,
			"error", err,
		)
	}
	return nil
}

// Failures returns how many results could not be recorded.
func (h *HistorySink) Failures() int {
	return int(h.failures.Load())
}

// Finalize is a no-op; the run itself is closed by whoever started it.
func (h *HistorySink) Finalize() error {
	return nil
}
