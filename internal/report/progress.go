package report

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// ProgressBar shows how many tasks of a run have finished.
// Update is safe for concurrent use.
type ProgressBar struct {
	pw      progress.Writer
	tracker *progress.Tracker

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewProgressBar creates a bar that renders to out once the first update arrives.
func NewProgressBar(out io.Writer, message string) *ProgressBar {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true

	tracker := &progress.Tracker{
		Message: message,
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(tracker)

	return &ProgressBar{pw: pw, tracker: tracker}
}

// Update records that done of total tasks have finished.
func (b *ProgressBar) Update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.tracker.UpdateTotal(int64(total))
	b.tracker.SetValue(int64(done))
	if !b.started {
		b.started = true
		go b.pw.Render()
	}
}

// Done returns the last reported number of finished tasks.
func (b *ProgressBar) Done() int {
	return int(b.tracker.Value())
}

// Stop marks the bar complete and waits briefly for the final frame.
func (b *ProgressBar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	if !b.started {
		return
	}

	b.tracker.MarkAsDone()
	deadline := time.Now().Add(time.Second)
	for !b.pw.IsRenderInProgress() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.pw.Stop()
	for b.pw.IsRenderInProgress() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
