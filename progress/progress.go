// Package progress tracks the advancement and timing of a batch run.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Tracker accumulates per-item outcomes and timings for one batch run. It is
// thread-safe so the background worker can record while the interactive side
// reads snapshots.
type Tracker struct {
	mu        sync.RWMutex
	total     int
	done      int
	failed    int
	startTime time.Time
	durations []time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	totalTime time.Duration
}

// NewTracker returns a Tracker for a run of total items.
func NewTracker(total int) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		durations: make([]time.Duration, 0, total),
	}
}

// Record registers the outcome of one processed item.
//
// Arguments:
//   - d: How long the item took.
//   - ok: Whether the item succeeded.
func (t *Tracker) Record(d time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	if !ok {
		t.failed++
	}
	t.durations = append(t.durations, d)
	t.totalTime += d
	if t.minTime == 0 || d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Total     int
	Done      int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	// AvgItem is the mean per-item duration; zero until an item completes.
	AvgItem time.Duration
	MinItem time.Duration
	MaxItem time.Duration
}

// Snapshot returns the current state of the run.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Total:     t.total,
		Done:      t.done,
		Succeeded: t.done - t.failed,
		Failed:    t.failed,
		Elapsed:   time.Since(t.startTime),
		MinItem:   t.minTime,
		MaxItem:   t.maxTime,
	}
	if t.done > 0 {
		s.AvgItem = t.totalTime / time.Duration(t.done)
	}
	return s
}

// LogSummary emits the final run summary through slog.
func (t *Tracker) LogSummary() {
	s := t.Snapshot()
	slog.Info("batch finished",
		"total", s.Total,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"elapsed", s.Elapsed.Round(time.Millisecond),
		"avg_item", s.AvgItem.Round(time.Millisecond),
	)
}
