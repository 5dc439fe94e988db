// Package batch applies a logo to whole sets of images, one at a time, with
// progress reporting and cooperative cancellation.
package batch

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/logomaster/go-logomark/archive"
	"github.com/logomaster/go-logomark/composite"
	"github.com/logomaster/go-logomark/imageio"
	"github.com/logomaster/go-logomark/progress"
)

// ErrBusy is returned when a Runner is asked to start while a run is still
// in flight.
var ErrBusy = errors.New("a batch run is already in progress")

// OutputSuffix is appended to each processed file's stem.
const OutputSuffix = "_with_logo"

// Update describes the state of one processed item, delivered to the
// caller's progress callback from the worker goroutine.
type Update struct {
	Index int
	Total int
	Path  string
	Err   error
}

// Job describes one batch run.
type Job struct {
	// Logo is the overlay applied to every input.
	Logo image.Image
	// Placement carries scale, opacity and position for every input.
	Placement composite.Placement
	// Inputs are processed in this exact order.
	Inputs []string
	// OutputDir receives the results (or the intermediate files when
	// ZipPath is set).
	OutputDir string
	// OutputExt selects the result format; defaults to ".jpg".
	OutputExt string
	// ZipPath, when set, packs the results into a ZIP and removes the
	// intermediate files afterwards.
	ZipPath string
	// Limits gates what Load accepts per input.
	Limits imageio.Limits
	// Save tunes the encoders.
	Save imageio.SaveOptions
	// OnProgress, if set, is called after every item. It runs on the
	// worker goroutine; callers bridge to their interactive thread.
	OnProgress func(Update)
}

// ItemResult is the outcome for a single input.
type ItemResult struct {
	SourcePath string
	OutputPath string
	Err        error
}

// Report summarizes a finished (or cancelled) run.
type Report struct {
	Results   []ItemResult
	Succeeded int
	Failed    int
	// Stats carries timing for the run.
	Stats progress.Snapshot
}

// Process runs the job synchronously. Per-image failures are recorded and
// the run continues with the next input; only cancellation stops it early.
//
// Arguments:
//   - ctx: Cancels the run at the next image boundary, never mid-composite.
//   - job: The run description.
//
// Returns:
//   - Report: Per-item outcomes plus success/failure counts, also for
//     cancelled runs.
//   - error: ctx.Err() when cancelled, an archive error when ZIP packing
//     fails, nil otherwise.
func Process(ctx context.Context, job Job) (Report, error) {
	ext := job.OutputExt
	if ext == "" {
		ext = ".jpg"
	}

	tracker := progress.NewTracker(len(job.Inputs))
	report := Report{}

	for i, src := range job.Inputs {
		if err := ctx.Err(); err != nil {
			report.Stats = tracker.Snapshot()
			return report, err
		}

		start := time.Now()
		outPath, err := processOne(src, job, ext)
		tracker.Record(time.Since(start), err == nil)

		res := ItemResult{SourcePath: src, OutputPath: outPath, Err: err}
		if err != nil {
			res.OutputPath = ""
			report.Failed++
			slog.Error("item failed", "source", src, "error", err)
		} else {
			report.Succeeded++
		}
		report.Results = append(report.Results, res)

		if job.OnProgress != nil {
			job.OnProgress(Update{Index: i, Total: len(job.Inputs), Path: src, Err: err})
		}
	}

	if job.ZipPath != "" {
		if err := packResults(&report, job.ZipPath); err != nil {
			report.Stats = tracker.Snapshot()
			return report, err
		}
	}

	report.Stats = tracker.Snapshot()
	tracker.LogSummary()
	return report, nil
}

// processOne loads, composites and saves a single input.
func processOne(src string, job Job, ext string) (string, error) {
	base, err := imageio.Load(src, job.Limits)
	if err != nil {
		return "", err
	}

	marked, err := composite.Apply(base, job.Logo, job.Placement)
	if err != nil {
		return "", errors.Wrapf(err, "apply logo to %s", src)
	}

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outPath := filepath.Join(job.OutputDir, stem+OutputSuffix+ext)
	if err := imageio.Save(marked, outPath, job.Save); err != nil {
		return "", err
	}
	return outPath, nil
}

// packResults zips the successful outputs and removes the intermediates.
func packResults(report *Report, zipPath string) error {
	var files []string
	for _, r := range report.Results {
		if r.Err == nil && r.OutputPath != "" {
			files = append(files, r.OutputPath)
		}
	}
	if err := archive.WriteImages(zipPath, files); err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			slog.Warn("remove intermediate", "path", f, "error", err)
		}
	}
	return nil
}

// Runner owns the single background worker the application is allowed to
// run. Overlapping runs are rejected rather than queued.
type Runner struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	report  Report
	err     error
}

// Start launches the job on a background goroutine. It returns ErrBusy if a
// previous run has not finished.
func (r *Runner) Start(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrBusy
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.done = make(chan struct{})

	go func() {
		report, err := Process(ctx, job)

		r.mu.Lock()
		r.report = report
		r.err = err
		r.running = false
		r.mu.Unlock()
		close(r.done)
	}()
	return nil
}

// Cancel requests cancellation; the run stops at the next image boundary.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Wait blocks until the current run finishes and returns its report. It is
// a no-op if no run was started.
func (r *Runner) Wait() (Report, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report, r.err
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
