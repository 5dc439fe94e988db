// Command logomark stamps a logo onto batches of photographs.
//
// Inputs come from a directory, a ZIP archive, remote URLs, or any mix of
// the three; results land in an output directory or a fresh ZIP. Placement,
// scale, opacity and margin are configurable per run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/logomaster/go-logomark/archive"
	"github.com/logomaster/go-logomark/batch"
	"github.com/logomaster/go-logomark/config"
	"github.com/logomaster/go-logomark/fetch"
	"github.com/logomaster/go-logomark/position"
	"github.com/logomaster/go-logomark/processor"
)

func main() {
	var (
		logoPath   = flag.String("logo", "", "path to the logo image (required)")
		inputDir   = flag.String("in", "", "directory of images to process")
		inputZip   = flag.String("in-zip", "", "ZIP archive of images to process")
		inputURLs  = flag.String("urls", "", "comma-separated image URLs to download and process")
		outputDir  = flag.String("out", "output", "directory for the results")
		outputZip  = flag.String("out-zip", "", "pack results into this ZIP instead of leaving them in -out")
		outputExt  = flag.String("format", ".jpg", "output format extension (.jpg, .png, .bmp, .tiff)")
		configPath = flag.String("config", "", "optional YAML configuration file")
		anchorName = flag.String("anchor", "", "logo anchor (top_left ... bottom_right)")
		scale      = flag.Float64("scale", 0, "logo width as a fraction of the image width, in (0, 1]")
		opacity    = flag.Float64("opacity", -1, "logo opacity in [0, 1]")
		margin     = flag.Int("margin", -1, "margin from the image edges in pixels")
		quality    = flag.Int("quality", 0, "JPEG quality (1-100)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *logoPath == "" {
		fmt.Fprintln(os.Stderr, "logomark: -logo is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	applyFlagOverrides(&cfg, *anchorName, *scale, *opacity, *margin, *quality)
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runOptions{
		logoPath:  *logoPath,
		inputDir:  *inputDir,
		inputZip:  *inputZip,
		inputURLs: splitURLs(*inputURLs),
		outputDir: *outputDir,
		outputZip: *outputZip,
		outputExt: *outputExt,
	}); err != nil {
		fatal(err)
	}
}

type runOptions struct {
	logoPath  string
	inputDir  string
	inputZip  string
	inputURLs []string
	outputDir string
	outputZip string
	outputExt string
}

func run(ctx context.Context, cfg config.Config, opts runOptions) error {
	proc := processor.New(cfg)
	if err := proc.LoadLogo(opts.logoPath); err != nil {
		return err
	}

	inputs, cleanup, err := collectInputs(ctx, cfg, proc, opts)
	defer cleanup()
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input images found")
	}
	slog.Info("starting batch", "images", len(inputs), "anchor", cfg.Logo.Anchor,
		"scale", cfg.Logo.ScaleRatio, "opacity", cfg.Logo.Opacity)

	job, err := proc.NewJob(inputs, opts.outputDir, proc.DefaultPlacement())
	if err != nil {
		return err
	}
	job.OutputExt = opts.outputExt
	job.ZipPath = opts.outputZip
	job.OnProgress = func(u batch.Update) {
		if u.Err != nil {
			slog.Error("failed", "image", u.Path, "progress",
				fmt.Sprintf("%d/%d", u.Index+1, u.Total), "error", u.Err)
			return
		}
		slog.Info("processed", "image", u.Path, "progress",
			fmt.Sprintf("%d/%d", u.Index+1, u.Total))
	}

	report, err := batch.Process(ctx, job)
	if err != nil {
		return err
	}

	fmt.Printf("done: %d succeeded, %d failed\n", report.Succeeded, report.Failed)
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Printf("  failed: %s: %v\n", res.SourcePath, res.Err)
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", report.Failed, len(report.Results))
	}
	return nil
}

// collectInputs gathers image paths from the directory, archive and URL
// sources. Remote and archived images land in a scratch directory that the
// returned cleanup removes.
func collectInputs(ctx context.Context, cfg config.Config, proc *processor.Processor, opts runOptions) ([]string, func(), error) {
	var inputs []string
	cleanup := func() {}

	if opts.inputDir != "" {
		paths, err := proc.ScanDirectory(opts.inputDir)
		if err != nil {
			return nil, cleanup, err
		}
		inputs = append(inputs, paths...)
	}

	if opts.inputZip != "" || len(opts.inputURLs) > 0 {
		scratch, err := os.MkdirTemp("", "logomark-*")
		if err != nil {
			return nil, cleanup, fmt.Errorf("scratch dir: %w", err)
		}
		cleanup = func() { os.RemoveAll(scratch) }

		if opts.inputZip != "" {
			extracted, err := archive.ExtractImages(opts.inputZip, scratch)
			if err != nil {
				return inputs, cleanup, err
			}
			inputs = append(inputs, extracted...)
		}

		if len(opts.inputURLs) > 0 {
			fetchOpts := []fetch.Option{
				fetch.WithTimeout(cfg.Network.Timeout()),
				fetch.WithMaxBytes(cfg.Network.MaxBytes),
				fetch.WithUserAgent(cfg.Network.UserAgent),
				fetch.WithWorkers(cfg.Network.Workers),
			}
			if cfg.Network.RequestsPerS > 0 {
				fetchOpts = append(fetchOpts, fetch.WithRateLimit(cfg.Network.RequestsPerS))
			}
			fetcher := fetch.New(fetchOpts...)
			for _, res := range fetcher.FetchAll(ctx, opts.inputURLs, scratch) {
				if res.Err != nil {
					slog.Error("download failed", "url", res.URL, "error", res.Err)
					continue
				}
				inputs = append(inputs, res.Path)
			}
		}
	}

	return inputs, cleanup, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyFlagOverrides lays explicitly provided flags over the configuration.
// Sentinel defaults mark the flags the user left untouched.
func applyFlagOverrides(cfg *config.Config, anchor string, scale, opacity float64, margin, quality int) {
	if anchor != "" {
		cfg.Logo.Anchor = position.Anchor(anchor)
	}
	if scale > 0 {
		cfg.Logo.ScaleRatio = scale
	}
	if opacity >= 0 {
		cfg.Logo.Opacity = opacity
	}
	if margin >= 0 {
		cfg.Logo.Margin = margin
	}
	if quality > 0 {
		cfg.Image.JPEGQuality = quality
	}
}

func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "logomark: %v\n", err)
	os.Exit(1)
}
