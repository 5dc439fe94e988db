// Package fetch downloads remote images into a scratch directory.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNetwork is returned for timeouts, transport failures and non-2xx
// responses.
var ErrNetwork = errors.New("network fetch failed")

const (
	// DefaultTimeout is the conventional per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes caps a single download at 100 MiB.
	DefaultMaxBytes = 100 << 20
	// DefaultUserAgent identifies the application to remote servers.
	DefaultUserAgent = "LogoMark/2.0"
)

// Fetcher downloads files over HTTP with a size cap and polite pacing.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
	workers   int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// WithMaxBytes overrides the per-download size cap.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithRateLimit paces bulk downloads at n requests per second.
func WithRateLimit(n float64) Option {
	return func(f *Fetcher) { f.limiter = rate.NewLimiter(rate.Limit(n), 1) }
}

// WithWorkers sets how many downloads FetchAll runs concurrently.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// New returns a Fetcher with the 30-second timeout convention and the
// default size cap.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
		workers:   4,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url into destDir and returns the local file path. The
// file gets a unique name so concurrent downloads never collide; callers
// own the scratch directory and remove it when done.
//
// Arguments:
//   - ctx: Cancels the request.
//   - url: The remote image URL.
//   - destDir: Caller-designated scratch directory; created if missing.
//
// Returns:
//   - string: Path of the downloaded file.
//   - error: ErrNetwork on timeout, transport failure, non-2xx status or
//     an oversized body.
func (f *Fetcher) Fetch(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "%s: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "%s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(ErrNetwork, "%s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > 0 && resp.ContentLength > f.maxBytes {
		return "", errors.Wrapf(ErrNetwork, "%s: %d bytes exceeds limit", url, resp.ContentLength)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrapf(ErrNetwork, "scratch dir %s: %v", destDir, err)
	}
	dest := filepath.Join(destDir, scratchName(url))

	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "create %s: %v", dest, err)
	}
	defer out.Close()

	// Read one byte past the cap so an unreported oversized body still fails.
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		os.Remove(dest)
		return "", errors.Wrapf(ErrNetwork, "%s: %v", url, err)
	}
	if n > f.maxBytes {
		os.Remove(dest)
		return "", errors.Wrapf(ErrNetwork, "%s: body exceeds %d bytes", url, f.maxBytes)
	}

	slog.Info("downloaded", "url", url, "path", dest, "bytes", n)
	return dest, nil
}

// Result is the outcome of one bulk download item.
type Result struct {
	URL  string
	Path string
	Err  error
}

// FetchAll downloads every URL into destDir with bounded concurrency,
// recording per-URL outcomes. A failed URL never aborts the rest; the
// returned results follow the input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, destDir string) []Result {
	results := make([]Result, len(urls))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					mu.Lock()
					results[i] = Result{URL: url, Err: errors.Wrap(ErrNetwork, err.Error())}
					mu.Unlock()
					return nil
				}
			}
			p, err := f.Fetch(ctx, url, destDir)
			mu.Lock()
			results[i] = Result{URL: url, Path: p, Err: err}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// scratchName derives a collision-free local filename for a URL, keeping
// the original extension when it looks like an image.
func scratchName(url string) string {
	ext := strings.ToLower(path.Ext(path.Base(url)))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif":
	default:
		ext = ".jpg"
	}
	return uuid.NewString() + ext
}
