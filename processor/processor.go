// Package processor ties configuration, the loaded logo and the composite
// pipeline together for interactive and batch use.
package processor

import (
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/logomaster/go-logomark/batch"
	"github.com/logomaster/go-logomark/composite"
	"github.com/logomaster/go-logomark/config"
	"github.com/logomaster/go-logomark/imageio"
)

// ErrNoLogo is returned when an operation needs a logo and none is loaded.
var ErrNoLogo = errors.New("no logo loaded")

// Processor holds the loaded logo and applies it with the configured
// defaults. Interactive single-image operations surface errors immediately
// and leave prior state unchanged.
type Processor struct {
	cfg      config.Config
	logo     image.Image
	logoPath string
}

// New returns a Processor using cfg for its defaults and limits.
func New(cfg config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// LoadLogo decodes the logo at path, keeping its alpha channel. A failed
// load leaves any previously loaded logo in place.
func (p *Processor) LoadLogo(path string) error {
	logo, err := imageio.Load(path, p.limits())
	if err != nil {
		return err
	}
	p.logo = logo
	p.logoPath = path
	slog.Info("logo loaded", "path", path,
		"width", logo.Bounds().Dx(), "height", logo.Bounds().Dy())
	return nil
}

// HasLogo reports whether a logo is loaded.
func (p *Processor) HasLogo() bool { return p.logo != nil }

// LogoPath returns the path of the loaded logo, if any.
func (p *Processor) LogoPath() string { return p.logoPath }

// DefaultPlacement builds a Placement from the configured defaults.
func (p *Processor) DefaultPlacement() composite.Placement {
	return composite.Anchored(
		p.cfg.Logo.Anchor,
		p.cfg.Logo.ScaleRatio,
		p.cfg.Logo.Opacity,
		p.cfg.Logo.Margin,
	)
}

// Apply composites the loaded logo onto base. This is the single-image
// interactive operation; base is never modified.
func (p *Processor) Apply(base image.Image, pl composite.Placement) (*image.NRGBA, error) {
	if p.logo == nil {
		return nil, ErrNoLogo
	}
	return composite.Apply(base, p.logo, pl)
}

// ApplyToFile loads the image at src, applies the loaded logo and writes
// the result to dest.
func (p *Processor) ApplyToFile(src, dest string, pl composite.Placement) error {
	if p.logo == nil {
		return ErrNoLogo
	}
	base, err := imageio.Load(src, p.limits())
	if err != nil {
		return err
	}
	marked, err := composite.Apply(base, p.logo, pl)
	if err != nil {
		return errors.Wrapf(err, "apply logo to %s", src)
	}
	return imageio.Save(marked, dest, p.saveOptions())
}

// Preview downscales img to fit within maxW x maxH, preserving aspect
// ratio. Images already inside the box are returned as-is.
func (p *Processor) Preview(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

// ScanDirectory walks dir recursively and returns every supported image
// path in sorted order.
func (p *Processor) ScanDirectory(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imageio.SupportedInput(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(paths)
	slog.Info("directory scanned", "dir", dir, "images", len(paths))
	return paths, nil
}

// NewJob assembles a batch job over inputs with the loaded logo and the
// configured limits and encoder settings.
func (p *Processor) NewJob(inputs []string, outputDir string, pl composite.Placement) (batch.Job, error) {
	if p.logo == nil {
		return batch.Job{}, ErrNoLogo
	}
	return batch.Job{
		Logo:      p.logo,
		Placement: pl,
		Inputs:    inputs,
		OutputDir: outputDir,
		Limits:    p.limits(),
		Save:      p.saveOptions(),
	}, nil
}

func (p *Processor) limits() imageio.Limits {
	return imageio.Limits{
		MaxFileBytes: p.cfg.Image.MaxFileBytes,
		MaxWidth:     p.cfg.Image.MaxWidth,
		MaxHeight:    p.cfg.Image.MaxHeight,
	}
}

func (p *Processor) saveOptions() imageio.SaveOptions {
	return imageio.SaveOptions{
		JPEGQuality:    p.cfg.Image.JPEGQuality,
		PNGCompression: png.CompressionLevel(-p.cfg.Image.PNGCompression),
	}
}
