// Package imageio is the codec boundary: decoding, encoding and format
// policy for every image the application touches.
package imageio

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrDecode is returned for unreadable or unsupported image data.
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when a result cannot be written.
	ErrEncode = errors.New("encode failed")
	// ErrUnsupportedFormat is returned for file extensions outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrFileTooLarge is returned when an input exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// inputExts is the set of extensions accepted for decoding.
var inputExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".tiff": true, ".tif": true,
}

// outputExts is the set of extensions accepted for encoding.
var outputExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tiff": true,
}

// opaqueExts marks output formats without an alpha channel; results are
// flattened onto white before encoding to them.
var opaqueExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".bmp": true,
}

// SupportedInput reports whether path has a decodable image extension.
func SupportedInput(path string) bool {
	return inputExts[strings.ToLower(filepath.Ext(path))]
}

// SupportedOutput reports whether path has an encodable image extension.
func SupportedOutput(path string) bool {
	return outputExts[strings.ToLower(filepath.Ext(path))]
}

// Limits bounds what Load will accept. Zero values disable the check.
type Limits struct {
	// MaxFileBytes caps the on-disk file size.
	MaxFileBytes int64
	// MaxWidth and MaxHeight cap the pixel dimensions; larger images are
	// downscaled to fit, preserving aspect ratio.
	MaxWidth  int
	MaxHeight int
}

// Load reads and decodes the image at path, enforcing the extension gate
// and limits.
//
// Arguments:
//   - path: The image file to read.
//   - lim: Size limits; oversized dimensions downscale rather than fail.
//
// Returns:
//   - image.Image: The decoded (possibly downscaled) image.
//   - error: ErrUnsupportedFormat, ErrFileTooLarge or ErrDecode.
func Load(path string, lim Limits) (image.Image, error) {
	if !SupportedInput(path) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
	if lim.MaxFileBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "stat %s: %v", path, err)
		}
		if info.Size() > lim.MaxFileBytes {
			return nil, errors.Wrapf(ErrFileTooLarge, "%s: %d bytes", path, info.Size())
		}
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%s: %v", path, err)
	}

	if lim.MaxWidth > 0 && lim.MaxHeight > 0 {
		b := img.Bounds()
		if b.Dx() > lim.MaxWidth || b.Dy() > lim.MaxHeight {
			img = imaging.Fit(img, lim.MaxWidth, lim.MaxHeight, imaging.Lanczos)
		}
	}
	return img, nil
}

// SaveOptions tunes per-format encoder parameters.
type SaveOptions struct {
	// JPEGQuality in [1, 100]. Zero selects the package default of 95.
	JPEGQuality int
	// PNGCompression selects the png encoder compression level.
	PNGCompression png.CompressionLevel
}

// Save encodes img to path. The extension picks the format; formats without
// alpha support get the image flattened onto white first. Parent directories
// are created as needed.
func Save(img image.Image, path string, opts SaveOptions) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !outputExts[ext] {
		return errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(ErrEncode, "mkdir for %s: %v", path, err)
	}

	if opaqueExts[ext] {
		img = Flatten(img)
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 95
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(ErrEncode, "create %s: %v", path, err)
	}
	defer f.Close()

	switch ext {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
	case ".png":
		enc := png.Encoder{CompressionLevel: opts.PNGCompression}
		err = enc.Encode(f, img)
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if err != nil {
		return errors.Wrapf(ErrEncode, "%s: %v", path, err)
	}
	return nil
}

// Flatten composites img onto an opaque white background, discarding
// transparency. Needed before encoding to formats without an alpha channel.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// Info describes an image file without fully decoding it.
type Info struct {
	Path      string
	Width     int
	Height    int
	Format    string
	FileBytes int64
}

// Probe reads the header of the image at path and reports its dimensions
// and format.
func Probe(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, errors.Wrapf(ErrDecode, "stat %s: %v", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.Wrapf(ErrDecode, "open %s: %v", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, errors.Wrapf(ErrDecode, "%s: %v", path, err)
	}
	return Info{
		Path:      path,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		FileBytes: st.Size(),
	}, nil
}
