// Package composite overlays a logo onto a base image with configurable
// scale, opacity and placement.
package composite

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/logomaster/go-logomark/position"
)

var (
	// ErrScaleRange is returned when the scale ratio is outside (0, 1].
	ErrScaleRange = errors.New("scale ratio out of range (0, 1]")
	// ErrEmptyOverlay is returned when the overlay image has no pixels.
	ErrEmptyOverlay = errors.New("overlay image is empty")
	// ErrPlacementConflict is returned when a placement carries both an
	// anchor and an explicit offset, or neither.
	ErrPlacementConflict = errors.New("placement needs exactly one of anchor or offset")
)

// Placement bundles the parameters of one composite operation. Position is
// given either by Anchor or by At; the two are mutually exclusive.
type Placement struct {
	// ScaleRatio is the fraction of the base image width the resized
	// overlay should occupy. Valid range (0, 1].
	ScaleRatio float64
	// Opacity scales the overlay's alpha channel. Values outside [0, 1]
	// are clamped; they come straight from a continuous UI control.
	Opacity float64
	// Margin is the pixel inset applied at edge anchors. Ignored when an
	// explicit offset is used.
	Margin int
	// Anchor names one of the nine relative positions.
	Anchor position.Anchor
	// At places the overlay's top-left corner at an absolute pixel offset.
	At *image.Point
}

// Anchored returns a Placement positioned by a named anchor.
func Anchored(anchor position.Anchor, scale, opacity float64, margin int) Placement {
	return Placement{ScaleRatio: scale, Opacity: opacity, Margin: margin, Anchor: anchor}
}

// FixedAt returns a Placement positioned at an explicit pixel offset.
func FixedAt(at image.Point, scale, opacity float64) Placement {
	return Placement{ScaleRatio: scale, Opacity: opacity, At: &at}
}

// Apply composites overlay onto base according to p and returns the result
// as a new image. Neither input is modified.
//
// The overlay is resized to p.ScaleRatio of the base width preserving its
// aspect ratio (Lanczos resampling), its alpha is scaled by p.Opacity, and
// it is alpha-blended over a copy of base at the resolved offset. Overlay
// pixels falling outside the base bounds are clipped silently.
//
// Arguments:
//   - base: The canvas being watermarked.
//   - overlay: The logo image.
//   - p: Scale, opacity and position parameters.
//
// Returns:
//   - *image.NRGBA: A new canvas with the same dimensions as base.
//   - error: ErrScaleRange, ErrEmptyOverlay, ErrPlacementConflict or a
//     position resolution error.
func Apply(base, overlay image.Image, p Placement) (*image.NRGBA, error) {
	if p.ScaleRatio <= 0 || p.ScaleRatio > 1 {
		return nil, errors.Wrapf(ErrScaleRange, "got %v", p.ScaleRatio)
	}
	if overlay == nil || overlay.Bounds().Empty() {
		return nil, ErrEmptyOverlay
	}
	if (p.At == nil) == (p.Anchor == "") {
		return nil, ErrPlacementConflict
	}

	baseBounds := base.Bounds()
	mark := scaleToWidth(overlay, int(math.Round(float64(baseBounds.Dx())*p.ScaleRatio)))
	markSize := mark.Bounds().Size()

	var offset image.Point
	if p.At != nil {
		offset = *p.At
	} else {
		var err error
		offset, err = position.Resolve(baseBounds.Size(), markSize, p.Anchor, p.Margin)
		if err != nil {
			return nil, err
		}
	}

	// Work on a copy; the caller keeps the original.
	out := image.NewNRGBA(image.Rect(0, 0, baseBounds.Dx(), baseBounds.Dy()))
	draw.Draw(out, out.Bounds(), base, baseBounds.Min, draw.Src)

	target := image.Rectangle{Min: offset, Max: offset.Add(markSize)}
	mask := opacityMask(p.Opacity)
	draw.DrawMask(out, target, mark, mark.Bounds().Min, mask, image.Point{}, draw.Over)
	return out, nil
}

// scaleToWidth resizes img to the given width, deriving the height from the
// original aspect ratio. Lanczos is used so logo edges stay clean.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width == b.Dx() {
		return img
	}
	height := int(math.Round(float64(width) * float64(b.Dy()) / float64(b.Dx())))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// opacityMask returns the blend mask for the given opacity. A nil mask means
// full opacity, keeping the overlay's native alpha untouched. Out-of-range
// values are clamped.
func opacityMask(opacity float64) image.Image {
	if opacity >= 1 {
		return nil
	}
	if opacity < 0 {
		opacity = 0
	}
	// The uniform mask multiplies the overlay's per-pixel alpha during the
	// blend; it never raises alpha above the original.
	return image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
}
