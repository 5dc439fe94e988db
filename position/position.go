// Package position resolves named logo anchors to pixel offsets on a canvas.
package position

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// ErrUnknownAnchor is returned when an anchor name is not one of the nine
// supported positions.
var ErrUnknownAnchor = errors.New("unknown anchor")

// Anchor is one of nine named relative positions used to place an overlay
// on a canvas.
type Anchor string

const (
	TopLeft      Anchor = "top_left"
	TopCenter    Anchor = "top_center"
	TopRight     Anchor = "top_right"
	CenterLeft   Anchor = "center_left"
	Center       Anchor = "center"
	CenterRight  Anchor = "center_right"
	BottomLeft   Anchor = "bottom_left"
	BottomCenter Anchor = "bottom_center"
	BottomRight  Anchor = "bottom_right"
)

// fraction is the pair of relative coordinates an anchor maps to. Each axis
// is 0 (start), 0.5 (center) or 1 (end), interpolating placement between the
// canvas edges.
type fraction struct {
	x, y float32
}

// anchors maps each named anchor to its fractional coordinates.
var anchors = map[Anchor]fraction{
	TopLeft:      {0, 0},
	TopCenter:    {0.5, 0},
	TopRight:     {1, 0},
	CenterLeft:   {0, 0.5},
	Center:       {0.5, 0.5},
	CenterRight:  {1, 0.5},
	BottomLeft:   {0, 1},
	BottomCenter: {0.5, 1},
	BottomRight:  {1, 1},
}

// All returns the nine supported anchors in reading order.
func All() []Anchor {
	return []Anchor{
		TopLeft, TopCenter, TopRight,
		CenterLeft, Center, CenterRight,
		BottomLeft, BottomCenter, BottomRight,
	}
}

// Valid reports whether a is one of the nine supported anchors.
func (a Anchor) Valid() bool {
	_, ok := anchors[a]
	return ok
}

// Resolve computes the top-left pixel offset at which to place an overlay on
// a canvas.
//
// Arguments:
//   - canvas: The canvas dimensions in pixels.
//   - overlay: The overlay dimensions in pixels.
//   - anchor: One of the nine named anchors.
//   - margin: Non-negative pixel inset, applied only on axes touching an edge.
//
// Returns:
//   - image.Point: The top-left offset. May be negative or place the overlay
//     partially outside the canvas when the overlay is larger than the canvas
//     minus margins; that is accepted and resolved by clipping during the blend.
//   - error: ErrUnknownAnchor if the anchor is not recognized.
func Resolve(canvas, overlay image.Point, anchor Anchor, margin int) (image.Point, error) {
	f, ok := anchors[anchor]
	if !ok {
		return image.Point{}, errors.Wrapf(ErrUnknownAnchor, "%q", anchor)
	}
	return image.Pt(
		axisOffset(canvas.X, overlay.X, f.x, margin),
		axisOffset(canvas.Y, overlay.Y, f.y, margin),
	), nil
}

// axisOffset computes the offset along one axis. The margin shifts the
// overlay inward at the edges (f == 0 or 1) and has no effect at center.
func axisOffset(canvasDim, overlayDim int, f float32, margin int) int {
	off := int(math32.Round(float32(canvasDim-overlayDim) * f))
	switch f {
	case 0:
		off += margin
	case 1:
		off -= margin
	}
	return off
}
