package composite

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logomaster/go-logomark/position"
)

// solid builds a w x h image filled with one color.
func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func clone(img *image.NRGBA) *image.NRGBA {
	cp := image.NewNRGBA(img.Rect)
	copy(cp.Pix, img.Pix)
	return cp
}

func TestApplyScaleRatioRejected(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(10, 10, color.NRGBA{B: 255, A: 255})

	for _, scale := range []float64{0, -0.5, 1.01, 2} {
		_, err := Apply(base, logo, Anchored(position.Center, scale, 1, 0))
		require.Error(t, err, "scale %v should be rejected", scale)
		assert.ErrorIs(t, err, ErrScaleRange)
	}

	_, err := Apply(base, logo, Anchored(position.Center, 1, 1, 0))
	assert.NoError(t, err, "scale 1.0 is the upper bound of the valid range")
}

func TestApplyEmptyOverlay(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})

	_, err := Apply(base, nil, Anchored(position.Center, 0.5, 1, 0))
	assert.ErrorIs(t, err, ErrEmptyOverlay)

	_, err = Apply(base, image.NewNRGBA(image.Rect(0, 0, 0, 0)), Anchored(position.Center, 0.5, 1, 0))
	assert.ErrorIs(t, err, ErrEmptyOverlay)
}

func TestApplyPlacementConflict(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(10, 10, color.NRGBA{B: 255, A: 255})

	// Neither anchor nor offset.
	_, err := Apply(base, logo, Placement{ScaleRatio: 0.1, Opacity: 1})
	assert.ErrorIs(t, err, ErrPlacementConflict)

	// Both at once.
	at := image.Pt(5, 5)
	_, err = Apply(base, logo, Placement{ScaleRatio: 0.1, Opacity: 1, Anchor: position.Center, At: &at})
	assert.ErrorIs(t, err, ErrPlacementConflict)
}

func TestApplyOpaqueLogoReplacesPixels(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(50, 50, color.NRGBA{B: 255, A: 255})

	// Scale 0.1 of a 100px base: logo lands as 10x10 at the top-left corner.
	out, err := Apply(base, logo, Anchored(position.TopLeft, 0.1, 1, 0))
	require.NoError(t, err)
	require.Equal(t, base.Bounds(), out.Bounds(), "output keeps the base dimensions")

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(5, 5), "inside the logo")
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(50, 50), "outside the logo")
}

func TestApplyInputsUnmodified(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(40, 40, color.NRGBA{B: 255, A: 255})
	baseBefore := clone(base)
	logoBefore := clone(logo)

	_, err := Apply(base, logo, Anchored(position.BottomRight, 0.3, 0.5, 4))
	require.NoError(t, err)
	assert.Equal(t, baseBefore.Pix, base.Pix, "base must not be mutated")
	assert.Equal(t, logoBefore.Pix, logo.Pix, "overlay must not be mutated")
}

func TestApplyOpacityFullMatchesNativeAlpha(t *testing.T) {
	base := solid(80, 80, color.NRGBA{R: 200, G: 100, A: 255})
	logo := solid(40, 40, color.NRGBA{B: 255, A: 128})

	full, err := Apply(base, logo, Anchored(position.TopLeft, 0.5, 1, 0))
	require.NoError(t, err)
	over, err := Apply(base, logo, Anchored(position.TopLeft, 0.5, 1.7, 0))
	require.NoError(t, err)

	assert.Equal(t, full.Pix, over.Pix, "opacity above 1 clamps to a native-alpha blend")
}

func TestApplyOpacityZeroLeavesBaseUntouched(t *testing.T) {
	base := solid(80, 80, color.NRGBA{R: 200, G: 100, A: 255})
	logo := solid(40, 40, color.NRGBA{B: 255, A: 255})

	out, err := Apply(base, logo, Anchored(position.Center, 0.5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, base.Pix, out.Pix, "opacity 0 blends nothing")

	out, err = Apply(base, logo, Anchored(position.Center, 0.5, -3, 0))
	require.NoError(t, err)
	assert.Equal(t, base.Pix, out.Pix, "negative opacity clamps to 0")
}

func TestApplyOpacityScalesAlpha(t *testing.T) {
	base := solid(80, 80, color.NRGBA{A: 255})
	logo := solid(40, 40, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := Apply(base, logo, Anchored(position.TopLeft, 0.5, 0.5, 0))
	require.NoError(t, err)

	// White at ~50% alpha over black: channels land near 127.
	px := out.NRGBAAt(10, 10)
	assert.InDelta(t, 127, int(px.R), 2, "red should be half blended")
	assert.InDelta(t, 127, int(px.G), 2)
	assert.InDelta(t, 127, int(px.B), 2)
	assert.Equal(t, uint8(255), px.A, "opaque base stays opaque")
}

// Applying the same placement twice keeps changing pixels whenever the
// overlay is translucent; compositing is not idempotent.
func TestApplyNotIdempotent(t *testing.T) {
	base := solid(80, 80, color.NRGBA{A: 255})
	logo := solid(40, 40, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	p := Anchored(position.TopLeft, 0.5, 0.5, 0)

	once, err := Apply(base, logo, p)
	require.NoError(t, err)
	twice, err := Apply(once, logo, p)
	require.NoError(t, err)

	assert.NotEqual(t, once.Pix, twice.Pix, "a second application must change pixels again")
	assert.Greater(t, twice.NRGBAAt(10, 10).R, once.NRGBAAt(10, 10).R,
		"each pass pushes the blend further toward the overlay color")
}

func TestApplyEndToEndScenario(t *testing.T) {
	// Base 1000x800, overlay 200x100, anchor bottom_right, scale 0.2,
	// opacity 0.8, margin 20: the resized overlay keeps its 200px width and
	// lands with its top-left corner at (780, 680).
	base := solid(1000, 800, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	logo := solid(200, 100, color.NRGBA{R: 250, G: 250, B: 250, A: 255})

	out, err := Apply(base, logo, Anchored(position.BottomRight, 0.2, 0.8, 20))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1000, 800), out.Bounds())

	// Just inside the placed overlay.
	inside := out.NRGBAAt(781, 681)
	assert.Greater(t, inside.R, uint8(150), "overlay pixel should be blended in at 80%% alpha")
	assert.Less(t, inside.R, uint8(250), "80%% opacity must not fully replace the base")

	// Just outside the placed overlay.
	assert.Equal(t, color.NRGBA{R: 10, G: 10, B: 10, A: 255}, out.NRGBAAt(779, 679))
	assert.Equal(t, color.NRGBA{R: 10, G: 10, B: 10, A: 255}, out.NRGBAAt(779, 750))

	// Far corner of the overlay region, margin away from the canvas edge.
	assert.NotEqual(t, uint8(10), out.NRGBAAt(979, 779).R)
	assert.Equal(t, uint8(10), out.NRGBAAt(981, 781).R, "margin strip stays clean")
}

func TestApplyExplicitOffsetAndClipping(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(50, 50, color.NRGBA{B: 255, A: 255})

	// Place a 50x50 logo (scale 0.5) hanging off the bottom-right corner.
	out, err := Apply(base, logo, FixedAt(image.Pt(80, 80), 0.5, 1))
	require.NoError(t, err)
	require.Equal(t, base.Bounds(), out.Bounds(), "clipping never grows the canvas")

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(90, 90), "visible part of the logo")
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(70, 70), "outside the logo")
}

func TestApplyNegativeOffsetClips(t *testing.T) {
	base := solid(100, 100, color.NRGBA{R: 255, A: 255})
	logo := solid(50, 50, color.NRGBA{B: 255, A: 255})

	out, err := Apply(base, logo, FixedAt(image.Pt(-25, -25), 0.5, 1))
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, out.NRGBAAt(10, 10), "remaining quadrant of the logo")
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(40, 40))
}

func TestApplyAspectRatioPreserved(t *testing.T) {
	// A 200x100 overlay scaled to width 120 must come out 120x60. Verify via
	// the blended footprint on a contrasting base.
	base := solid(400, 400, color.NRGBA{A: 255})
	logo := solid(200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := Apply(base, logo, FixedAt(image.Pt(0, 0), 0.3, 1))
	require.NoError(t, err)

	assert.Equal(t, uint8(255), out.NRGBAAt(119, 59).R, "inside 120x60 footprint")
	assert.Equal(t, uint8(0), out.NRGBAAt(121, 59).R, "right of footprint")
	assert.Equal(t, uint8(0), out.NRGBAAt(119, 61).R, "below footprint")
}
