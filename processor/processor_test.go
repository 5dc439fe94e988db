package processor

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logomaster/go-logomark/batch"
	"github.com/logomaster/go-logomark/composite"
	"github.com/logomaster/go-logomark/config"
	"github.com/logomaster/go-logomark/imageio"
	"github.com/logomaster/go-logomark/position"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeLogo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, imageio.Save(solid(40, 20, color.NRGBA{B: 255, A: 255}), path, imageio.SaveOptions{}))
	return path
}

func TestApplyRequiresLogo(t *testing.T) {
	p := New(config.Default())
	_, err := p.Apply(solid(100, 100, color.NRGBA{A: 255}), p.DefaultPlacement())
	assert.ErrorIs(t, err, ErrNoLogo)
	assert.False(t, p.HasLogo())
}

func TestLoadLogoKeepsPriorStateOnFailure(t *testing.T) {
	dir := t.TempDir()
	p := New(config.Default())
	logoPath := writeLogo(t, dir)
	require.NoError(t, p.LoadLogo(logoPath))
	require.True(t, p.HasLogo())

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("junk"), 0o644))
	err := p.LoadLogo(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, imageio.ErrDecode)
	assert.Equal(t, logoPath, p.LogoPath(), "failed load leaves the previous logo in place")
}

func TestDefaultPlacementMirrorsConfig(t *testing.T) {
	cfg := config.Default()
	pl := New(cfg).DefaultPlacement()
	assert.Equal(t, cfg.Logo.ScaleRatio, pl.ScaleRatio)
	assert.Equal(t, cfg.Logo.Opacity, pl.Opacity)
	assert.Equal(t, cfg.Logo.Margin, pl.Margin)
	assert.Equal(t, position.BottomRight, pl.Anchor)
	assert.Nil(t, pl.At)
}

func TestApplyToFile(t *testing.T) {
	dir := t.TempDir()
	p := New(config.Default())
	require.NoError(t, p.LoadLogo(writeLogo(t, dir)))

	src := filepath.Join(dir, "photo.png")
	require.NoError(t, imageio.Save(solid(200, 100, color.NRGBA{R: 30, A: 255}), src, imageio.SaveOptions{}))

	dest := filepath.Join(dir, "out", "photo_marked.jpg")
	require.NoError(t, p.ApplyToFile(src, dest, p.DefaultPlacement()))

	info, err := imageio.Probe(dest)
	require.NoError(t, err)
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 100, info.Height)
	assert.Equal(t, "jpeg", info.Format)
}

func TestPreview(t *testing.T) {
	p := New(config.Default())

	big := solid(800, 400, color.NRGBA{G: 200, A: 255})
	preview := p.Preview(big, 200, 200)
	assert.Equal(t, 200, preview.Bounds().Dx())
	assert.Equal(t, 100, preview.Bounds().Dy(), "aspect ratio preserved")

	small := solid(50, 50, color.NRGBA{G: 200, A: 255})
	assert.Equal(t, small.Bounds(), p.Preview(small, 200, 200).Bounds(), "small images pass through")
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	for _, name := range []string{"b.png", "a.jpg"} {
		require.NoError(t, imageio.Save(solid(8, 8, color.NRGBA{A: 255}), filepath.Join(dir, name), imageio.SaveOptions{}))
	}
	require.NoError(t, imageio.Save(solid(8, 8, color.NRGBA{A: 255}), filepath.Join(sub, "c.png"), imageio.SaveOptions{}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))

	p := New(config.Default())
	paths, err := p.ScanDirectory(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3, "recursive scan, non-images skipped")
	assert.True(t, sort.StringsAreSorted(paths))
}

func TestNewJobRunsThroughBatch(t *testing.T) {
	dir := t.TempDir()
	p := New(config.Default())
	require.NoError(t, p.LoadLogo(writeLogo(t, dir)))

	src := filepath.Join(dir, "in.png")
	require.NoError(t, imageio.Save(solid(100, 100, color.NRGBA{R: 10, A: 255}), src, imageio.SaveOptions{}))

	job, err := p.NewJob([]string{src}, filepath.Join(dir, "out"), p.DefaultPlacement())
	require.NoError(t, err)

	report, err := batch.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestNewJobRequiresLogo(t *testing.T) {
	_, err := New(config.Default()).NewJob(nil, t.TempDir(), composite.Placement{})
	assert.ErrorIs(t, err, ErrNoLogo)
}
