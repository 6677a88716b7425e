package export

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hdrFrame is a 2x1 frame: an over-bright pixel and a mid grey.
var hdrFrame = []float32{2, 0.5, -1, 1, 0.5, 0.5, 0.5, 1}

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "kaleido-20260304-050607.png", FileName(fixedNow(), FormatPNG))
	assert.Equal(t, "kaleido-20260304-050607.exr", FileName(fixedNow(), FormatEXR))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".EXR")
	require.NoError(t, err)
	assert.Equal(t, FormatEXR, f)
	f, err = ParseFormat("png")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	_, err = ParseFormat(".jpg")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSavePNGClamps(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	e := NewExporter(WithDirectory(dir), WithNow(fixedNow))

	path, err := e.Save(hdrFrame, 2, 1, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kaleido-20260304-050607.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(128*0x101), g)
	assert.Equal(t, uint32(0), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestSaveEXRKeepsHDR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.exr")
	e := NewExporter()

	got, err := e.Save(hdrFrame, 2, 1, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	img, err := exr.DecodeFile(path)
	require.NoError(t, err)
	r, g, b, a := img.RGBA(0, 0)
	assert.Equal(t, float32(2), r)
	assert.Equal(t, float32(0.5), g)
	assert.Equal(t, float32(-1), b)
	assert.Equal(t, float32(1), a)
}

func TestSaveRejectsBadInput(t *testing.T) {
	e := NewExporter(WithDirectory(t.TempDir()))
	_, err := e.Save(hdrFrame, 3, 1, "")
	assert.ErrorIs(t, err, ErrInvalidFrame)
	_, err = e.Save(hdrFrame, 2, 1, filepath.Join(t.TempDir(), "frame.jpg"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveUsesDefaultFormat(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(WithDirectory(dir), WithFormat(FormatEXR), WithNow(fixedNow))
	path, err := e.Save(hdrFrame, 2, 1, "")
	require.NoError(t, err)
	assert.Equal(t, ".exr", filepath.Ext(path))
	assert.Equal(t, FormatEXR, e.Format())
	assert.Equal(t, dir, e.Directory())
}
