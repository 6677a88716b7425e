// Package export writes single still frames captured from the renderer to disk, as 8-bit PNG or
// half-float EXR.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/mrjoshuak/go-openexr/exr"
)

var (
	// ErrUnsupportedFormat is returned for an unknown format name or file extension.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrInvalidFrame is returned when the pixel slice does not match the frame size.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Format is a still image file format.
type Format int

const (
	// FormatPNG writes 8-bit RGBA, clamping HDR values to [0, 1].
	FormatPNG Format = iota
	// FormatEXR writes half-float RGBA, preserving values above 1.
	FormatEXR
)

// String returns the file extension of the format without the dot.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatEXR:
		return "exr"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a format name or a file extension with or without the leading dot.
//
// Parameters:
//   - s: the format name, such as "png" or ".exr"
//
// Returns:
//   - Format: the parsed format
//   - error: ErrUnsupportedFormat if the name is not recognised
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return FormatPNG, nil
	case "exr":
		return FormatEXR, nil
	}
	return FormatPNG, fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
}

// FileName returns the timestamped export name for a frame captured at t.
//
// Parameters:
//   - t: the capture time
//   - f: the file format
//
// Returns:
//   - string: a name of the form kaleido-YYYYMMDD-HHMMSS.ext
func FileName(t time.Time, f Format) string {
	return fmt.Sprintf("kaleido-%s.%s", t.Format("20060102-150405"), f)
}

// exporter is the implementation of the Exporter interface.
type exporter struct {
	dir    string
	format Format
	now    func() time.Time
}

// Exporter saves captured frames.
type Exporter interface {
	// Save writes a frame to disk. An empty path writes a timestamped file in the export
	// directory using the default format; otherwise the format follows the path extension.
	//
	// Parameters:
	//   - pix: width*height*4 float32 RGBA values, top row first
	//   - width: the frame width in pixels
	//   - height: the frame height in pixels
	//   - path: the destination file, or empty
	//
	// Returns:
	//   - string: the path written
	//   - error: ErrInvalidFrame, ErrUnsupportedFormat or an encoding error
	Save(pix []float32, width, height int, path string) (string, error)

	// Directory returns the directory used for timestamped exports.
	Directory() string

	// Format returns the default format used for timestamped exports.
	Format() Format
}

var _ Exporter = &exporter{}

// NewExporter creates an exporter writing PNG files to the working directory unless configured
// otherwise.
//
// Parameters:
//   - options: functional options for exporter configuration
//
// Returns:
//   - Exporter: the exporter
func NewExporter(options ...ExporterBuilderOption) Exporter {
	e := &exporter{
		dir:    ".",
		format: FormatPNG,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *exporter) Directory() string {
	return e.dir
}

func (e *exporter) Format() Format {
	return e.format
}

func (e *exporter) Save(pix []float32, width, height int, path string) (string, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return "", fmt.Errorf("save %dx%d frame with %d values: %w", width, height, len(pix), ErrInvalidFrame)
	}

	format := e.format
	if path == "" {
		if err := os.MkdirAll(e.dir, 0o755); err != nil {
			return "", fmt.Errorf("create export directory: %w", err)
		}
		path = filepath.Join(e.dir, FileName(e.now(), format))
	} else {
		f, err := ParseFormat(filepath.Ext(path))
		if err != nil {
			return "", err
		}
		format = f
	}

	var err error
	switch format {
	case FormatEXR:
		err = writeEXR(path, pix, width, height)
	default:
		err = writePNG(path, pix, width, height)
	}
	if err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	log.Printf("[Export] saved %s (%dx%d)", path, width, height)
	return path, nil
}

func writePNG(path string, pix []float32, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			img.SetRGBA(x, y, color.RGBA{
				R: to8(pix[i]),
				G: to8(pix[i+1]),
				B: to8(pix[i+2]),
				A: to8(pix[i+3]),
			})
		}
	}
	return imgio.Save(path, img, imgio.PNGEncoder())
}

func writeEXR(path string, pix []float32, width, height int) error {
	img := exr.NewRGBAImage(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return exr.EncodeFile(path, img)
}

func to8(v float32) uint8 {
	return uint8(common.Clamp01(v)*255 + 0.5)
}
