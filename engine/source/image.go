package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension bounds the longest side of a still image uploaded as a texture.
const DefaultMaxDimension = 4096

// imageSource is a decoded still image.
type imageSource struct {
	id     uint64
	name   string
	fit    common.FitMode
	maxDim int
	frame  *common.TextureStagingData
}

var _ Source = &imageSource{}

// LoadImage decodes an image file into a still source.
//
// Parameters:
//   - path: the image file path (png, jpeg, gif, bmp, tiff or webp)
//   - options: functional options for source configuration
//
// Returns:
//   - Source: the decoded still source
//   - error: an error if the file cannot be read or decoded
func LoadImage(path string, options ...ImageSourceBuilderOption) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source image: %w", err)
	}
	defer f.Close()
	return DecodeImage(f, append([]ImageSourceBuilderOption{WithName(path)}, options...)...)
}

// DecodeImage decodes an image stream into a still source.
//
// Parameters:
//   - r: the encoded image
//   - options: functional options for source configuration
//
// Returns:
//   - Source: the decoded still source
//   - error: ErrUnsupportedFormat if no decoder recognises the data, or a read error
func DecodeImage(r io.Reader, options ...ImageSourceBuilderOption) (Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source image: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	src := NewImageSource(img, options...)
	w, h := src.Dims()
	log.Printf("[Source] decoded %s image %q (%dx%d)", format, src.Name(), w, h)
	return src, nil
}

// NewImageSource wraps an already decoded image as a still source.
// Images whose longest side exceeds the maximum dimension are downscaled preserving aspect ratio.
//
// Parameters:
//   - img: the image
//   - options: functional options for source configuration
//
// Returns:
//   - Source: the still source
func NewImageSource(img image.Image, options ...ImageSourceBuilderOption) Source {
	s := &imageSource{
		id:     newID(),
		name:   "image",
		fit:    common.FitCover,
		maxDim: DefaultMaxDimension,
	}
	for _, opt := range options {
		opt(s)
	}
	s.frame = stage(fitWithin(img, s.maxDim))
	return s
}

// fitWithin downscales img so its longest side is at most maxDim.
func fitWithin(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	return transform.Resize(img, nw, nh, transform.Linear)
}

// stage converts any image to tightly packed RGBA.
func stage(img image.Image) *common.TextureStagingData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	}
	return &common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}
}

func (s *imageSource) ID() uint64 {
	return s.id
}

func (s *imageSource) Name() string {
	return s.name
}

func (s *imageSource) Dims() (int, int) {
	return int(s.frame.Width), int(s.frame.Height)
}

func (s *imageSource) Version() uint64 {
	return 1
}

func (s *imageSource) Frame() (*common.TextureStagingData, uint64, error) {
	return s.frame, 1, nil
}

func (s *imageSource) Fit() common.FitMode {
	return s.fit
}
