package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/kaleido-go/common"
)

// stream is the unexported implementation of Stream.
type stream struct {
	mu *sync.RWMutex

	id      uint64
	name    string
	fit     common.FitMode
	frame   *common.TextureStagingData
	version uint64
}

// Stream is a time-varying source. A producer goroutine (a decoder or capture device) pushes
// frames; the render loop reads the latest one and never waits for delivery.
type Stream interface {
	Source

	// Push replaces the latest frame. The pixel slice is copied.
	//
	// Parameters:
	//   - pixels: tightly packed RGBA bytes, 4 per pixel
	//   - width, height: the frame size in pixels
	//
	// Returns:
	//   - error: ErrInvalidFrame if the size is not positive or does not match the pixel count
	Push(pixels []byte, width, height int) error

	// PushImage converts img to RGBA and replaces the latest frame.
	//
	// Parameters:
	//   - img: the frame image
	//
	// Returns:
	//   - error: ErrInvalidFrame for an empty image
	PushImage(img image.Image) error
}

var _ Stream = &stream{}

// NewStream creates a stream source with no frame.
//
// Parameters:
//   - name: a label for the stream
//   - fit: the fit mode
//
// Returns:
//   - Stream: the new stream
func NewStream(name string, fit common.FitMode) Stream {
	return &stream{
		mu:   &sync.RWMutex{},
		id:   newID(),
		name: name,
		fit:  fit,
	}
}

func (s *stream) Push(pixels []byte, width, height int) error {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("push %dx%d with %d bytes: %w", width, height, len(pixels), ErrInvalidFrame)
	}
	frame := &common.TextureStagingData{
		Pixels: append([]byte(nil), pixels...),
		Width:  uint32(width),
		Height: uint32(height),
	}
	s.mu.Lock()
	s.frame = frame
	s.version++
	s.mu.Unlock()
	return nil
}

func (s *stream) PushImage(img image.Image) error {
	if img.Bounds().Empty() {
		return fmt.Errorf("push empty image: %w", ErrInvalidFrame)
	}
	frame := stage(img)
	if _, ok := img.(*image.RGBA); ok {
		frame.Pixels = append([]byte(nil), frame.Pixels...)
	}
	s.mu.Lock()
	s.frame = frame
	s.version++
	s.mu.Unlock()
	return nil
}

func (s *stream) ID() uint64 {
	return s.id
}

func (s *stream) Name() string {
	return s.name
}

func (s *stream) Dims() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return 0, 0
	}
	return int(s.frame.Width), int(s.frame.Height)
}

func (s *stream) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *stream) Frame() (*common.TextureStagingData, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, 0, ErrNoFrame
	}
	return s.frame, s.version, nil
}

func (s *stream) Fit() common.FitMode {
	return s.fit
}
