// Package source provides the active-source capability the frame pipeline samples from:
// a decoded still image or a stream of frames pushed by an out-of-band producer.
package source

import (
	"errors"
	"sync/atomic"

	"github.com/Carmen-Shannon/kaleido-go/common"
)

var (
	// ErrNoFrame is returned by Frame when a stream has not received its first frame yet.
	ErrNoFrame = errors.New("source has no frame")
	// ErrUnsupportedFormat is returned when an image cannot be decoded by any registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidFrame is returned when pushed pixels do not match the stated dimensions.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Source is an image the pipeline samples as its base signal.
// Dimensions are intrinsic to the source and never follow the output surface size.
type Source interface {
	// ID returns the identity of the source. Two sources never share an ID.
	//
	// Returns:
	//   - uint64: the source identity
	ID() uint64

	// Name returns a human readable label, such as the file path.
	//
	// Returns:
	//   - string: the source label
	Name() string

	// Dims returns the intrinsic pixel size of the latest frame.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Dims() (int, int)

	// Version returns a counter that increases whenever the frame content changes.
	// A still image has version 1 for its whole lifetime.
	//
	// Returns:
	//   - uint64: the content version
	Version() uint64

	// Frame returns the latest RGBA frame and its version.
	//
	// Returns:
	//   - *common.TextureStagingData: the frame pixels, owned by the source and never mutated after return
	//   - uint64: the version of the returned frame
	//   - error: ErrNoFrame if nothing has been delivered yet
	Frame() (*common.TextureStagingData, uint64, error)

	// Fit returns how the source is mapped onto the output.
	//
	// Returns:
	//   - common.FitMode: the fit mode
	Fit() common.FitMode
}

var nextID atomic.Uint64

func newID() uint64 {
	return nextID.Add(1)
}
