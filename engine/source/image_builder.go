package source

import "github.com/Carmen-Shannon/kaleido-go/common"

// ImageSourceBuilderOption is a functional option for configuring a still image source.
type ImageSourceBuilderOption func(*imageSource)

// WithName sets the label reported by Name.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - ImageSourceBuilderOption: a function that applies the label
func WithName(name string) ImageSourceBuilderOption {
	return func(s *imageSource) {
		s.name = name
	}
}

// WithFit sets the fit mode of the image.
//
// Parameters:
//   - fit: the fit mode
//
// Returns:
//   - ImageSourceBuilderOption: a function that applies the fit mode
func WithFit(fit common.FitMode) ImageSourceBuilderOption {
	return func(s *imageSource) {
		s.fit = fit
	}
}

// WithMaxDimension sets the longest side an image may keep before it is downscaled.
// Zero or negative disables downscaling.
//
// Parameters:
//   - n: the maximum dimension in pixels
//
// Returns:
//   - ImageSourceBuilderOption: a function that applies the bound
func WithMaxDimension(n int) ImageSourceBuilderOption {
	return func(s *imageSource) {
		s.maxDim = n
	}
}
