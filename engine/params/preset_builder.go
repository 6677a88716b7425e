package params

// PresetLibraryBuilderOption is a functional option for configuring a presetLibrary.
// Use the With* functions to create options.
type PresetLibraryBuilderOption func(l *presetLibrary)

// WithDocument seeds the library with previously persisted user presets and startup name.
//
// Parameters:
//   - doc: the persisted document
//
// Returns:
//   - PresetLibraryBuilderOption: option function to apply
func WithDocument(doc PresetDocument) PresetLibraryBuilderOption {
	return func(l *presetLibrary) {
		l.Load(doc)
	}
}

// WithOnChange registers a callback invoked with the library document after every mutation.
// The preset file writer hooks in here.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - PresetLibraryBuilderOption: option function to apply
func WithOnChange(fn func(doc PresetDocument)) PresetLibraryBuilderOption {
	return func(l *presetLibrary) {
		l.onChange = fn
	}
}
