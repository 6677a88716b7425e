package export

import "time"

// ExporterBuilderOption is a functional option for configuring an Exporter.
type ExporterBuilderOption func(*exporter)

// WithDirectory sets the directory for timestamped exports.
//
// Parameters:
//   - dir: the export directory, created on first save
//
// Returns:
//   - ExporterBuilderOption: option function to apply
func WithDirectory(dir string) ExporterBuilderOption {
	return func(e *exporter) {
		if dir != "" {
			e.dir = dir
		}
	}
}

// WithFormat sets the format for timestamped exports.
//
// Parameters:
//   - f: the default format
//
// Returns:
//   - ExporterBuilderOption: option function to apply
func WithFormat(f Format) ExporterBuilderOption {
	return func(e *exporter) {
		e.format = f
	}
}

// WithNow replaces the clock used for file names.
//
// Parameters:
//   - now: the function returning the current time
//
// Returns:
//   - ExporterBuilderOption: option function to apply
func WithNow(now func() time.Time) ExporterBuilderOption {
	return func(e *exporter) {
		if now != nil {
			e.now = now
		}
	}
}
