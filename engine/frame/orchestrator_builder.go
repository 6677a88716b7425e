package frame

import (
	"github.com/Carmen-Shannon/kaleido-go/engine/command"
	"github.com/Carmen-Shannon/kaleido-go/engine/export"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/transport"
)

// OrchestratorBuilderOption is a functional option for configuring an Orchestrator.
// Use the With* functions to create options that are applied directly to the orchestrator instance.
type OrchestratorBuilderOption func(*orchestrator)

// WithStore sets the parameter store read once per frame.
//
// Parameters:
//   - s: the parameter store
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithStore(s params.Store) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.store = s
	}
}

// WithPresets sets the preset library used by ApplyPreset commands.
//
// Parameters:
//   - l: the preset library
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithPresets(l params.PresetLibrary) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.presets = l
	}
}

// WithPresetFile sets the user preset file re-read on ReloadPresets commands.
//
// Parameters:
//   - path: the TOML preset file
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithPresetFile(path string) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.presetFile = path
	}
}

// WithClock sets the transport clock that drives animated passes.
//
// Parameters:
//   - c: the transport clock
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithClock(c transport.Clock) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.clock = c
	}
}

// WithQueue sets the inbound command queue.
//
// Parameters:
//   - q: the command queue
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithQueue(q command.Queue) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.queue = q
	}
}

// WithExporter sets the exporter used by SaveFrame commands.
//
// Parameters:
//   - e: the still-frame exporter
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithExporter(e export.Exporter) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.exporter = e
	}
}
