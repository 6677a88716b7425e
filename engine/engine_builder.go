package engine

import (
	"time"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/frame"
	"github.com/Carmen-Shannon/kaleido-go/engine/profiler"
	"github.com/Carmen-Shannon/kaleido-go/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler.
//
// Parameters:
//   - p: the profiler to tick each frame
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithWindow sets the window whose events drive the loop. Without a window the engine runs headless.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithOrchestrator sets the frame pipeline the loop drives.
//
// Parameters:
//   - o: the frame orchestrator
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithOrchestrator(o frame.Orchestrator) EngineBuilderOption {
	return func(e *engine) {
		e.orchestrator = o
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxFrames stops Run after n loop iterations. Zero runs until quit.
//
// Parameters:
//   - n: the iteration count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithPresetWatch watches the preset file and queues a reload whenever it changes on disk.
//
// Parameters:
//   - path: the preset file to watch
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPresetWatch(path string) EngineBuilderOption {
	return func(e *engine) {
		e.presetWatchPath = path
	}
}

// WithSourceFit sets the fit mode given to images dropped onto the window.
//
// Parameters:
//   - fit: the fit mode
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSourceFit(fit common.FitMode) EngineBuilderOption {
	return func(e *engine) {
		e.sourceFit = fit
	}
}
