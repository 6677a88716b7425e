package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/command"
	"github.com/Carmen-Shannon/kaleido-go/engine/frame"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/profiler"
	"github.com/Carmen-Shannon/kaleido-go/engine/source"
	"github.com/Carmen-Shannon/kaleido-go/engine/window"
)

// maxConsecutiveFailures is how many failed frames in a row end the run.
const maxConsecutiveFailures = 30

// ErrNoOrchestrator is returned by Run when the engine was built without an orchestrator.
var ErrNoOrchestrator = errors.New("engine has no frame orchestrator")

// engine implements the Engine interface.
// Drives window events, the frame orchestrator and the profiler on the calling goroutine.
type engine struct {
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window       window.Window
	orchestrator frame.Orchestrator

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // stop after this many loop iterations; 0 = until quit

	presetWatchPath string
	sourceFit       common.FitMode

	failures int
	lastErr  string
}

// Engine is the main entry point for the engine.
// It owns the render loop and translates window input into pipeline commands.
type Engine interface {
	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Orchestrator returns the frame pipeline driven by the loop.
	//
	// Returns:
	//   - frame.Orchestrator: the orchestrator
	Orchestrator() frame.Orchestrator

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// HandleKey translates a key press into a pipeline command.
	// R resets feedback, Space toggles play, P saves a still, 1-5 apply the built-in presets,
	// Esc quits.
	//
	// Parameters:
	//   - keyCode: the virtual key code (see common.Key*)
	HandleKey(keyCode uint32)

	// HandleDrop loads the first readable image among paths as the active source.
	//
	// Parameters:
	//   - paths: the dropped file paths
	HandleDrop(paths []string)

	// Step runs one frame and ticks the profiler.
	//
	// Returns:
	//   - error: the frame error, if any
	Step() error

	// Run starts the render loop on the calling goroutine and blocks until the window closes,
	// Quit is called, or the configured frame count is reached.
	//
	// Returns:
	//   - error: an error if the loop could not start, kept failing, or panicked
	Run() error

	// Quit signals the render loop to stop.
	// Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Window resize and input callbacks are wired to the orchestrator's command queue.
//
// Parameters:
//   - options: functional options for engine configuration (window, orchestrator, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		profiler:    profiler.NewProfiler(),
		sourceFit:   common.FitCover,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil && e.orchestrator != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.orchestrator.Queue().Push(command.Resize{Width: width, Height: height})
		})
		e.window.SetKeyDownCallback(e.HandleKey)
		e.window.SetDropCallback(e.HandleDrop)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Orchestrator() frame.Orchestrator {
	return e.orchestrator
}

func (e *engine) HandleKey(keyCode uint32) {
	q := e.orchestrator.Queue()
	switch keyCode {
	case common.KeyEsc:
		e.Quit()
	case common.KeyR:
		q.Push(command.ResetFeedback{})
	case common.KeySpace:
		q.Push(command.TogglePlay{})
	case common.KeyP:
		q.Push(command.SaveFrame{})
	case common.Key1, common.Key2, common.Key3, common.Key4, common.Key5:
		i := int(keyCode - common.Key1)
		if names := params.BuiltinPresetNames(); i < len(names) {
			q.Push(command.ApplyPreset{Name: names[i]})
		}
	}
}

func (e *engine) HandleDrop(paths []string) {
	for _, p := range paths {
		src, err := source.LoadImage(p, source.WithFit(e.sourceFit))
		if err != nil {
			log.Printf("[Engine] ignoring dropped file %s: %v", p, err)
			continue
		}
		e.orchestrator.Queue().Push(command.SetSource{Source: src})
		return
	}
}

func (e *engine) Step() error {
	err := e.orchestrator.Frame()
	if e.profilingEnabled && e.profiler != nil {
		st := e.orchestrator.Stats()
		e.profiler.Tick(profiler.Counters{Frames: st.Frames, Skipped: st.Skipped, Passes: st.Passes})
	}
	return err
}

func (e *engine) Run() (err error) {
	if e.orchestrator == nil {
		return ErrNoOrchestrator
	}

	// Recover from panics inside the render loop to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render loop recovered from panic: %v", r)
			err = fmt.Errorf("render loop panic: %v", r)
		}
		e.signalQuit()
	}()

	if e.presetWatchPath != "" {
		w, werr := params.NewPresetWatcher(e.presetWatchPath, func() {
			e.orchestrator.Queue().Push(command.ReloadPresets{})
		})
		if werr != nil {
			log.Printf("[Engine] preset watcher disabled: %v", werr)
		} else {
			defer w.Close()
		}
	}

	if e.window != nil {
		e.orchestrator.Queue().Push(command.Resize{Width: e.window.Width(), Height: e.window.Height()})
	}

	var count uint64
	for {
		select {
		case <-e.quitChannel:
			return nil
		default:
		}

		start := time.Now()
		if e.window != nil && !e.window.PollEvents() {
			return nil
		}

		if ferr := e.Step(); ferr != nil {
			if e.failed(ferr) {
				return fmt.Errorf("giving up after %d failed frames: %w", e.failures, ferr)
			}
		} else {
			e.failures = 0
			e.lastErr = ""
		}

		count++
		if e.maxFrames > 0 && count >= e.maxFrames {
			return nil
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// failed records a frame failure, logging each distinct error once.
// Reports whether the loop should stop.
func (e *engine) failed(err error) bool {
	e.failures++
	if msg := err.Error(); msg != e.lastErr {
		log.Printf("[Engine] %v", err)
		e.lastErr = msg
	}
	return e.failures >= maxConsecutiveFailures
}

// Quit signals the render loop to stop.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.RequestClose()
	}
}

// signalQuit closes the quit channel to signal the loop to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
