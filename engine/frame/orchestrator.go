package frame

import (
	"errors"
	"fmt"
	"log"

	"github.com/Carmen-Shannon/kaleido-go/engine/command"
	"github.com/Carmen-Shannon/kaleido-go/engine/export"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/target"
	"github.com/Carmen-Shannon/kaleido-go/engine/source"
	"github.com/Carmen-Shannon/kaleido-go/engine/transport"
)

// State is the stage the orchestrator is executing.
type State int

const (
	StateIdle State = iota
	StateResizeCheck
	StateSkip
	StatePrepass
	StateMotionEstimate
	StateCompose
	StateFeedbackBlend
	StateBloom
	StatePresent
)

var stateNames = [...]string{
	StateIdle:           "Idle",
	StateResizeCheck:    "ResizeCheck",
	StateSkip:           "Skip",
	StatePrepass:        "Prepass",
	StateMotionEstimate: "MotionEstimate",
	StateCompose:        "Compose",
	StateFeedbackBlend:  "FeedbackBlend",
	StateBloom:          "Bloom",
	StatePresent:        "Present",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Stats counts completed and skipped frames.
type Stats struct {
	Frames  uint64
	Skipped uint64
	Passes  uint64
}

// orchestrator is the implementation of the Orchestrator interface.
type orchestrator struct {
	renderer    renderer.Renderer
	pool        target.Pool
	estimator   Estimator
	accumulator Accumulator
	bloom       Bloom

	store      params.Store
	presets    params.PresetLibrary
	presetFile string
	clock      transport.Clock
	queue      command.Queue
	exporter   export.Exporter

	state    State
	skipping bool

	surfaceWidth  int
	surfaceHeight int
	resizePending bool

	saves []string

	src        source.Source
	srcTex     renderer.Texture
	srcVersion uint64

	frames  uint64
	skipped uint64
}

// Orchestrator runs one frame of the pipeline per call: drain commands, check size, prepass,
// motion estimate, compose, feedback, bloom, present. It is driven from a single goroutine;
// other goroutines talk to it only through its command queue.
type Orchestrator interface {
	// Frame runs one iteration. When no render targets are available, or the surface has no
	// area, the frame is skipped entirely and retried on the next call.
	//
	// Returns:
	//   - error: the first pass error of the frame; the next call starts a fresh frame
	Frame() error

	// State returns the stage currently executing, StateIdle between frames and StateSkip after
	// a skipped frame.
	State() State

	// Skipping reports whether the last frame was skipped.
	Skipping() bool

	// Queue returns the inbound command queue.
	Queue() command.Queue

	// Store returns the parameter store.
	Store() params.Store

	// Presets returns the preset library.
	Presets() params.PresetLibrary

	// Clock returns the transport clock.
	Clock() transport.Clock

	// Pool returns the render target pool.
	Pool() target.Pool

	// Source returns the active source, or nil.
	Source() source.Source

	// SourceDims returns the intrinsic size of the active source.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	//   - bool: false when no source is active
	SourceDims() (int, int, bool)

	// Stats returns frame counters.
	Stats() Stats

	// Release frees the render targets and the source texture. The renderer is not released.
	Release()
}

var _ Orchestrator = &orchestrator{}

// NewOrchestrator creates an orchestrator rendering with r. Collaborators not given as options
// are created with their defaults: a default-schema store, the built-in presets, a playing clock,
// an empty queue and a PNG exporter writing to the working directory.
//
// Parameters:
//   - r: the renderer executing every pass
//   - options: functional options for orchestrator configuration
//
// Returns:
//   - Orchestrator: the orchestrator
func NewOrchestrator(r renderer.Renderer, options ...OrchestratorBuilderOption) Orchestrator {
	o := &orchestrator{renderer: r}
	for _, opt := range options {
		opt(o)
	}
	if o.store == nil {
		o.store = params.NewStore()
	}
	if o.presets == nil {
		o.presets = params.NewPresetLibrary()
	}
	if o.clock == nil {
		o.clock = transport.NewClock()
	}
	if o.queue == nil {
		o.queue = command.NewQueue()
	}
	if o.exporter == nil {
		o.exporter = export.NewExporter()
	}
	o.pool = target.NewPool(r)
	o.estimator = NewEstimator(r, o.pool)
	o.accumulator = NewAccumulator(r, o.pool)
	o.bloom = NewBloom(r, o.pool)
	return o
}

func (o *orchestrator) Frame() error {
	o.state = StateIdle
	o.drain()

	o.state = StateResizeCheck
	o.checkResize()
	if !o.pool.Valid() || o.surfaceWidth <= 0 || o.surfaceHeight <= 0 {
		o.skip()
		return nil
	}
	if o.skipping {
		log.Printf("[Frame] render targets available, resuming at %dx%d", o.surfaceWidth, o.surfaceHeight)
		o.skipping = false
	}

	w, h := o.pool.Size()
	snap := o.store.Snapshot()
	s := NewSettings(snap, w, h, o.clock.Seconds(), o.clock.Beat(snap.Float(params.BPM)))
	o.syncSource(&s)

	o.state = StatePrepass
	if err := o.estimator.Analyze(&s, o.srcTex); err != nil {
		return o.fail(err)
	}

	o.state = StateMotionEstimate
	motion, err := o.estimator.Estimate(&s)
	if err != nil {
		return o.fail(err)
	}

	o.state = StateCompose
	compose := o.pool.Target(target.Compose)
	// Without a source the luminance target stands in for the unused source slot.
	base := o.srcTex
	if base == nil {
		base = o.pool.Target(target.Luma)
	}
	if err := o.renderer.RunPass(pass.Compose, compose, s.withPass(0, 0), base, motion); err != nil {
		return o.fail(fmt.Errorf("compose: %w", err))
	}

	o.state = StateFeedbackBlend
	accum, err := o.accumulator.Step(&s, compose, motion)
	if err != nil {
		return o.fail(err)
	}

	o.state = StateBloom
	final, err := o.bloom.Apply(&s, accum)
	if err != nil {
		return o.fail(err)
	}

	o.state = StatePresent
	if err := o.renderer.Present(final); err != nil {
		return o.fail(fmt.Errorf("present: %w", err))
	}
	o.frames++
	o.flushSaves()

	o.state = StateIdle
	return nil
}

func (o *orchestrator) fail(err error) error {
	o.state = StateIdle
	return fmt.Errorf("frame %d: %w", o.frames, err)
}

func (o *orchestrator) skip() {
	if !o.skipping {
		log.Printf("[Frame] render targets unavailable at %dx%d, skipping frames", o.surfaceWidth, o.surfaceHeight)
		o.skipping = true
	}
	o.skipped++
	o.state = StateSkip
}

// checkResize applies the latest pending resize to the surface and the pool.
func (o *orchestrator) checkResize() {
	if !o.resizePending {
		return
	}
	o.resizePending = false
	if o.surfaceWidth <= 0 || o.surfaceHeight <= 0 {
		return
	}
	o.renderer.Resize(o.surfaceWidth, o.surfaceHeight)
	// Allocation errors are logged by the pool, which stays invalid until the next resize.
	_, _ = o.pool.Resize(o.surfaceWidth, o.surfaceHeight)
}

// syncSource uploads a new source frame when the source version changed and binds the source
// into the frame settings.
func (o *orchestrator) syncSource(s *Settings) {
	if o.src == nil {
		return
	}
	if v := o.src.Version(); v != o.srcVersion {
		data, version, err := o.src.Frame()
		switch {
		case errors.Is(err, source.ErrNoFrame):
		case err != nil:
			log.Printf("[Source] read frame from %s failed: %v", o.src.Name(), err)
			o.srcVersion = v
		default:
			tex, err := o.renderer.UploadSource(o.srcTex, data)
			if err != nil {
				log.Printf("[Source] upload frame from %s failed: %v", o.src.Name(), err)
				o.srcVersion = version
				break
			}
			o.srcTex = tex
			o.srcVersion = version
			o.pool.RequestRebuild()
		}
	}
	if o.srcTex != nil {
		s.BindSource(o.srcTex.Width(), o.srcTex.Height(), o.src.Fit())
	}
}

// drain applies every pending command in arrival order.
func (o *orchestrator) drain() {
	for _, cmd := range o.queue.Drain() {
		switch c := cmd.(type) {
		case command.Resize:
			o.surfaceWidth, o.surfaceHeight = c.Width, c.Height
			o.resizePending = true
		case command.ResetFeedback:
			o.pool.RequestClear()
		case command.SetParam:
			if err := o.store.Set(c.ID, c.Value); err != nil {
				log.Printf("[Params] %v", err)
			}
		case command.SetParams:
			if err := o.store.SetMany(c.Values); err != nil {
				log.Printf("[Params] %v", err)
			}
		case command.ApplyPreset:
			if err := o.presets.Apply(c.Name, o.store); err != nil {
				log.Printf("[Presets] %v", err)
			}
		case command.SetSource:
			o.setSource(c.Source)
		case command.ClearSource:
			o.setSource(nil)
		case command.SaveFrame:
			o.saves = append(o.saves, c.Path)
		case command.TogglePlay:
			log.Printf("[Frame] transport playing: %t", o.clock.Toggle())
		case command.ReloadPresets:
			o.reloadPresets()
		default:
			log.Printf("[Frame] ignoring unknown command %v", cmd)
		}
	}
}

// setSource switches the active source. A new identity clears feedback and rebuilds luminance;
// the same identity only rebuilds.
func (o *orchestrator) setSource(src source.Source) {
	if src != nil && o.src != nil && src.ID() == o.src.ID() {
		o.pool.RequestRebuild()
		return
	}
	if src == nil && o.src == nil {
		return
	}

	o.src = src
	o.srcVersion = 0
	if o.srcTex != nil {
		o.srcTex.Release()
		o.srcTex = nil
	}
	o.pool.RequestClear()
	o.pool.RequestRebuild()
	o.pool.RequestHistoryReset()

	if src == nil {
		log.Printf("[Source] cleared active source")
		return
	}
	w, h := src.Dims()
	log.Printf("[Source] active source %s (%dx%d, %s)", src.Name(), w, h, src.Fit())
}

func (o *orchestrator) reloadPresets() {
	if o.presetFile == "" {
		return
	}
	doc, err := params.LoadPresetFile(o.presetFile)
	if err != nil {
		log.Printf("[Presets] reload failed: %v", err)
		return
	}
	o.presets.Load(doc)
	log.Printf("[Presets] reloaded %d user presets from %s", len(doc.Presets), o.presetFile)
}

// flushSaves exports the frame just presented once per pending save request.
func (o *orchestrator) flushSaves() {
	if len(o.saves) == 0 {
		return
	}
	saves := o.saves
	o.saves = nil
	pix, w, h, err := o.renderer.Capture()
	if err != nil {
		log.Printf("[Export] capture failed: %v", err)
		return
	}
	for _, path := range saves {
		if _, err := o.exporter.Save(pix, w, h, path); err != nil {
			log.Printf("[Export] %v", err)
		}
	}
}

func (o *orchestrator) State() State {
	return o.state
}

func (o *orchestrator) Skipping() bool {
	return o.skipping
}

func (o *orchestrator) Queue() command.Queue {
	return o.queue
}

func (o *orchestrator) Store() params.Store {
	return o.store
}

func (o *orchestrator) Presets() params.PresetLibrary {
	return o.presets
}

func (o *orchestrator) Clock() transport.Clock {
	return o.clock
}

func (o *orchestrator) Pool() target.Pool {
	return o.pool
}

func (o *orchestrator) Source() source.Source {
	return o.src
}

func (o *orchestrator) SourceDims() (int, int, bool) {
	if o.src == nil {
		return 0, 0, false
	}
	w, h := o.src.Dims()
	return w, h, true
}

func (o *orchestrator) Stats() Stats {
	return Stats{Frames: o.frames, Skipped: o.skipped, Passes: o.renderer.PassCount()}
}

func (o *orchestrator) Release() {
	if o.srcTex != nil {
		o.srcTex.Release()
		o.srcTex = nil
	}
	o.pool.Release()
}
