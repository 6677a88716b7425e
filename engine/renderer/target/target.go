// Package target owns the render targets of the frame pipeline: the full- and half-resolution
// scratch targets and the two ping-pong pairs, all reallocated together on resize.
package target

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
)

var (
	// ErrInvalidSize is returned by Resize for zero or negative dimensions.
	ErrInvalidSize = errors.New("render target size must be positive")

	// ErrTargetsUnavailable is returned when targets are requested before a successful resize.
	ErrTargetsUnavailable = errors.New("render targets are not allocated")
)

// ID names a single render target of the pool.
type ID int

const (
	// Compose receives the composed scene.
	Compose ID = iota
	// Luma holds the current source luminance.
	Luma
	// LumaPrev holds the previous source luminance.
	LumaPrev
	// FlowSynth receives the synthetic motion field.
	FlowSynth
	// OptFlow receives the full-resolution optical flow measurement.
	OptFlow
	// FlowRaw receives the unsmoothed motion field published to smoothing.
	FlowRaw
	// Bright receives the bloom bright pass.
	Bright
	// BlurH receives the horizontal bloom blur.
	BlurH
	// BlurV receives the vertical bloom blur.
	BlurV
	// Final receives the bloom combine and is presented.
	Final
	// LumaHalf holds the current luminance at half resolution.
	LumaHalf
	// LumaPrevHalf holds the previous luminance at half resolution.
	LumaPrevHalf
	// OptFlowHalf receives the half-resolution optical flow measurement.
	OptFlowHalf

	numTargets
)

var idNames = [numTargets]string{
	Compose:      "compose",
	Luma:         "luma",
	LumaPrev:     "luma_prev",
	FlowSynth:    "flow_synth",
	OptFlow:      "opt_flow",
	FlowRaw:      "flow_raw",
	Bright:       "bright",
	BlurH:        "blur_h",
	BlurV:        "blur_v",
	Final:        "final",
	LumaHalf:     "luma_half",
	LumaPrevHalf: "luma_prev_half",
	OptFlowHalf:  "opt_flow_half",
}

func (id ID) String() string {
	if id < 0 || id >= numTargets {
		return fmt.Sprintf("target(%d)", int(id))
	}
	return idNames[id]
}

// HalfRes reports whether the target is allocated at half resolution.
func (id ID) HalfRes() bool {
	return id >= LumaHalf && id < numTargets
}

// PairID names a ping-pong pair of the pool.
type PairID int

const (
	// Accum is the feedback accumulation pair.
	Accum PairID = iota
	// Flow is the published motion field pair; the read side holds the previous frame's field.
	Flow

	numPairs
)

func (p PairID) String() string {
	switch p {
	case Accum:
		return "accum"
	case Flow:
		return "flow"
	default:
		return fmt.Sprintf("pair(%d)", int(p))
	}
}

// Allocator creates render targets. renderer.Renderer satisfies it.
type Allocator interface {
	CreateTexture(label string, width, height int) (renderer.Texture, error)
}

// HalfSize returns the half-resolution size for a full-resolution size: half, rounded down,
// at least 1.
func HalfSize(width, height int) (int, int) {
	return max(1, width>>1), max(1, height>>1)
}
