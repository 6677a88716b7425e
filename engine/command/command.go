// Package command defines the inbound commands that mutate frame state and the queue that carries
// them to the render loop. Window callbacks, file watchers and producers push; the orchestrator
// drains once at the start of every frame, so every mutation lands between frames.
package command

import (
	"fmt"

	"github.com/Carmen-Shannon/kaleido-go/engine/source"
)

// Command is one inbound request. The concrete types below are the complete set.
type Command interface {
	fmt.Stringer
	command()
}

// Resize reports a new output surface size in pixels.
type Resize struct {
	Width, Height int
}

// ResetFeedback clears the accumulation buffers without touching other state.
type ResetFeedback struct{}

// SetParam writes one parameter.
type SetParam struct {
	ID    string
	Value any
}

// SetParams writes several parameters in one revision.
type SetParams struct {
	Values map[string]any
}

// ApplyPreset applies a named preset over the current parameters.
type ApplyPreset struct {
	Name string
}

// SetSource makes Source the active source.
type SetSource struct {
	Source source.Source
}

// ClearSource removes the active source.
type ClearSource struct{}

// SaveFrame exports the presented frame after the current frame completes.
// An empty Path lets the exporter pick a timestamped name.
type SaveFrame struct {
	Path string
}

// TogglePlay switches the transport between playing and paused.
type TogglePlay struct{}

// ReloadPresets re-reads the user preset file.
type ReloadPresets struct{}

func (Resize) command()        {}
func (ResetFeedback) command() {}
func (SetParam) command()      {}
func (SetParams) command()     {}
func (ApplyPreset) command()   {}
func (SetSource) command()     {}
func (ClearSource) command()   {}
func (SaveFrame) command()     {}
func (TogglePlay) command()    {}
func (ReloadPresets) command() {}

func (c Resize) String() string      { return fmt.Sprintf("Resize(%dx%d)", c.Width, c.Height) }
func (ResetFeedback) String() string { return "ResetFeedback" }
func (c SetParam) String() string    { return fmt.Sprintf("SetParam(%s=%v)", c.ID, c.Value) }
func (c SetParams) String() string   { return fmt.Sprintf("SetParams(%d)", len(c.Values)) }
func (c ApplyPreset) String() string { return fmt.Sprintf("ApplyPreset(%s)", c.Name) }
func (c SetSource) String() string {
	if c.Source == nil {
		return "SetSource(nil)"
	}
	return fmt.Sprintf("SetSource(%s)", c.Source.Name())
}
func (ClearSource) String() string   { return "ClearSource" }
func (c SaveFrame) String() string   { return fmt.Sprintf("SaveFrame(%s)", c.Path) }
func (TogglePlay) String() string    { return "TogglePlay" }
func (ReloadPresets) String() string { return "ReloadPresets" }
