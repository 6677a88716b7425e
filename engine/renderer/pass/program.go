package pass

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
)

//go:embed wgsl/*.wgsl
var wgslFS embed.FS

// ErrProgramNotFound is returned when a pass program name is not registered.
var ErrProgramNotFound = errors.New("pass program not found")

// Program names. Each program has a WGSL fragment stage and a Go kernel with the same semantics.
const (
	Luma           = "luma"
	Copy           = "copy"
	Downsample     = "downsample"
	FlowSynth      = "flow_synth"
	FlowOptical    = "flow_optical"
	FlowCombine    = "flow_combine"
	FlowSmooth     = "flow_smooth"
	Compose        = "compose"
	Feedback       = "feedback"
	BloomThreshold = "bloom_threshold"
	Blur           = "blur"
	BloomCombine   = "bloom_combine"
	Present        = "present"
)

// Inputs gives a kernel read access to the textures bound to its input slots.
type Inputs interface {
	// Sample reads the texture in slot at uv with bilinear filtering and clamp-to-edge addressing.
	// uv has its origin at the top-left corner; texel centres lie at (i+0.5)/width.
	Sample(slot int, uv common.Vec2) common.Vec4

	// Size returns the pixel dimensions of the texture in slot.
	Size(slot int) (int, int)
}

// Kernel computes one output texel of a pass at uv.
type Kernel func(in Inputs, u *Uniforms, uv common.Vec2) common.Vec4

// Program is a stateless pass program: its annotated WGSL source, its input slot count
// and the equivalent CPU kernel.
type Program struct {
	Name   string
	Source string
	Inputs int
	Kernel Kernel
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu       *sync.RWMutex
	programs map[string]Program
	shaders  map[string]shader.Shader
}

// Registry holds the compiled pass programs for the process lifetime.
type Registry interface {
	// Register parses and validates a program and adds it to the registry, replacing a program
	// of the same name.
	//
	// Parameters:
	//   - p: the program to register
	//
	// Returns:
	//   - error: an error if the WGSL source fails to parse or declares a different number of inputs
	Register(p Program) error

	// Program returns a registered program.
	//
	// Parameters:
	//   - name: the program name
	//
	// Returns:
	//   - Program: the program
	//   - error: ErrProgramNotFound if the name is not registered
	Program(name string) (Program, error)

	// Shader returns the parsed shader of a registered program.
	//
	// Parameters:
	//   - name: the program name
	//
	// Returns:
	//   - shader.Shader: the parsed shader
	//   - error: ErrProgramNotFound if the name is not registered
	Shader(name string) (shader.Shader, error)

	// Names returns the registered program names in sorted order.
	//
	// Returns:
	//   - []string: the program names
	Names() []string
}

var _ Registry = &registry{}

// NewRegistry creates a registry holding every built-in pass program.
//
// Returns:
//   - Registry: the populated registry
//   - error: an error if a built-in program fails to parse
func NewRegistry() (Registry, error) {
	r := &registry{
		mu:       &sync.RWMutex{},
		programs: make(map[string]Program),
		shaders:  make(map[string]shader.Shader),
	}
	for _, p := range builtinPrograms() {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *registry) Register(p Program) error {
	if p.Name == "" {
		return errors.New("register program: empty name")
	}
	if p.Kernel == nil {
		return fmt.Errorf("register program %s: nil kernel", p.Name)
	}
	s, err := shader.NewShader(p.Name, p.Source)
	if err != nil {
		return fmt.Errorf("register program %s: %w", p.Name, err)
	}
	if got := len(s.Inputs()); got != p.Inputs {
		return fmt.Errorf("register program %s: declares %d inputs, expected %d", p.Name, got, p.Inputs)
	}
	r.mu.Lock()
	r.programs[p.Name] = p
	r.shaders[p.Name] = s
	r.mu.Unlock()
	return nil
}

func (r *registry) Program(name string) (Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	if !ok {
		return Program{}, fmt.Errorf("%s: %w", name, ErrProgramNotFound)
	}
	return p, nil
}

func (r *registry) Shader(name string) (shader.Shader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shaders[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrProgramNotFound)
	}
	return s, nil
}

func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for name := range r.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinPrograms() []Program {
	return []Program{
		{Name: Luma, Source: source(Luma), Inputs: 1, Kernel: lumaKernel},
		{Name: Copy, Source: source(Copy), Inputs: 1, Kernel: copyKernel},
		{Name: Downsample, Source: source(Downsample), Inputs: 1, Kernel: downsampleKernel},
		{Name: FlowSynth, Source: source(FlowSynth), Inputs: 1, Kernel: flowSynthKernel},
		{Name: FlowOptical, Source: source(FlowOptical), Inputs: 2, Kernel: flowOpticalKernel},
		{Name: FlowCombine, Source: source(FlowCombine), Inputs: 2, Kernel: flowCombineKernel},
		{Name: FlowSmooth, Source: source(FlowSmooth), Inputs: 2, Kernel: flowSmoothKernel},
		{Name: Compose, Source: source(Compose), Inputs: 2, Kernel: composeKernel},
		{Name: Feedback, Source: source(Feedback), Inputs: 3, Kernel: feedbackKernel},
		{Name: BloomThreshold, Source: source(BloomThreshold), Inputs: 1, Kernel: bloomThresholdKernel},
		{Name: Blur, Source: source(Blur), Inputs: 1, Kernel: blurKernel},
		{Name: BloomCombine, Source: source(BloomCombine), Inputs: 2, Kernel: bloomCombineKernel},
		{Name: Present, Source: source(Present), Inputs: 1, Kernel: presentKernel},
	}
}

// source returns the embedded WGSL of a built-in program.
func source(name string) string {
	data, err := wgslFS.ReadFile("wgsl/" + name + ".wgsl")
	if err != nil {
		panic(fmt.Sprintf("pass: missing embedded source for %s: %v", name, err))
	}
	return string(data)
}
