package shader

import (
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// Binding locates a resource declared by an annotation.
type Binding struct {
	Group   int
	Binding int
	Name    string
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	vertexEntry                string
	fragmentEntry              string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	structs                    map[string]parsedStruct
	structSizes                map[string]wgslTypeLayout
	module                     *wgpu.ShaderModuleDescriptor

	uniforms *Binding
	sampler  *Binding
	inputs   []Binding

	pp PreProcessor
}

// Shader is a pre-processed and parsed fullscreen pass program. It exposes the WGSL module,
// both entry points, the bind group layouts and the annotated bindings the renderer wires per pass.
type Shader interface {
	// Key retrieves the unique identifier for this shader, the pass program name.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source with all annotations expanded
	Source() string

	// VertexEntryPoint returns the @vertex function name.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the @fragment function name.
	FragmentEntryPoint() string

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors, keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// Uniforms returns the binding of the shared uniform block.
	//
	// Returns:
	//   - Binding: the uniform block binding
	//   - bool: false if the program declares no uniform block
	Uniforms() (Binding, bool)

	// Sampler returns the binding of the shared sampler.
	//
	// Returns:
	//   - Binding: the sampler binding
	//   - bool: false if the program declares no sampler
	Sampler() (Binding, bool)

	// Inputs returns the texture input bindings indexed by slot.
	//
	// Returns:
	//   - []Binding: one binding per input slot, slot 0 first
	Inputs() []Binding

	// StructSize returns the byte size of a struct declared in the source.
	//
	// Parameters:
	//   - name: the WGSL struct name
	//
	// Returns:
	//   - uint64: the struct size including trailing padding
	//   - bool: false if the struct is unknown or could not be resolved
	StructSize(name string) (uint64, bool)

	// StructFields returns the member names of a struct declared in the source, in declaration order.
	//
	// Parameters:
	//   - name: the WGSL struct name
	//
	// Returns:
	//   - []string: the member names, nil if the struct is unknown
	StructFields(name string) []string

	// Module returns the wgpu.ShaderModuleDescriptor built from the pre-processed source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader pre-processes and parses a pass program.
// A pass program must declare both a vertex and a fragment entry point and its input slots must be
// numbered 0..n-1 without gaps.
//
// Parameters:
//   - key: a unique identifier for the shader, used as the module label
//   - source: the annotated WGSL source
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing fails or the program is malformed
func NewShader(key, source string) (Shader, error) {
	s := &shader{
		key: key,
		pp:  NewPreProcessor(),
	}
	if err := s.parseSource(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexEntryPoint() string {
	return s.vertexEntry
}

func (s *shader) FragmentEntryPoint() string {
	return s.fragmentEntry
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) Uniforms() (Binding, bool) {
	if s.uniforms == nil {
		return Binding{}, false
	}
	return *s.uniforms, true
}

func (s *shader) Sampler() (Binding, bool) {
	if s.sampler == nil {
		return Binding{}, false
	}
	return *s.sampler, true
}

func (s *shader) Inputs() []Binding {
	return s.inputs
}

func (s *shader) StructSize(name string) (uint64, bool) {
	layout, ok := s.structSizes[name]
	return layout.size, ok
}

func (s *shader) StructFields(name string) []string {
	ps, ok := s.structs[name]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ps.fields))
	for _, f := range ps.fields {
		names = append(names, f.name)
	}
	return names
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) parseSource(raw string) error {
	source, err := s.pp.Process(raw)
	if err != nil {
		return fmt.Errorf("pre-process: %w", err)
	}
	s.source = source
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}

	s.vertexEntry, s.fragmentEntry = parseEntryPoints(s.source)
	if s.vertexEntry == "" || s.fragmentEntry == "" {
		return fmt.Errorf("missing entry point (vertex %q, fragment %q)", s.vertexEntry, s.fragmentEntry)
	}

	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(s.source, wgpu.ShaderStageFragment)

	parsed := parseStructBlocks(stripComments(s.source))
	s.structs = make(map[string]parsedStruct, len(parsed))
	for _, ps := range parsed {
		s.structs[ps.name] = ps
	}
	s.structSizes = computeStructSizes(parsed)

	slots := make(map[int]Binding)
	for _, a := range s.pp.Declarations() {
		b := Binding{Group: *a.Group, Binding: *a.Binding, Name: string(a.Args[0])}
		switch a.Type {
		case AnnotationTypeUniforms:
			s.uniforms = &b
		case AnnotationTypeSampler:
			s.sampler = &b
		case AnnotationTypeInput:
			slots[a.Slot] = b
		}
	}
	keys := make([]int, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	s.inputs = make([]Binding, 0, len(keys))
	for i, k := range keys {
		if k != i {
			return fmt.Errorf("input slots must be contiguous from 0, missing slot %d", i)
		}
		s.inputs = append(s.inputs, slots[k])
	}
	return nil
}
