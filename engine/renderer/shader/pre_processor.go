// pre_processor.go implements the pass program pre-processor. It scans WGSL source for
// @kal: annotations, replaces them with embedded chunks or generated binding declarations,
// and collects the binding declarations so the renderer can bind textures to input slots.
package shader

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed chunks/uniforms.wgsl
	uniformsChunk string

	//go:embed chunks/fullscreen.wgsl
	fullscreenChunk string

	//go:embed chunks/helpers.wgsl
	helpersChunk string
)

// UniformStructName is the WGSL type name of the shared uniform block.
const UniformStructName = "PassUniforms"

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// chunkRegistry maps chunk keys to embedded WGSL source.
	chunkRegistry map[AnnotationArg]string

	// declarations accumulates binding annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL source containing @kal: annotations, replacing them with
// their WGSL output while collecting a declarations list for binding.
type PreProcessor interface {
	// Process replaces @kal: annotations with their WGSL output. Include annotations are replaced with
	// the embedded chunk. Uniforms, sampler and input annotations are replaced with @group/@binding
	// declarations and recorded in the declarations list.
	//
	// Each chunk is injected at most once per Process call; repeated includes are dropped.
	//
	// Parameters:
	//   - source: the raw WGSL source containing annotations
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or an input slot is declared twice
	Process(source string) (string, error)

	// Declarations returns the binding annotations collected by the most recent Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the embedded chunks registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		chunkRegistry: map[AnnotationArg]string{
			AnnotationArgUniforms:   uniformsChunk,
			AnnotationArgFullscreen: fullscreenChunk,
			AnnotationArgHelpers:    helpersChunk,
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)
	slots := make(map[int]bool)
	bindings := make(map[[2]int]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		if a.Type == annotationTypeInclude {
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			out = append(out, p.chunkRegistry[a.Args[0]])
			continue
		}

		key := [2]int{*a.Group, *a.Binding}
		if bindings[key] {
			return "", fmt.Errorf("line %d: @group(%d) @binding(%d) declared twice", i+1, key[0], key[1])
		}
		bindings[key] = true

		varName := string(a.Args[0])
		switch a.Type {
		case AnnotationTypeUniforms:
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", *a.Group, *a.Binding, varName, UniformStructName))
		case AnnotationTypeSampler:
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var %s: sampler;", *a.Group, *a.Binding, varName))
		case AnnotationTypeInput:
			if slots[a.Slot] {
				return "", fmt.Errorf("line %d: input slot %d declared twice", i+1, a.Slot)
			}
			slots[a.Slot] = true
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var %s: texture_2d<f32>;", *a.Group, *a.Binding, varName))
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
		p.declarations = append(p.declarations, *a)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
