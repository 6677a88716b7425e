// annotations.go defines the annotation types and parser for the pass program pre-processor.
// Annotations are single-line WGSL comments prefixed with @kal: that inject shared WGSL chunks
// and declare the bindings every pass program uses: the shared uniform block, the shared
// sampler and the numbered texture inputs. The parsed results are stored as Annotation values
// and consumed by the renderer to bind textures to input slots without variable-name lookups.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@kal:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered chunk at the annotation site.
	// It does not produce a declaration.
	//
	// Syntax: //@kal:include <chunk>
	//
	// Example: //@kal:include fullscreen
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeUniforms declares the shared PassUniforms block.
	//
	// Syntax: //@kal:uniforms <group> <binding> <var_name>
	//
	// Example: //@kal:uniforms 0 0 u
	AnnotationTypeUniforms AnnotationType = "uniforms"

	// AnnotationTypeSampler declares the shared filtering sampler.
	//
	// Syntax: //@kal:sampler <group> <binding> <var_name>
	//
	// Example: //@kal:sampler 0 1 samp
	AnnotationTypeSampler AnnotationType = "sampler"

	// AnnotationTypeInput declares a sampled 2D texture bound to a numbered pass input slot.
	//
	// Syntax: //@kal:input <group> <binding> <slot> <var_name>
	//
	// Example: //@kal:input 0 2 0 src
	AnnotationTypeInput AnnotationType = "input"
)

// Annotation represents a single parsed @kal: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = chunk key (e.g. "fullscreen")
	//   - uniforms, sampler, input: [0] = var name
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation was found.
	Line int

	// Group is the @group index for binding annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for binding annotations. Nil for include annotations.
	Binding *int

	// Slot is the pass input slot for input annotations, -1 otherwise.
	Slot int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

const (
	// AnnotationArgUniforms identifies the PassUniforms struct chunk.
	// Source: chunks/uniforms.wgsl
	AnnotationArgUniforms AnnotationArg = "uniforms"

	// AnnotationArgFullscreen identifies the fullscreen-triangle vertex stage chunk.
	// Source: chunks/fullscreen.wgsl
	AnnotationArgFullscreen AnnotationArg = "fullscreen"

	// AnnotationArgHelpers identifies the shared math helper chunk.
	// Source: chunks/helpers.wgsl
	AnnotationArgHelpers AnnotationArg = "helpers"
)

// validChunks lists all AnnotationArg values accepted by @kal:include.
var validChunks = []AnnotationArg{
	AnnotationArgUniforms,
	AnnotationArgFullscreen,
	AnnotationArgHelpers,
}

// parseAnnotation attempts to parse a single line of WGSL source as a @kal: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @kal annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @kal include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validChunks, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown chunk %q in @kal include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
			Slot: -1,
		}, nil
	case AnnotationTypeUniforms, AnnotationTypeSampler:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @kal %s annotation requires group, binding and var name", lineNum, args[0])
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		return &Annotation{
			Type:    AnnotationType(args[0]),
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
			Slot:    -1,
		}, nil
	case AnnotationTypeInput:
		if len(args) != 5 {
			return nil, fmt.Errorf("line %d: @kal input annotation requires group, binding, slot and var name", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		slot, err := strconv.Atoi(args[3])
		if err != nil || slot < 0 {
			return nil, fmt.Errorf("line %d: invalid input slot %q in @kal input annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeInput,
			Args:    []AnnotationArg{AnnotationArg(args[4])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
			Slot:    slot,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @kal annotation type %q", lineNum, args[0])
	}
}

func parseGroupBinding(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil || group < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q", lineNum, groupArg)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q", lineNum, bindingArg)
	}
	return group, binding, nil
}
