// annotations.go defines the annotation types and parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that
// inject the shared uniform struct sources and the binding declarations of a render
// mode, so hand-written shaders never restate slot numbers.
package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered struct definition.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include point_cloud_uniforms
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindings emits the @group/@binding declarations of a render mode,
	// plus any registered struct the declarations need that was not already included.
	// A source may carry at most one bindings annotation.
	//
	// Syntax: //@oxy:bindings <mode>
	//
	// Example: //@oxy:bindings unproject
	AnnotationTypeBindings AnnotationType = "bindings"
)

// Annotation is a parsed @oxy: comment line.
type Annotation struct {
	Type AnnotationType

	// Args holds the arguments after the annotation type.
	Args []AnnotationArg

	// Line is the 1-based source line of the annotation.
	Line int

	// Mode is set for AnnotationTypeBindings.
	Mode binding.RenderMode
}

// AnnotationArg is a single whitespace-separated annotation argument.
type AnnotationArg string

// Struct type arguments accepted by @oxy:include.
const (
	AnnotationArgRGBUniforms        AnnotationArg = "rgb_uniforms"
	AnnotationArgBox                AnnotationArg = "box"
	AnnotationArgPointCloudUniforms AnnotationArg = "point_cloud_uniforms"
	AnnotationArgParticleUniforms   AnnotationArg = "particle_uniforms"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgRGBUniforms,
	AnnotationArgBox,
	AnnotationArgPointCloudUniforms,
	AnnotationArgParticleUniforms,
}

// ParseMode resolves a render mode from its String() name.
func ParseMode(name string) (binding.RenderMode, error) {
	for _, m := range binding.AllModes {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown render mode %q", name)
}

// parseAnnotation parses a single line. Lines without the prefix return (nil, nil).
//
// Parameters:
//   - line: one line of WGSL source
//   - lineNum: the 1-based line number, used in error messages
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a description of a malformed annotation
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
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindings:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy bindings annotation requires exactly one argument (render mode)", lineNum)
		}
		mode, err := ParseMode(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		return &Annotation{
			Type: AnnotationTypeBindings,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
			Mode: mode,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
	}
}
