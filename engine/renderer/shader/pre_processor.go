// pre_processor.go implements the Oxy WGSL shader pre-processor. It replaces @oxy:
// annotations with the embedded uniform struct sources and with the binding
// declarations generated from the binding registry, so the slot numbers used by
// shaders and by the host come from the same table.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
)

// registryEntry pairs a WGSL struct source (embedded from a .wgsl asset file) with the
// WGSL type name it declares and a zero value of the Go type that mirrors it.
type registryEntry struct {
	Source string
	Type   string
	Go     any
}

// structRegistry maps include arguments to the shared uniform structs.
var structRegistry = map[AnnotationArg]registryEntry{
	AnnotationArgRGBUniforms:        {Source: uniforms.GPURGBUniformsSource, Type: "RGBUniforms", Go: uniforms.RGBUniforms{}},
	AnnotationArgBox:                {Source: uniforms.GPUBoxSource, Type: "Box", Go: uniforms.Box{}},
	AnnotationArgPointCloudUniforms: {Source: uniforms.GPUPointCloudUniformsSource, Type: "PointCloudUniforms", Go: uniforms.PointCloudUniforms{}},
	AnnotationArgParticleUniforms:   {Source: uniforms.GPUParticleUniformsSource, Type: "ParticleUniforms", Go: uniforms.ParticleUniforms{}},
}

// RegisteredStruct describes one shared struct known to the pre-processor.
type RegisteredStruct struct {
	Arg    AnnotationArg
	Type   string
	Source string
	Go     any
}

// RegisteredStructs returns every shared struct in include-argument order.
func RegisteredStructs() []RegisteredStruct {
	out := make([]RegisteredStruct, 0, len(validStructTypes))
	for _, arg := range validStructTypes {
		e := structRegistry[arg]
		out = append(out, RegisteredStruct{Arg: arg, Type: e.Type, Source: e.Source, Go: e.Go})
	}
	return out
}

// structArgForType finds the include argument of the struct a binding type refers to,
// looking through runtime-sized arrays.
func structArgForType(wgslType string) (AnnotationArg, bool) {
	if base, params := splitTypeParams(wgslType); base == "array" {
		wgslType = strings.TrimSpace(splitAtTopLevelCommas(params)[0])
	}
	for arg, e := range structRegistry {
		if e.Type == wgslType {
			return arg, true
		}
	}
	return "", false
}

// bindingDeclarations generates the @group/@binding lines for a render mode,
// buffers first then textures, each in slot order.
//
// Parameters:
//   - mode: the render mode whose resources are declared
//
// Returns:
//   - []string: one WGSL declaration per resource
func bindingDeclarations(mode binding.RenderMode) []string {
	var out []string
	for _, use := range mode.Buffers() {
		out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<%s> %s: %s;",
			binding.BufferGroup, use.Resource.Slot(), use.Access.AddressSpace(), use.Resource, use.Resource.WGSLType()))
	}
	for _, tex := range mode.Textures() {
		out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;",
			binding.TextureGroup, tex.Slot(), tex, tex.WGSLType()))
	}
	return out
}

// Compose builds the WGSL preamble for a render mode: the struct definitions the
// mode's buffers need followed by its binding declarations.
//
// Parameters:
//   - mode: the render mode to compose
//
// Returns:
//   - string: WGSL source with no entry points
//   - error: an error if mode is not a known render mode
func Compose(mode binding.RenderMode) (string, error) {
	out, err := processLines([]string{"//@oxy:bindings " + mode.String()})
	if err != nil {
		return "", fmt.Errorf("compose %s: %w", mode, err)
	}
	return out.source, nil
}

// processed is the result of running the pre-processor over a source.
type processed struct {
	source      string
	mode        binding.RenderMode
	hasBindings bool
}

// Process takes raw WGSL shader source and replaces @oxy:include annotations with the
// embedded struct source and the @oxy:bindings annotation with the mode's struct
// definitions and binding declarations. Structs are emitted once even if included twice.
//
// Parameters:
//   - source: the raw WGSL shader source code containing annotations
//
// Returns:
//   - string: the processed WGSL source
//   - binding.RenderMode: the mode named by the bindings annotation
//   - error: a malformed annotation, a second bindings annotation, or a missing one
func Process(source string) (string, binding.RenderMode, error) {
	p, err := processLines(strings.Split(source, "\n"))
	if err != nil {
		return "", 0, err
	}
	if !p.hasBindings {
		return "", 0, fmt.Errorf("shader source has no @oxy:bindings annotation")
	}
	return p.source, p.mode, nil
}

func processLines(lines []string) (processed, error) {
	var res processed
	included := make(map[AnnotationArg]bool)
	out := make([]string, 0, len(lines))

	include := func(arg AnnotationArg) {
		if included[arg] {
			return
		}
		included[arg] = true
		out = append(out, strings.TrimRight(structRegistry[arg].Source, "\n"))
	}

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return processed{}, err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			include(a.Args[0])
		case AnnotationTypeBindings:
			if res.hasBindings {
				return processed{}, fmt.Errorf("line %d: duplicate @oxy:bindings annotation", i+1)
			}
			res.hasBindings = true
			res.mode = a.Mode
			for _, use := range a.Mode.Buffers() {
				if arg, ok := structArgForType(use.Resource.WGSLType()); ok {
					include(arg)
				}
			}
			out = append(out, bindingDeclarations(a.Mode)...)
		}
	}

	res.source = strings.Join(out, "\n")
	return res, nil
}
