package shader

import (
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap maps WGSL primitive, vector, matrix, and atomic type names
// to their byte size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	// Scalars
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	// Vectors – f32
	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	// Vectors – i32
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	// Vectors – u32
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	// Matrices – matCxR<f32>: C columns of vecR<f32>, stride = roundUp(align(vecR), size(vecR))
	"mat2x2<f32>": {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x3<f32>": {64, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},

	// Atomic types
	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously-computed struct layouts. Handles fixed-size arrays (array<T, N>); for
// runtime-sized arrays (array<T>) the element stride is returned.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "f32", "Box", "array<ParticleUniforms>"
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	base, params := splitTypeParams(typeName)
	if base != "array" || params == "" {
		return wgslTypeLayout{}, false
	}

	parts := splitAtTopLevelCommas(params)
	elemLayout, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := common.RoundUpAlign(elemLayout.align, elemLayout.size)

	if len(parts) == 2 {
		count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return wgslTypeLayout{}, false
		}
		return wgslTypeLayout{count * stride, elemLayout.align}, true
	}

	// runtime-sized: one element is the smallest useful binding
	return wgslTypeLayout{stride, elemLayout.align}, true
}

// computeStructLayout places each field at the next offset aligned for its type and
// rounds the total size up to the largest field alignment. Fields with @builtin
// attributes are skipped as they are not part of the buffer layout.
//
// Parameters:
//   - ps: the parsed struct whose layout to compute
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - StructLayout: the computed layout including per-field offsets
//   - bool: true if all fields could be resolved
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (StructLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)
	fields := make([]FieldLayout, 0, len(ps.fields))

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}

		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return StructLayout{}, false
		}

		offset = common.RoundUpAlign(fieldLayout.align, offset)
		fields = append(fields, FieldLayout{
			Name:   field.name,
			Type:   field.typeName,
			Offset: offset,
			Size:   fieldLayout.size,
			Align:  fieldLayout.align,
		})
		offset += fieldLayout.size

		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}
	}

	return StructLayout{
		Name:   ps.name,
		Size:   common.RoundUpAlign(maxAlign, offset),
		Align:  maxAlign,
		Fields: fields,
	}, true
}

// computeStructLayouts computes the layout of all parsed WGSL structs, resolving
// dependencies between structs iteratively. Structs whose fields never resolve are
// left out of the result.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]StructLayout: a map from struct name to computed layout
func computeStructLayouts(structs []parsedStruct) map[string]StructLayout {
	resolved := make(map[string]StructLayout, len(structs))
	known := make(map[string]wgslTypeLayout, len(structs))
	remaining := make([]parsedStruct, len(structs))
	copy(remaining, structs)

	for len(remaining) > 0 {
		progress := false
		next := remaining[:0]

		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, known); ok {
				resolved[ps.name] = layout
				known[ps.name] = wgslTypeLayout{layout.Size, layout.Align}
				progress = true
			} else {
				next = append(next, ps)
			}
		}

		remaining = next
		if !progress {
			break
		}
	}

	return resolved
}

// classifyResource creates a wgpu.BindGroupLayoutEntry from a parsed WGSL resource declaration.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the shader stage visibility flag
//   - addressSpace: the address space qualifier (e.g. "uniform", "storage, read_write"), empty for handle types
//   - typeName: the WGSL type string (e.g. "PointCloudUniforms", "texture_2d<f32>", "sampler")
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: a populated layout entry for the resource
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			} else {
				entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		}
		return entry
	}

	switch {
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case strings.HasPrefix(typeName, "texture_"):
		base, param := splitTypeParams(typeName)
		if info, ok := wgslSampledTextureMap[base]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
		if st, ok := wgslSampleTypeMap[param]; ok {
			entry.Texture.SampleType = st
		}
	}

	return entry
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "array<vec2<f32>>" returns ("array", "vec2<f32>").
//
// Parameters:
//   - typeName: the WGSL type string to split
//
// Returns:
//   - base: the type name before the first angle bracket
//   - params: the content between the outer angle brackets, or empty if none
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	base = before
	params = strings.TrimSuffix(after, ">")
	params = strings.TrimSpace(params)
	return base, params
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source so they
// do not interfere with struct and field parsing
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets,
// so array<T, 6> stays one part.
//
// Parameters:
//   - s: the string to split (typically the body of a WGSL struct)
//
// Returns:
//   - []string: substrings between top-level commas
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
