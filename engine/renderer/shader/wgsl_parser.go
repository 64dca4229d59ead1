package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslSampledTextureMap maps WGSL sampled texture base names to their view dimension and multisampled flag
var wgslSampledTextureMap = map[string]sampledTextureInfo{
	"texture_1d":              {wgpu.TextureViewDimension1D, false},
	"texture_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_3d":              {wgpu.TextureViewDimension3D, false},
	"texture_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_multisampled_2d": {wgpu.TextureViewDimension2D, true},
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their wgpu texture sample type
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// computeEntryRegex matches @compute functions and captures the entry point name
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> pointCloudUniforms: PointCloudUniforms;
	// or handle types: @group(1) @binding(2) var depthTexture: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// ParseStructLayouts computes the host-shareable layout of every struct declared in
// WGSL source. Structs referencing types that cannot be resolved are omitted.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - map[string]StructLayout: layouts keyed by struct name
func ParseStructLayouts(source string) map[string]StructLayout {
	return computeStructLayouts(parseStructBlocks(stripComments(source)))
}

// parseBindGroupLayouts extracts all @group(N) @binding(M) resource declarations from WGSL
// source and returns them as wgpu.BindGroupLayoutDescriptor values grouped by group index.
// Each descriptor's entries are sorted by binding index. The provided visibility flag is
// applied to all entries.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - visibility: the shader stage visibility flag to set on each entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)
	cleaned := stripComments(source)

	structs := computeStructLayouts(parseStructBlocks(cleaned))
	known := make(map[string]wgslTypeLayout, len(structs))
	for name, l := range structs {
		known[name] = wgslTypeLayout{l.Size, l.Align}
	}

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		entry := classifyResource(uint32(binding), visibility, addressSpace, typeName)

		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveTypeLayout(typeName, known); ok && layout.size > 0 {
				entry.Buffer.MinBindingSize = layout.size
			}
		}

		groups[group] = append(groups[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{
			Entries: entries,
		}
	}

	return result, varNames
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Omitted dimensions default to 1; [1, 1, 1] is returned if no annotation is found.
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if match == nil {
		return result
	}

	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}

	return result
}

// parseEntryPoint extracts the entry point function name for the given shader type
// from WGSL source. Returns an empty string if no matching entry point is found.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - shaderType: the shader type to search for
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, shaderType ShaderType) string {
	var re *regexp.Regexp
	switch shaderType {
	case ShaderTypeVertex:
		re = vertexEntryRegex
	case ShaderTypeFragment:
		re = fragmentEntryRegex
	case ShaderTypeCompute:
		re = computeEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(stripComments(source)); match != nil {
		return match[1]
	}
	return ""
}

// hasEntryPoint reports whether the source declares any entry point.
func hasEntryPoint(source string) bool {
	for _, st := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if parseEntryPoint(source, st) != "" {
			return true
		}
	}
	return false
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source, in source order
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into individual fields
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		fields = append(fields, parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			isBuiltin: builtinRegex.MatchString(line),
		})
	}

	return fields
}
