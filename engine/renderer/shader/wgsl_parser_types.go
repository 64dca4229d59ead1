package shader

import "github.com/cogentcore/webgpu/wgpu"

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
// Used to compute MinBindingSize for buffer bindings and field offsets for layout checks.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// FieldLayout is the host-shareable placement of one WGSL struct member.
type FieldLayout struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
	Align  uint64
}

// StructLayout is the host-shareable layout of a WGSL struct.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []FieldLayout
}

// Field returns the member with the given name.
func (l StructLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}
