package binding

import (
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/cogentcore/webgpu/wgpu"
)

// ModelVertexStride is the byte stride of the mesh vertex buffer (array<f32>).
const ModelVertexStride = 4

type bufferInfo struct {
	wgslType string
	minSize  uint64
}

// For runtime-sized arrays the minimum binding size is one element.
var bufferInfos = map[BufferResource]bufferInfo{
	BufferPointCloudUniforms: {"PointCloudUniforms", uniforms.PointCloudUniformsSize},
	BufferParticleUniforms:   {"array<ParticleUniforms>", uniforms.ParticleUniformsSize},
	BufferModelVertices:      {"array<f32>", ModelVertexStride},
	BufferGridPoints:         {"array<vec2<f32>>", uniforms.GridPointStride},
	BufferBoundingBox:        {"Box", uniforms.BoxSize},
	BufferRGBUniforms:        {"RGBUniforms", uniforms.RGBUniformsSize},
}

type textureInfo struct {
	wgslType   string
	sampleType wgpu.TextureSampleType
}

// Depth is read as raw float32 meters and must not be filtered. Confidence is an
// integer level per pixel.
var textureInfos = map[TextureResource]textureInfo{
	TextureY:          {"texture_2d<f32>", wgpu.TextureSampleTypeFloat},
	TextureCbCr:       {"texture_2d<f32>", wgpu.TextureSampleTypeFloat},
	TextureDepth:      {"texture_2d<f32>", wgpu.TextureSampleTypeUnfilterableFloat},
	TextureConfidence: {"texture_2d<u32>", wgpu.TextureSampleTypeUint},
	TextureRGB:        {"texture_2d<f32>", wgpu.TextureSampleTypeFloat},
}

// WGSLType returns the WGSL store type the buffer is declared with.
func (r BufferResource) WGSLType() string {
	return bufferInfos[r].wgslType
}

// MinBindingSize returns the smallest byte size a buffer bound at this resource may have.
func (r BufferResource) MinBindingSize() uint64 {
	return bufferInfos[r].minSize
}

// WGSLType returns the WGSL texture type the texture is declared with.
func (r TextureResource) WGSLType() string {
	return textureInfos[r].wgslType
}

// SampleType returns the texture sample type used in the bind group layout.
func (r TextureResource) SampleType() wgpu.TextureSampleType {
	return textureInfos[r].sampleType
}

// Layout builds the bind group layout descriptors for a render mode.
// Buffers are placed in BufferGroup and textures in TextureGroup; a mode with
// no textures yields a single group.
//
// Parameters:
//   - mode: the render mode whose resources are laid out
//   - visibility: the shader stages that see every entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
func Layout(mode RenderMode, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int]wgpu.BindGroupLayoutDescriptor, 2)

	if buffers := mode.Buffers(); len(buffers) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(buffers))
		for _, use := range buffers {
			entries = append(entries, BufferLayoutEntry(use, visibility))
		}
		groups[BufferGroup] = wgpu.BindGroupLayoutDescriptor{
			Label:   mode.String() + " buffers",
			Entries: entries,
		}
	}

	if textures := mode.Textures(); len(textures) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(textures))
		for _, tex := range textures {
			entries = append(entries, TextureLayoutEntry(tex, visibility))
		}
		groups[TextureGroup] = wgpu.BindGroupLayoutDescriptor{
			Label:   mode.String() + " textures",
			Entries: entries,
		}
	}

	return groups
}

// BufferLayoutEntry builds the layout entry for one buffer use.
func BufferLayoutEntry(use BufferUse, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(use.Resource.Slot()),
		Visibility: visibility,
	}
	switch use.Access {
	case AccessStorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case AccessStorageReadWrite:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	default:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	}
	entry.Buffer.MinBindingSize = use.Resource.MinBindingSize()
	return entry
}

// TextureLayoutEntry builds the layout entry for one sampled texture.
func TextureLayoutEntry(r TextureResource, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(r.Slot()),
		Visibility: visibility,
	}
	entry.Texture.SampleType = r.SampleType()
	entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	return entry
}
