// Package binding is the registry of texture and buffer binding slots shared by the
// host-side resource binding code and the WGSL declarations composed by the shader
// package.
//
// The slot numbers are fixed and several of them alias: two logically different
// resources use the same slot, and the render pass decides which one is live. Rather
// than exposing the aliases as equal integers, every resource is a distinct enum
// member that resolves to its slot through Slot(), and a RenderMode states which
// resources a pass may bind. BindingSet then rejects a second resource on an
// occupied slot instead of silently overwriting it.
package binding

import "fmt"

// Slot is a binding index within a bind group.
type Slot uint32

// Texture slot indices.
const (
	TextureIndexY          Slot = 0
	TextureIndexCbCr       Slot = 1
	TextureIndexDepth      Slot = 2
	TextureIndexConfidence Slot = 3
	TextureIndexRGB        Slot = 3 // aliases TextureIndexConfidence
)

// Buffer slot indices.
const (
	BufferIndexPointCloudUniforms Slot = 0
	BufferIndexParticleUniforms   Slot = 1
	BufferIndexModelVertices      Slot = 1 // aliases BufferIndexParticleUniforms
	BufferIndexGridPoints         Slot = 2
	BufferIndexBoundingBox        Slot = 2 // aliases BufferIndexGridPoints

	// BufferIndexRGBUniforms is where the camera-feed passes read RGBUniforms.
	// It shares slot 0 with the point-cloud uniforms.
	BufferIndexRGBUniforms Slot = 0
)

// WGSL has a single binding namespace per group, so buffers and textures live in
// separate groups to keep their slot numbers independent.
const (
	BufferGroup  = 0
	TextureGroup = 1
)

// TextureResource names a logical texture resource.
type TextureResource int

const (
	TextureY TextureResource = iota
	TextureCbCr
	TextureDepth
	TextureConfidence
	TextureRGB
)

// AllTextures lists every texture resource in declaration order.
var AllTextures = []TextureResource{TextureY, TextureCbCr, TextureDepth, TextureConfidence, TextureRGB}

var textureSlots = map[TextureResource]Slot{
	TextureY:          TextureIndexY,
	TextureCbCr:       TextureIndexCbCr,
	TextureDepth:      TextureIndexDepth,
	TextureConfidence: TextureIndexConfidence,
	TextureRGB:        TextureIndexRGB,
}

var textureNames = map[TextureResource]string{
	TextureY:          "textureY",
	TextureCbCr:       "textureCbCr",
	TextureDepth:      "depthTexture",
	TextureConfidence: "confidenceTexture",
	TextureRGB:        "rgbTexture",
}

// Slot returns the binding index of the texture within TextureGroup.
func (r TextureResource) Slot() Slot {
	return textureSlots[r]
}

// String returns the WGSL variable name used for the texture.
func (r TextureResource) String() string {
	if name, ok := textureNames[r]; ok {
		return name
	}
	return fmt.Sprintf("TextureResource(%d)", int(r))
}

// BufferResource names a logical buffer resource.
type BufferResource int

const (
	BufferPointCloudUniforms BufferResource = iota
	BufferParticleUniforms
	BufferModelVertices
	BufferGridPoints
	BufferBoundingBox
	BufferRGBUniforms
)

// AllBuffers lists every buffer resource in declaration order.
var AllBuffers = []BufferResource{
	BufferPointCloudUniforms,
	BufferParticleUniforms,
	BufferModelVertices,
	BufferGridPoints,
	BufferBoundingBox,
	BufferRGBUniforms,
}

var bufferSlots = map[BufferResource]Slot{
	BufferPointCloudUniforms: BufferIndexPointCloudUniforms,
	BufferParticleUniforms:   BufferIndexParticleUniforms,
	BufferModelVertices:      BufferIndexModelVertices,
	BufferGridPoints:         BufferIndexGridPoints,
	BufferBoundingBox:        BufferIndexBoundingBox,
	BufferRGBUniforms:        BufferIndexRGBUniforms,
}

var bufferNames = map[BufferResource]string{
	BufferPointCloudUniforms: "pointCloudUniforms",
	BufferParticleUniforms:   "particleUniforms",
	BufferModelVertices:      "modelVertices",
	BufferGridPoints:         "gridPoints",
	BufferBoundingBox:        "boundingBox",
	BufferRGBUniforms:        "rgbUniforms",
}

// Slot returns the binding index of the buffer within BufferGroup.
func (r BufferResource) Slot() Slot {
	return bufferSlots[r]
}

// String returns the WGSL variable name used for the buffer.
func (r BufferResource) String() string {
	if name, ok := bufferNames[r]; ok {
		return name
	}
	return fmt.Sprintf("BufferResource(%d)", int(r))
}
