package binding

import "fmt"

// RenderMode selects which resources a pass binds, and therefore which alias is
// live on each aliased slot.
type RenderMode int

const (
	// ModeCameraFeed converts the YCbCr camera image to RGB on screen.
	ModeCameraFeed RenderMode = iota
	// ModeRGB draws a single RGB texture, e.g. a recorded frame, at reduced opacity.
	ModeRGB
	// ModeUnproject samples depth on the grid points and writes particles.
	ModeUnproject
	// ModeParticles draws the accumulated particles.
	ModeParticles
	// ModeBounds draws only the particles inside a bounding box.
	ModeBounds
	// ModeMesh draws reconstructed mesh vertices.
	ModeMesh
)

// AllModes lists every render mode in declaration order.
var AllModes = []RenderMode{ModeCameraFeed, ModeRGB, ModeUnproject, ModeParticles, ModeBounds, ModeMesh}

var modeNames = map[RenderMode]string{
	ModeCameraFeed: "camera_feed",
	ModeRGB:        "rgb",
	ModeUnproject:  "unproject",
	ModeParticles:  "particles",
	ModeBounds:     "bounds",
	ModeMesh:       "mesh",
}

func (m RenderMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RenderMode(%d)", int(m))
}

// BufferAccess is how a pass accesses a buffer.
type BufferAccess int

const (
	AccessUniform BufferAccess = iota
	AccessStorageRead
	AccessStorageReadWrite
)

// AddressSpace returns the WGSL var<> address space for the access.
func (a BufferAccess) AddressSpace() string {
	switch a {
	case AccessStorageRead:
		return "storage, read"
	case AccessStorageReadWrite:
		return "storage, read_write"
	default:
		return "uniform"
	}
}

// BufferUse is one buffer bound by a pass.
type BufferUse struct {
	Resource BufferResource
	Access   BufferAccess
}

type passResources struct {
	textures []TextureResource
	buffers  []BufferUse
}

var modeResources = map[RenderMode]passResources{
	ModeCameraFeed: {
		textures: []TextureResource{TextureY, TextureCbCr},
		buffers:  []BufferUse{{BufferRGBUniforms, AccessUniform}},
	},
	ModeRGB: {
		textures: []TextureResource{TextureRGB},
		buffers:  []BufferUse{{BufferRGBUniforms, AccessUniform}},
	},
	ModeUnproject: {
		textures: []TextureResource{TextureY, TextureCbCr, TextureDepth, TextureConfidence},
		buffers: []BufferUse{
			{BufferPointCloudUniforms, AccessUniform},
			{BufferParticleUniforms, AccessStorageReadWrite},
			{BufferGridPoints, AccessStorageRead},
		},
	},
	ModeParticles: {
		buffers: []BufferUse{
			{BufferPointCloudUniforms, AccessUniform},
			{BufferParticleUniforms, AccessStorageRead},
		},
	},
	ModeBounds: {
		buffers: []BufferUse{
			{BufferPointCloudUniforms, AccessUniform},
			{BufferParticleUniforms, AccessStorageRead},
			{BufferBoundingBox, AccessUniform},
		},
	},
	ModeMesh: {
		buffers: []BufferUse{
			{BufferPointCloudUniforms, AccessUniform},
			{BufferModelVertices, AccessStorageRead},
		},
	},
}

// Textures returns the texture resources the mode binds, in slot order.
func (m RenderMode) Textures() []TextureResource {
	return append([]TextureResource(nil), modeResources[m].textures...)
}

// Buffers returns the buffers the mode binds, in slot order.
func (m RenderMode) Buffers() []BufferUse {
	return append([]BufferUse(nil), modeResources[m].buffers...)
}

// AllowsTexture reports whether the mode binds the texture resource.
func (m RenderMode) AllowsTexture(r TextureResource) bool {
	for _, t := range modeResources[m].textures {
		if t == r {
			return true
		}
	}
	return false
}

// BufferAccess returns how the mode accesses the buffer resource.
//
// Returns:
//   - BufferAccess: the access kind
//   - bool: false if the mode does not bind the buffer
func (m RenderMode) BufferAccess(r BufferResource) (BufferAccess, bool) {
	for _, b := range modeResources[m].buffers {
		if b.Resource == r {
			return b.Access, true
		}
	}
	return 0, false
}

// AllowsBuffer reports whether the mode binds the buffer resource.
func (m RenderMode) AllowsBuffer(r BufferResource) bool {
	_, ok := m.BufferAccess(r)
	return ok
}
