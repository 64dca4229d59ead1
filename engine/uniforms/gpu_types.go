package uniforms

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
)

// Byte sizes of the shared structures under WGSL host-shareable layout rules.
const (
	RGBUniformsSize        = 64
	BoxSize                = 32
	PointCloudUniformsSize = 288
	ParticleUniformsSize   = 48
)

// GPURGBUniformsSource is the canonical WGSL definition of the RGBUniforms struct.
// Matches RGBUniforms layout exactly (64 bytes).
//
//go:embed assets/rgb_uniforms.wgsl
var GPURGBUniformsSource string

// RGBUniforms holds the per-frame parameters used to reproject the RGB camera image
// onto the viewport.
// Matches the WGSL RGBUniforms struct layout exactly (see GPURGBUniformsSource).
// Size: 64 bytes.
type RGBUniforms struct {
	ViewToCamera [12]float32 `wgsl:"viewToCamera"` // offset  0: mat3x3<f32>, three vec3 columns padded to 16 bytes
	ViewRatio    float32     `wgsl:"viewRatio"`    // offset 48: viewport aspect-ratio correction
	_pad         [3]float32  // offset 52: struct rounded up to its 16-byte alignment
}

// Size returns the size of the RGBUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *RGBUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the RGBUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *RGBUniforms) Marshal() []byte {
	buf := make([]byte, RGBUniformsSize)
	common.PutFloat32s(buf, 0, u.ViewToCamera[:]...)
	common.PutFloat32s(buf, 48, u.ViewRatio)
	return buf
}

// GPUBoxSource is the canonical WGSL definition of the Box struct.
// Matches Box layout exactly (32 bytes).
//
//go:embed assets/box.wgsl
var GPUBoxSource string

// Box is an axis-aligned bounding volume. Producers must keep BoxMin <= BoxMax
// componentwise; Validate checks it at the boundary.
// Matches the WGSL Box struct layout exactly (see GPUBoxSource).
// Size: 32 bytes.
type Box struct {
	BoxMin [3]float32 `wgsl:"boxMin"` // offset  0: minimum corner (vec3<f32>)
	_pad0  float32    // offset 12: vec3 padding
	BoxMax [3]float32 `wgsl:"boxMax"` // offset 16: maximum corner (vec3<f32>)
	_pad1  float32    // offset 28: vec3 padding
}

// Size returns the size of the Box struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (b *Box) Size() int {
	return int(unsafe.Sizeof(*b))
}

// Marshal serializes the Box struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (b *Box) Marshal() []byte {
	buf := make([]byte, BoxSize)
	common.PutFloat32s(buf, 0, b.BoxMin[:]...)
	common.PutFloat32s(buf, 16, b.BoxMax[:]...)
	return buf
}

// GPUPointCloudUniformsSource is the canonical WGSL definition of the PointCloudUniforms struct.
// Matches PointCloudUniforms layout exactly (288 bytes).
//
//go:embed assets/point_cloud_uniforms.wgsl
var GPUPointCloudUniformsSource string

// PointCloudUniforms holds the per-frame parameters used to unproject depth samples
// into world space and to control accumulation into the particle ring buffer.
// Matches the WGSL PointCloudUniforms struct layout exactly (see GPUPointCloudUniformsSource).
// Size: 288 bytes.
//
// Layout:
//
//	mat4x4<f32> viewMatrix                (64 bytes, offset   0)
//	mat4x4<f32> projectionMatrix          (64 bytes, offset  64)
//	mat4x4<f32> localToWorld              (64 bytes, offset 128)
//	mat3x3<f32> cameraIntrinsicsInversed  (48 bytes, offset 192)
//	vec2<f32>   cameraResolution          ( 8 bytes, offset 240)
//	vec4<f32>   cameraPosition            (16 bytes, offset 256)
//	f32         particleSize              ( 4 bytes, offset 272)
//	i32         maxPoints                 ( 4 bytes, offset 276)
//	i32         pointCloudCurrentIndex    ( 4 bytes, offset 280)
//	i32         confidenceThreshold       ( 4 bytes, offset 284)
type PointCloudUniforms struct {
	ViewMatrix               [16]float32 `wgsl:"viewMatrix"`
	ProjectionMatrix         [16]float32 `wgsl:"projectionMatrix"`
	LocalToWorld             [16]float32 `wgsl:"localToWorld"`
	CameraIntrinsicsInversed [12]float32 `wgsl:"cameraIntrinsicsInversed"`
	CameraResolution         [2]float32  `wgsl:"cameraResolution"`
	_pad0                    [2]float32  // vec4 alignment for cameraPosition
	CameraPosition           [4]float32  `wgsl:"cameraPosition"`
	ParticleSize             float32     `wgsl:"particleSize"`
	MaxPoints                int32       `wgsl:"maxPoints"`
	PointCloudCurrentIndex   int32       `wgsl:"pointCloudCurrentIndex"`
	// ConfidenceThreshold is an ordinal depth-confidence level, not a probability.
	// Its relation to ParticleUniforms.Confidence is decided by the accumulation stage.
	ConfidenceThreshold int32 `wgsl:"confidenceThreshold"`
}

// Size returns the size of the PointCloudUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (288)
func (u *PointCloudUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes PointCloudUniforms into a 288-byte little-endian buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 288-byte buffer ready for GPU upload
func (u *PointCloudUniforms) Marshal() []byte {
	buf := make([]byte, PointCloudUniformsSize)
	off := common.PutFloat32s(buf, 0, u.ViewMatrix[:]...)
	off = common.PutFloat32s(buf, off, u.ProjectionMatrix[:]...)
	off = common.PutFloat32s(buf, off, u.LocalToWorld[:]...)
	off = common.PutFloat32s(buf, off, u.CameraIntrinsicsInversed[:]...)
	common.PutFloat32s(buf, off, u.CameraResolution[:]...)
	// 248..255 stays zero
	off = common.PutFloat32s(buf, 256, u.CameraPosition[:]...)
	off = common.PutFloat32s(buf, off, u.ParticleSize)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(u.MaxPoints))
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(u.PointCloudCurrentIndex))
	binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(u.ConfidenceThreshold))
	return buf
}

// GPUParticleUniformsSource is the canonical WGSL definition of the ParticleUniforms struct.
// Matches ParticleUniforms layout exactly (48 bytes).
//
//go:embed assets/particle_uniforms.wgsl
var GPUParticleUniformsSource string

// ParticleUniforms is one accumulated point, an element of the particle storage array.
// The scalar confidence packs into the tail of the color vec3, so there is no padding
// after Color.
// Matches the WGSL ParticleUniforms struct layout exactly (see GPUParticleUniformsSource).
// Size: 48 bytes.
type ParticleUniforms struct {
	Position   [3]float32 `wgsl:"position"`   // offset  0: world-space location
	_pad0      float32    // offset 12
	Normal     [3]float32 `wgsl:"normal"`     // offset 16: estimated surface normal
	_pad1      float32    // offset 28
	Color      [3]float32 `wgsl:"color"`      // offset 32: RGB sampled at capture time
	Confidence float32    `wgsl:"confidence"` // offset 44: per-point confidence score
}

// Size returns the size of the ParticleUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (p *ParticleUniforms) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the ParticleUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (p *ParticleUniforms) Marshal() []byte {
	buf := make([]byte, ParticleUniformsSize)
	p.marshalInto(buf)
	return buf
}

// marshalInto writes the particle into the first 48 bytes of buf.
func (p *ParticleUniforms) marshalInto(buf []byte) {
	common.PutFloat32s(buf, 0, p.Position[:]...)
	common.PutFloat32s(buf, 12, 0)
	common.PutFloat32s(buf, 16, p.Normal[:]...)
	common.PutFloat32s(buf, 28, 0)
	common.PutFloat32s(buf, 32, p.Color[:]...)
	common.PutFloat32s(buf, 44, p.Confidence)
}

// Unmarshal decodes a particle from the first 48 bytes of buf, as read back from
// the particle storage buffer.
//
// Parameters:
//   - buf: at least 48 bytes of little-endian particle data
//
// Returns:
//   - error: ErrShortBuffer if buf is smaller than one particle
func (p *ParticleUniforms) Unmarshal(buf []byte) error {
	if len(buf) < ParticleUniformsSize {
		return ErrShortBuffer
	}
	common.Float32sAt(buf, 0, p.Position[:])
	common.Float32sAt(buf, 16, p.Normal[:])
	common.Float32sAt(buf, 32, p.Color[:])
	p.Confidence = common.Float32At(buf, 44)
	return nil
}
