package uniforms

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func i32At(buf []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(buf[off:]))
}

func TestStructSizes(t *testing.T) {
	assert.Equal(t, RGBUniformsSize, (&RGBUniforms{}).Size())
	assert.Equal(t, BoxSize, (&Box{}).Size())
	assert.Equal(t, PointCloudUniformsSize, (&PointCloudUniforms{}).Size())
	assert.Equal(t, ParticleUniformsSize, (&ParticleUniforms{}).Size())

	assert.Len(t, (&RGBUniforms{}).Marshal(), RGBUniformsSize)
	assert.Len(t, (&Box{}).Marshal(), BoxSize)
	assert.Len(t, (&PointCloudUniforms{}).Marshal(), PointCloudUniformsSize)
	assert.Len(t, (&ParticleUniforms{}).Marshal(), ParticleUniformsSize)
}

func TestRGBUniformsMarshalOffsets(t *testing.T) {
	u := RGBUniforms{ViewRatio: 0.75}
	for i := range u.ViewToCamera {
		u.ViewToCamera[i] = float32(i + 1)
	}
	buf := u.Marshal()

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(12), f32At(buf, 44))
	assert.Equal(t, float32(0.75), f32At(buf, 48))
	for off := 52; off < 64; off += 4 {
		assert.Zero(t, f32At(buf, off), "padding at %d", off)
	}
}

func TestBoxMarshalOffsets(t *testing.T) {
	b := NewBox([3]float32{1, 2, 3}, [3]float32{4, 5, 6})
	buf := b.Marshal()

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(3), f32At(buf, 8))
	assert.Zero(t, f32At(buf, 12))
	assert.Equal(t, float32(4), f32At(buf, 16))
	assert.Equal(t, float32(6), f32At(buf, 24))
	assert.Zero(t, f32At(buf, 28))
}

func TestPointCloudUniformsMarshalOffsets(t *testing.T) {
	u := NewPointCloudUniforms(
		WithMaxPoints(1000),
		WithParticleSize(4),
		WithConfidenceThreshold(1),
		WithCameraResolution(256, 192),
	)
	u.PointCloudCurrentIndex = 999
	u.CameraPosition = [4]float32{7, 8, 9, 1}
	u.ViewMatrix[12] = -3
	buf := u.Marshal()

	assert.Equal(t, float32(1), f32At(buf, 0), "viewMatrix[0]")
	assert.Equal(t, float32(-3), f32At(buf, 48), "viewMatrix[12]")
	assert.Equal(t, float32(1), f32At(buf, 64), "projectionMatrix[0]")
	assert.Equal(t, float32(1), f32At(buf, 128), "localToWorld[0]")
	assert.Equal(t, float32(1), f32At(buf, 192), "intrinsics col0.x")
	assert.Zero(t, f32At(buf, 204), "intrinsics col0 padding")
	assert.Equal(t, float32(1), f32At(buf, 212), "intrinsics col1.y")
	assert.Equal(t, float32(256), f32At(buf, 240))
	assert.Equal(t, float32(192), f32At(buf, 244))
	assert.Zero(t, f32At(buf, 248))
	assert.Zero(t, f32At(buf, 252))
	assert.Equal(t, float32(7), f32At(buf, 256))
	assert.Equal(t, float32(1), f32At(buf, 268))
	assert.Equal(t, float32(4), f32At(buf, 272))
	assert.Equal(t, int32(1000), i32At(buf, 276))
	assert.Equal(t, int32(999), i32At(buf, 280))
	assert.Equal(t, int32(1), i32At(buf, 284))
}

func TestParticleUniformsRoundTrip(t *testing.T) {
	p := ParticleUniforms{
		Position:   [3]float32{1, 2, 3},
		Normal:     [3]float32{0, 1, 0},
		Color:      [3]float32{0.25, 0.5, 0.75},
		Confidence: 2,
	}
	buf := p.Marshal()
	assert.Equal(t, float32(0.75), f32At(buf, 40))
	assert.Equal(t, float32(2), f32At(buf, 44), "confidence packs into the color vec3 tail")

	var got ParticleUniforms
	require.NoError(t, got.Unmarshal(buf))
	assert.Equal(t, p, got)

	assert.ErrorIs(t, got.Unmarshal(buf[:47]), ErrShortBuffer)
}

func TestNewPointCloudUniformsDefaults(t *testing.T) {
	u := NewPointCloudUniforms()

	assert.Equal(t, int32(DefaultMaxPoints), u.MaxPoints)
	assert.Equal(t, DefaultParticleSize, u.ParticleSize)
	assert.Equal(t, int32(DefaultConfidenceThreshold), u.ConfidenceThreshold)
	assert.Zero(t, u.PointCloudCurrentIndex)
	assert.NoError(t, u.Validate())
}
