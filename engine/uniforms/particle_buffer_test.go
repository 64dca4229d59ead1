package uniforms

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParticles(n int) []ParticleUniforms {
	ps := make([]ParticleUniforms, n)
	for i := range ps {
		f := float32(i)
		ps[i] = ParticleUniforms{
			Position:   [3]float32{f, f + 1, f + 2},
			Normal:     [3]float32{0, 0, 1},
			Color:      [3]float32{f / float32(n), 0.5, 1},
			Confidence: float32(i % 3),
		}
	}
	return ps
}

func TestMarshalParticlesStride(t *testing.T) {
	ps := sampleParticles(3)
	buf := MarshalParticles(ps)
	require.Len(t, buf, 3*ParticleUniformsSize)

	assert.Equal(t, float32(2), f32At(buf, 2*ParticleUniformsSize))
	assert.Equal(t, float32(2), f32At(buf, 2*ParticleUniformsSize+44))

	got, err := UnmarshalParticles(buf)
	require.NoError(t, err)
	assert.Equal(t, ps, got)

	_, err = UnmarshalParticles(buf[:50])
	assert.ErrorIs(t, err, ErrBufferStride)
}

func TestParticleMarshalerMatchesSerial(t *testing.T) {
	ps := sampleParticles(1000)
	m := NewParticleMarshaler(WithChunkSize(64), WithWorkers(4))

	assert.Equal(t, MarshalParticles(ps), m.Marshal(ps))
	assert.Equal(t, MarshalParticles(ps[:10]), m.Marshal(ps[:10]))
	assert.Empty(t, m.Marshal(nil))
	m.Close()
}

func TestParticleMarshalerClose(t *testing.T) {
	ps := sampleParticles(500)
	m := NewParticleMarshaler(WithChunkSize(32), WithWorkers(2))
	m.Close()
	m.Close()
	assert.True(t, m.closed.Load())
	assert.Equal(t, MarshalParticles(ps), m.Marshal(ps), "a closed marshaler encodes serially")
}

func TestGridPoints(t *testing.T) {
	points := GridPoints(mgl32.Vec2{256, 192}, 1000)
	// spacing = sqrt(256*192/1000) ≈ 7.01, so 37 columns by 27 rows
	require.Len(t, points, 37*27)

	spacing := points[1][0] - points[0][0]
	assert.InDelta(t, 7.0107, spacing, 1e-3)
	assert.InDelta(t, spacing/2, points[0][0], 1e-4)
	assert.InDelta(t, spacing/2, points[0][1], 1e-4)
	assert.InDelta(t, spacing, points[37][0], 1e-4, "odd rows shift by half a cell")
	assert.InDelta(t, 1.5*spacing, points[37][1], 1e-4)

	assert.Nil(t, GridPoints(mgl32.Vec2{0, 192}, 1000))
	assert.Nil(t, GridPoints(mgl32.Vec2{256, 192}, 0))

	buf := MarshalGridPoints(points[:2])
	require.Len(t, buf, 2*GridPointStride)
	assert.Equal(t, points[1][0], f32At(buf, 8))
}
