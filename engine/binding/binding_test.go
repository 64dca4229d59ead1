package binding

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotValues(t *testing.T) {
	assert.Equal(t, Slot(0), TextureIndexY)
	assert.Equal(t, Slot(1), TextureIndexCbCr)
	assert.Equal(t, Slot(2), TextureIndexDepth)
	assert.Equal(t, Slot(3), TextureIndexConfidence)
	assert.Equal(t, Slot(3), TextureIndexRGB)

	assert.Equal(t, Slot(0), BufferIndexPointCloudUniforms)
	assert.Equal(t, Slot(1), BufferIndexParticleUniforms)
	assert.Equal(t, Slot(1), BufferIndexModelVertices)
	assert.Equal(t, Slot(2), BufferIndexGridPoints)
	assert.Equal(t, Slot(2), BufferIndexBoundingBox)
}

func TestAliasedResourcesStayDistinct(t *testing.T) {
	assert.NotEqual(t, TextureConfidence, TextureRGB)
	assert.Equal(t, TextureConfidence.Slot(), TextureRGB.Slot())

	assert.NotEqual(t, BufferParticleUniforms, BufferModelVertices)
	assert.Equal(t, BufferParticleUniforms.Slot(), BufferModelVertices.Slot())
	assert.NotEqual(t, BufferGridPoints, BufferBoundingBox)
	assert.Equal(t, BufferGridPoints.Slot(), BufferBoundingBox.Slot())

	names := map[string]bool{}
	for _, r := range AllTextures {
		names[r.String()] = true
	}
	for _, r := range AllBuffers {
		names[r.String()] = true
	}
	assert.Len(t, names, len(AllTextures)+len(AllBuffers))
}

func TestNoModeBindsTwoResourcesToOneSlot(t *testing.T) {
	for _, mode := range AllModes {
		texSlots := map[Slot]TextureResource{}
		for _, r := range mode.Textures() {
			held, taken := texSlots[r.Slot()]
			assert.False(t, taken, "%s: texture slot %d used by %s and %s", mode, r.Slot(), held, r)
			texSlots[r.Slot()] = r
		}
		bufSlots := map[Slot]BufferResource{}
		for _, use := range mode.Buffers() {
			held, taken := bufSlots[use.Resource.Slot()]
			assert.False(t, taken, "%s: buffer slot %d used by %s and %s", mode, use.Resource.Slot(), held, use.Resource)
			bufSlots[use.Resource.Slot()] = use.Resource
		}
	}
}

func TestModeAllowances(t *testing.T) {
	assert.True(t, ModeUnproject.AllowsTexture(TextureConfidence))
	assert.False(t, ModeUnproject.AllowsTexture(TextureRGB))
	assert.True(t, ModeRGB.AllowsTexture(TextureRGB))
	assert.False(t, ModeRGB.AllowsTexture(TextureConfidence))

	assert.True(t, ModeMesh.AllowsBuffer(BufferModelVertices))
	assert.False(t, ModeMesh.AllowsBuffer(BufferParticleUniforms))
	assert.True(t, ModeBounds.AllowsBuffer(BufferBoundingBox))
	assert.False(t, ModeBounds.AllowsBuffer(BufferGridPoints))

	access, ok := ModeUnproject.BufferAccess(BufferParticleUniforms)
	require.True(t, ok)
	assert.Equal(t, AccessStorageReadWrite, access)
	access, ok = ModeParticles.BufferAccess(BufferParticleUniforms)
	require.True(t, ok)
	assert.Equal(t, AccessStorageRead, access)

	assert.Equal(t, "unproject", ModeUnproject.String())
	assert.Equal(t, "RenderMode(42)", RenderMode(42).String())
}

func TestBindingSetRejectsAliasCollision(t *testing.T) {
	set := NewBindingSet(ModeUnproject)

	slot, err := set.BindTexture(TextureConfidence)
	require.NoError(t, err)
	assert.Equal(t, Slot(3), slot)

	_, err = set.BindTexture(TextureRGB)
	assert.ErrorIs(t, err, ErrResourceNotInMode)

	_, err = set.BindTexture(TextureConfidence)
	assert.NoError(t, err, "rebinding the same resource is allowed")

	_, err = set.BindBuffer(BufferGridPoints)
	require.NoError(t, err)
	_, err = set.BindBuffer(BufferBoundingBox)
	assert.ErrorIs(t, err, ErrResourceNotInMode)

	r, ok := set.Buffer(BufferIndexGridPoints)
	require.True(t, ok)
	assert.Equal(t, BufferGridPoints, r)

	set.Unbind()
	_, ok = set.Texture(TextureIndexConfidence)
	assert.False(t, ok)
}

func TestBindingSetSlotOccupied(t *testing.T) {
	// Point-cloud and RGB uniforms share slot 0; only a set that admits both can
	// observe the collision, so force one by hand.
	set := NewBindingSet(ModeParticles)
	set.buffers[BufferIndexPointCloudUniforms] = BufferRGBUniforms

	_, err := set.BindBuffer(BufferPointCloudUniforms)
	assert.ErrorIs(t, err, ErrSlotOccupied)
}

func TestLayoutUnproject(t *testing.T) {
	groups := Layout(ModeUnproject, wgpu.ShaderStageVertex|wgpu.ShaderStageCompute)
	require.Len(t, groups, 2)

	buffers := groups[BufferGroup].Entries
	require.Len(t, buffers, 3)
	assert.Equal(t, uint32(0), buffers[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, buffers[0].Buffer.Type)
	assert.Equal(t, uint64(288), buffers[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, buffers[1].Buffer.Type)
	assert.Equal(t, uint64(48), buffers[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, buffers[2].Buffer.Type)
	assert.Equal(t, uint64(8), buffers[2].Buffer.MinBindingSize)

	textures := groups[TextureGroup].Entries
	require.Len(t, textures, 4)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, textures[2].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeUint, textures[3].Texture.SampleType)
	assert.Equal(t, uint32(3), textures[3].Binding)
	for _, e := range textures {
		assert.Equal(t, wgpu.TextureViewDimension2D, e.Texture.ViewDimension)
	}
}

func TestLayoutBufferOnlyModes(t *testing.T) {
	groups := Layout(ModeBounds, wgpu.ShaderStageVertex)
	require.Len(t, groups, 1)
	entries := groups[BufferGroup].Entries
	require.Len(t, entries, 3)
	assert.Equal(t, uint32(2), entries[2].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[2].Buffer.Type)
	assert.Equal(t, uint64(32), entries[2].Buffer.MinBindingSize)

	mesh := Layout(ModeMesh, wgpu.ShaderStageVertex)[BufferGroup].Entries
	require.Len(t, mesh, 2)
	assert.Equal(t, uint32(1), mesh[1].Binding)
	assert.Equal(t, uint64(ModelVertexStride), mesh[1].Buffer.MinBindingSize)

	feed := Layout(ModeCameraFeed, wgpu.ShaderStageFragment)
	assert.Equal(t, uint64(64), feed[BufferGroup].Entries[0].Buffer.MinBindingSize)
	assert.Len(t, feed[TextureGroup].Entries, 2)
}
