package pipeline

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForModeBuildsEveryMode(t *testing.T) {
	for _, mode := range binding.AllModes {
		t.Run(mode.String(), func(t *testing.T) {
			p, err := ForMode(mode)
			require.NoError(t, err)
			assert.Equal(t, mode, p.Mode())
			assert.Equal(t, mode.String(), p.PipelineKey())
			require.NoError(t, p.Validate())

			if mode == binding.ModeUnproject {
				assert.Equal(t, PipelineTypeCompute, p.Type())
				assert.NotNil(t, p.Shader(shader.ShaderTypeCompute))
				assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
				assert.Equal(t, wgpu.ShaderStageCompute, p.Visibility())
				return
			}
			assert.Equal(t, PipelineTypeRender, p.Type())
			assert.NotNil(t, p.Shader(shader.ShaderTypeVertex))
			assert.NotNil(t, p.Shader(shader.ShaderTypeFragment))
		})
	}
}

func TestModeDefaults(t *testing.T) {
	feed, err := ForMode(binding.ModeCameraFeed)
	require.NoError(t, err)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, feed.Topology())
	assert.False(t, feed.DepthTestEnabled())
	assert.Nil(t, feed.BlendState())

	rgb, err := ForMode(binding.ModeRGB)
	require.NoError(t, err)
	assert.True(t, rgb.BlendEnabled())
	assert.NotNil(t, rgb.BlendState())

	bounds, err := ForMode(binding.ModeBounds, WithDepth(true, false))
	require.NoError(t, err)
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, bounds.Topology())
	assert.True(t, bounds.DepthTestEnabled())
	assert.False(t, bounds.DepthWriteEnabled(), "caller options override mode defaults")

	mesh, err := ForMode(binding.ModeMesh, WithBlend(nil))
	require.NoError(t, err)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, mesh.Topology())
	assert.Equal(t, wgpu.CullModeBack, mesh.CullMode())
	assert.Equal(t, wgpu.FrontFaceCCW, mesh.FrontFace())
	assert.False(t, mesh.BlendEnabled())

	unproject, err := ForMode(binding.ModeUnproject)
	require.NoError(t, err)
	assert.Nil(t, unproject.BlendState(), "compute pipelines carry no render state")
}

func TestValidateRejectsForeignShader(t *testing.T) {
	vs, err := shader.Builtin(binding.ModeParticles, shader.ShaderTypeVertex)
	require.NoError(t, err)
	fs, err := shader.Builtin(binding.ModeBounds, shader.ShaderTypeFragment)
	require.NoError(t, err)

	p := NewPipeline("mixed", PipelineTypeRender, binding.ModeParticles, WithShaders(vs, fs))
	assert.ErrorIs(t, p.Validate(), shader.ErrBindingMismatch)

	empty := NewPipeline("empty", PipelineTypeCompute, binding.ModeUnproject)
	assert.ErrorIs(t, empty.Validate(), ErrMissingShader)
}

func TestBindGroupLayoutDescriptors(t *testing.T) {
	particles, err := ForMode(binding.ModeParticles)
	require.NoError(t, err)
	descs := BindGroupLayoutDescriptors(particles)
	require.Len(t, descs, 1, "particles binds no textures")
	require.Len(t, descs[0].Entries, 2)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, descs[0].Entries[0].Visibility)

	unproject, err := ForMode(binding.ModeUnproject)
	require.NoError(t, err)
	descs = BindGroupLayoutDescriptors(unproject)
	require.Len(t, descs, 2)
	assert.Len(t, descs[binding.TextureGroup].Entries, 4)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, descs[binding.BufferGroup].Entries[1].Buffer.Type)
}

func TestDescriptors(t *testing.T) {
	rgb, err := ForMode(binding.ModeRGB)
	require.NoError(t, err)
	desc, err := RenderDescriptor(rgb, nil, nil, nil, DefaultTarget)
	require.NoError(t, err)
	assert.Equal(t, "rgbVertex", desc.Vertex.EntryPoint)
	assert.Equal(t, "rgbFragment", desc.Fragment.EntryPoint)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, desc.Fragment.Targets[0].Format)
	assert.NotNil(t, desc.Fragment.Targets[0].Blend)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.CompareFunctionAlways, desc.DepthStencil.DepthCompare)
	assert.Equal(t, uint32(1), desc.Multisample.Count)

	noDepth, err := RenderDescriptor(rgb, nil, nil, nil, Target{Format: wgpu.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	assert.Nil(t, noDepth.DepthStencil)

	_, err = ComputeDescriptor(rgb, nil, nil)
	assert.ErrorIs(t, err, ErrMissingShader)

	unproject, err := ForMode(binding.ModeUnproject)
	require.NoError(t, err)
	cd, err := ComputeDescriptor(unproject, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "unproject", cd.Compute.EntryPoint)
	_, err = RenderDescriptor(unproject, nil, nil, nil, DefaultTarget)
	assert.ErrorIs(t, err, ErrMissingShader)
}

func TestDrawFor(t *testing.T) {
	cases := map[binding.RenderMode]Draw{
		binding.ModeCameraFeed: {Vertices: 4, Instances: 1},
		binding.ModeRGB:        {Vertices: 4, Instances: 1},
		binding.ModeParticles:  {Vertices: 4, Instances: 1000},
		binding.ModeBounds:     {Vertices: 1000, Instances: 1},
		binding.ModeMesh:       {Vertices: 1000, Instances: 1},
		binding.ModeUnproject:  {Workgroups: [3]uint32{16, 1, 1}},
	}
	for mode, want := range cases {
		p, err := ForMode(mode)
		require.NoError(t, err)
		assert.Equal(t, want, DrawFor(p, 1000), mode.String())
	}
}

func TestMeshDrawCountsVertices(t *testing.T) {
	src, err := shader.BuiltinSource(binding.ModeMesh)
	require.NoError(t, err)
	assert.Contains(t, src, fmt.Sprintf("vid * %du", MeshVertexFloats), "the mesh shader reads xyz triples")

	mesh, err := ForMode(binding.ModeMesh)
	require.NoError(t, err)
	floats := 3*1000 + 2
	d := DrawFor(mesh, MeshVertexCount(floats))
	assert.Equal(t, uint32(1000), d.Vertices)
	assert.LessOrEqual(t, int(d.Vertices)*MeshVertexFloats, floats, "the last vertex stays inside the buffer")
	assert.Zero(t, MeshVertexCount(-3))
}

func TestBindGroupCompleteness(t *testing.T) {
	p, err := ForMode(binding.ModeBounds)
	require.NoError(t, err)

	provider, err := bind_group_provider.NewBindGroupProvider("bounds", binding.ModeBounds,
		bind_group_provider.WithBuffer(binding.BufferPointCloudUniforms, &wgpu.Buffer{}, 288),
	)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, MissingEntries(p, provider, binding.BufferGroup))
	assert.Nil(t, MissingEntries(p, provider, binding.TextureGroup))

	assert.ErrorIs(t, CreateBindGroups(nil, p, provider), ErrIncompleteBindGroup)

	feed, err := bind_group_provider.NewBindGroupProvider("feed", binding.ModeCameraFeed)
	require.NoError(t, err)
	assert.ErrorIs(t, CreateBindGroups(nil, p, feed), binding.ErrResourceNotInMode)
}

func TestRegisterRejectsForeignPipelines(t *testing.T) {
	var p Pipeline = fakePipeline{}
	assert.Error(t, Register(nil, p, DefaultTarget))
}

type fakePipeline struct{ Pipeline }
