package pipeline

import (
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShaders places each shader in the stage its ShaderType names. A later shader
// of the same stage replaces an earlier one.
//
// Parameters:
//   - shaders: compute, or vertex and fragment, stages of one mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the stages
func WithShaders(shaders ...shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		for _, s := range shaders {
			switch s.ShaderType() {
			case shader.ShaderTypeVertex:
				p.vertexShader = s
			case shader.ShaderTypeFragment:
				p.fragmentShader = s
			case shader.ShaderTypeCompute:
				p.computeShader = s
			}
		}
	}
}

// WithDepth sets whether fragments are depth tested and whether they write depth.
// The full-screen camera passes draw under everything and do neither.
func WithDepth(test, write bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled = test
		p.depthWriteEnabled = write
	}
}

// WithBlend sets the blend state; nil turns blending off.
func WithBlend(state *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = state
	}
}

// WithAlphaBlend blends straight alpha over the destination, as the RGB overlay does.
func WithAlphaBlend() PipelineBuilderOption {
	return WithBlend(&wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	})
}

// WithPrimitive sets how vertices assemble into primitives. The strip index
// format is left to the descriptor.
func WithPrimitive(topology wgpu.PrimitiveTopology, cull wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.primitive.Topology = topology
		p.primitive.CullMode = cull
	}
}

// WithFrontFace sets the winding of front-facing triangles for culling.
func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.primitive.FrontFace = frontFace
	}
}

// WithWriteMask sets which color channels are written.
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithModeDefaults applies the fixed-function state the bundled shader of a mode
// is written for:
//
//	camera_feed  4-vertex strip, no depth
//	rgb          4-vertex strip, no depth, alpha blended over the feed
//	particles    4-vertex strip per instance, depth tested
//	bounds       one point per particle, depth tested
//	mesh         triangle list, back faces culled
//
// Unproject is compute and has no render state.
func WithModeDefaults(mode binding.RenderMode) PipelineBuilderOption {
	return func(p *pipeline) {
		switch mode {
		case binding.ModeCameraFeed:
			WithPrimitive(wgpu.PrimitiveTopologyTriangleStrip, wgpu.CullModeNone)(p)
			WithDepth(false, false)(p)
		case binding.ModeRGB:
			WithPrimitive(wgpu.PrimitiveTopologyTriangleStrip, wgpu.CullModeNone)(p)
			WithDepth(false, false)(p)
			WithAlphaBlend()(p)
		case binding.ModeParticles:
			WithPrimitive(wgpu.PrimitiveTopologyTriangleStrip, wgpu.CullModeNone)(p)
		case binding.ModeBounds:
			WithPrimitive(wgpu.PrimitiveTopologyPointList, wgpu.CullModeNone)(p)
		case binding.ModeMesh:
			WithPrimitive(wgpu.PrimitiveTopologyTriangleList, wgpu.CullModeBack)(p)
		}
	}
}

// builtinStages loads the bundled shaders of a mode: the compute stage for
// unproject, the vertex and fragment stages otherwise.
func builtinStages(mode binding.RenderMode) (PipelineType, PipelineBuilderOption, error) {
	if mode == binding.ModeUnproject {
		cs, err := shader.Builtin(mode, shader.ShaderTypeCompute)
		if err != nil {
			return 0, nil, err
		}
		return PipelineTypeCompute, WithShaders(cs), nil
	}
	vs, err := shader.Builtin(mode, shader.ShaderTypeVertex)
	if err != nil {
		return 0, nil, err
	}
	fs, err := shader.Builtin(mode, shader.ShaderTypeFragment)
	if err != nil {
		return 0, nil, err
	}
	return PipelineTypeRender, WithShaders(vs, fs), nil
}
