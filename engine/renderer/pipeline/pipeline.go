package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// ErrMissingShader is returned when a pipeline lacks a stage its type needs.
var ErrMissingShader = errors.New("pipeline: missing shader stage")

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string
	mode         binding.RenderMode

	vertexShader, fragmentShader, computeShader shader.Shader

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline
	layouts         []*wgpu.BindGroupLayout

	// render state, ignored by compute pipelines
	depthTestEnabled  bool
	depthWriteEnabled bool
	primitive         wgpu.PrimitiveState
	writeMask         wgpu.ColorWriteMask
	blendState        *wgpu.BlendState
}

// Pipeline holds the shaders and fixed-function state of one render mode, and the
// WebGPU objects once Register has created them.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline.
	PipelineKey() string

	// Mode returns the render mode whose bindings the pipeline uses.
	Mode() binding.RenderMode

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline.
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	Pipeline() any

	// BindGroupLayout returns the created layout of a bind group index, or nil before Register.
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// Visibility returns the shader stages that see the pipeline's bindings.
	Visibility() wgpu.ShaderStage

	DepthTestEnabled() bool
	DepthWriteEnabled() bool
	BlendEnabled() bool
	CullMode() wgpu.CullMode
	Topology() wgpu.PrimitiveTopology
	FrontFace() wgpu.FrontFace
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state, or nil if blending is not enabled
	BlendState() *wgpu.BlendState

	// Validate checks that the stages the pipeline type needs are present and that
	// every stage's declarations match the binding registry.
	//
	// Returns:
	//   - error: ErrMissingShader, or the joined shader.ErrBindingMismatch errors
	Validate() error

	// Release frees the created WebGPU objects.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - mode: the render mode whose binding layout the pipeline uses
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, mode binding.RenderMode, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		mode:              mode,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		writeMask: wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ForMode builds the pipeline of a render mode from its bundled shader and the
// mode's defaults. Unproject yields a compute pipeline, every other mode a render
// pipeline.
//
// Parameters:
//   - mode: the render mode
//   - opts: options applied after the mode's defaults
//
// Returns:
//   - Pipeline: the pipeline, not yet registered on a device
//   - error: a shader error, or the result of Validate
func ForMode(mode binding.RenderMode, opts ...PipelineBuilderOption) (Pipeline, error) {
	pipelineType, stages, err := builtinStages(mode)
	if err != nil {
		return nil, err
	}
	all := append([]PipelineBuilderOption{stages, WithModeDefaults(mode)}, opts...)
	p := NewPipeline(mode.String(), pipelineType, mode, all...)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Mode() binding.RenderMode {
	return p.mode
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.layouts) {
		return nil
	}
	return p.layouts[group]
}

func (p *pipeline) Visibility() wgpu.ShaderStage {
	if p.pipelineType == PipelineTypeCompute {
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendState != nil
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.primitive.CullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.primitive.Topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.primitive.FrontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) stages() []shader.Shader {
	if p.pipelineType == PipelineTypeCompute {
		return []shader.Shader{p.computeShader}
	}
	return []shader.Shader{p.vertexShader, p.fragmentShader}
}

func (p *pipeline) Validate() error {
	var errs []error
	for _, s := range p.stages() {
		if s == nil {
			return fmt.Errorf("%w: %s", ErrMissingShader, p.pipelineKey)
		}
		if s.Mode() != p.mode {
			errs = append(errs, fmt.Errorf("%w: %s shader %s is written for %s", shader.ErrBindingMismatch, p.mode, s.Key(), s.Mode()))
			continue
		}
		if err := s.CheckBindings(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for _, l := range p.layouts {
		if l != nil {
			l.Release()
		}
	}
	p.layouts = nil
}
