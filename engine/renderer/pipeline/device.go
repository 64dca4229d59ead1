package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrIncompleteBindGroup is returned when a provider lacks a resource its mode binds.
var ErrIncompleteBindGroup = errors.New("pipeline: provider is missing bound resources")

// Target describes the attachments render pipelines draw into.
type Target struct {
	Format      wgpu.TextureFormat
	DepthFormat wgpu.TextureFormat
	SampleCount uint32
}

// DefaultTarget draws to BGRA8 with a Depth24Plus buffer and no multisampling.
var DefaultTarget = Target{
	Format:      wgpu.TextureFormatBGRA8Unorm,
	DepthFormat: wgpu.TextureFormatDepth24Plus,
	SampleCount: 1,
}

// BindGroupLayoutDescriptors returns the layouts the pipeline's mode binds, indexed
// densely from 0. Unused indices below the highest group get an empty layout.
func BindGroupLayoutDescriptors(p Pipeline) []wgpu.BindGroupLayoutDescriptor {
	groups := binding.Layout(p.Mode(), p.Visibility())
	maxGroup := -1
	for g := range groups {
		maxGroup = max(maxGroup, g)
	}
	out := make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	for g := range out {
		desc, ok := groups[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s empty %d", p.Mode(), g)}
		}
		out[g] = desc
	}
	return out
}

// RenderDescriptor builds the render pipeline descriptor from the pipeline's state.
//
// Parameters:
//   - p: a render pipeline
//   - layout: the created pipeline layout
//   - vs, fs: the created vertex and fragment modules
//   - target: the attachments drawn into
//
// Returns:
//   - *wgpu.RenderPipelineDescriptor: the descriptor
//   - error: ErrMissingShader if p is not a render pipeline with both stages
func RenderDescriptor(p Pipeline, layout *wgpu.PipelineLayout, vs, fs *wgpu.ShaderModule, target Target) (*wgpu.RenderPipelineDescriptor, error) {
	vertex, fragment := p.Shader(shader.ShaderTypeVertex), p.Shader(shader.ShaderTypeFragment)
	if p.Type() != PipelineTypeRender || vertex == nil || fragment == nil {
		return nil, fmt.Errorf("%w: %s needs vertex and fragment stages", ErrMissingShader, p.PipelineKey())
	}

	color := wgpu.ColorTargetState{
		Format:    target.Format,
		WriteMask: p.WriteMask(),
		Blend:     p.BlendState(),
	}
	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertex.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragment.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{color},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: max(target.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if target.DepthFormat != wgpu.TextureFormatUndefined {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            target.DepthFormat,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}
	return desc, nil
}

// ComputeDescriptor builds the compute pipeline descriptor.
func ComputeDescriptor(p Pipeline, layout *wgpu.PipelineLayout, cs *wgpu.ShaderModule) (*wgpu.ComputePipelineDescriptor, error) {
	compute := p.Shader(shader.ShaderTypeCompute)
	if p.Type() != PipelineTypeCompute || compute == nil {
		return nil, fmt.Errorf("%w: %s needs a compute stage", ErrMissingShader, p.PipelineKey())
	}
	return &wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: compute.EntryPoint(),
		},
	}, nil
}

// Register creates the shader modules, bind group layouts and pipeline object on a
// device. The layouts come from the binding registry, so every pipeline of a mode
// shares the same bind group shape.
//
// Parameters:
//   - device: the WebGPU device
//   - p: a pipeline built by NewPipeline or ForMode
//   - target: the attachments render pipelines draw into; ignored for compute
//
// Returns:
//   - error: the first creation error
func Register(device *wgpu.Device, p Pipeline, target Target) error {
	impl, ok := p.(*pipeline)
	if !ok {
		return fmt.Errorf("pipeline: cannot register %T", p)
	}
	if err := impl.Validate(); err != nil {
		return err
	}

	descs := BindGroupLayoutDescriptors(impl)
	layouts := make([]*wgpu.BindGroupLayout, len(descs))
	for g := range descs {
		l, err := device.CreateBindGroupLayout(&descs[g])
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = l
	}
	impl.layouts = layouts

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            impl.pipelineKey,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	modules := make(map[shader.ShaderType]*wgpu.ShaderModule, 2)
	defer func() {
		for _, m := range modules {
			m.Release()
		}
	}()
	for _, s := range impl.stages() {
		m, err := device.CreateShaderModule(s.Module())
		if err != nil {
			return fmt.Errorf("create %s module: %w", s.Key(), err)
		}
		modules[s.ShaderType()] = m
	}

	if impl.pipelineType == PipelineTypeCompute {
		desc, err := ComputeDescriptor(impl, layout, modules[shader.ShaderTypeCompute])
		if err != nil {
			return err
		}
		created, err := device.CreateComputePipeline(desc)
		if err != nil {
			return err
		}
		impl.computePipeline = created
		return nil
	}

	desc, err := RenderDescriptor(impl, layout, modules[shader.ShaderTypeVertex], modules[shader.ShaderTypeFragment], target)
	if err != nil {
		return err
	}
	created, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return err
	}
	impl.renderPipeline = created
	return nil
}

// MissingEntries lists the bindings of a group the provider has no resource for.
func MissingEntries(p Pipeline, provider bind_group_provider.BindGroupProvider, group int) []uint32 {
	desc, ok := binding.Layout(p.Mode(), p.Visibility())[group]
	if !ok {
		return nil
	}
	have := make(map[uint32]bool)
	for _, e := range provider.Entries(group) {
		have[e.Binding] = true
	}
	var missing []uint32
	for _, e := range desc.Entries {
		if !have[e.Binding] {
			missing = append(missing, e.Binding)
		}
	}
	return missing
}

// CreateBindGroups creates a bind group for every group of the pipeline's mode from
// the provider's resources and stores them on the provider.
//
// Parameters:
//   - device: the WebGPU device
//   - p: a registered pipeline
//   - provider: a provider of the same mode with every resource attached
//
// Returns:
//   - error: ErrIncompleteBindGroup naming the missing bindings, or a creation error
func CreateBindGroups(device *wgpu.Device, p Pipeline, provider bind_group_provider.BindGroupProvider) error {
	if provider.Mode() != p.Mode() {
		return fmt.Errorf("%w: %s provider for %s pipeline", binding.ErrResourceNotInMode, provider.Mode(), p.Mode())
	}
	for g := range BindGroupLayoutDescriptors(p) {
		if missing := MissingEntries(p, provider, g); len(missing) > 0 {
			return fmt.Errorf("%w: %s group %d bindings %v", ErrIncompleteBindGroup, provider.Label(), g, missing)
		}
		layout := p.BindGroupLayout(g)
		if layout == nil {
			return fmt.Errorf("pipeline: %s is not registered", p.PipelineKey())
		}
		bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", provider.Label(), g),
			Layout:  layout,
			Entries: provider.Entries(g),
		})
		if err != nil {
			return err
		}
		provider.SetBindGroup(g, bg)
	}
	return nil
}

// Draw is the work one pass of a mode issues.
type Draw struct {
	Vertices   uint32
	Instances  uint32
	Workgroups [3]uint32
}

// MeshVertexFloats is how many floats of the flat model-vertices buffer the mesh
// shader reads per vertex.
const MeshVertexFloats = 3

// MeshVertexCount converts a model-vertices length in floats to the vertex count
// DrawFor expects for mesh. A trailing partial vertex is dropped.
func MeshVertexCount(floats int) int {
	return max(floats, 0) / MeshVertexFloats
}

// DrawFor returns the draw or dispatch size of a pipeline for count elements: grid
// points for unproject, particles for particles and bounds, and vertices for mesh.
// Mesh counts whole xyz vertices, not floats; see MeshVertexCount. The full-screen
// modes ignore count.
func DrawFor(p Pipeline, count int) Draw {
	n := uint32(max(count, 0))
	switch p.Mode() {
	case binding.ModeCameraFeed, binding.ModeRGB:
		return Draw{Vertices: 4, Instances: 1}
	case binding.ModeParticles:
		return Draw{Vertices: 4, Instances: n}
	case binding.ModeBounds, binding.ModeMesh:
		return Draw{Vertices: n, Instances: 1}
	case binding.ModeUnproject:
		size := uint32(1)
		if cs := p.Shader(shader.ShaderTypeCompute); cs != nil && cs.WorkgroupSize()[0] > 0 {
			size = cs.WorkgroupSize()[0]
		}
		return Draw{Workgroups: [3]uint32{(n + size - 1) / size, 1, 1}}
	}
	return Draw{}
}
