package shader

import (
	"embed"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader is built for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// ErrNoEntryPoint is returned when a source has no entry point for the requested stage.
var ErrNoEntryPoint = errors.New("shader: no entry point for stage")

// ErrBindingMismatch is returned when the declarations in a shader disagree with the
// binding registry's layout for its render mode.
var ErrBindingMismatch = errors.New("shader: bindings differ from render mode layout")

//go:embed assets/*.wgsl
var builtinSources embed.FS

// builtinFiles maps each render mode to its bundled shader source.
var builtinFiles = map[binding.RenderMode]string{
	binding.ModeCameraFeed: "assets/camera_feed.wgsl",
	binding.ModeRGB:        "assets/rgb.wgsl",
	binding.ModeUnproject:  "assets/unproject.wgsl",
	binding.ModeParticles:  "assets/particles.wgsl",
	binding.ModeBounds:     "assets/bounds.wgsl",
	binding.ModeMesh:       "assets/mesh.wgsl",
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	mode                       binding.RenderMode
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
}

// Shader is a pre-processed WGSL shader for one stage of one render mode, with the
// bind group layouts parsed back out of its source.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	Key() string

	// Source retrieves the pre-processed WGSL source.
	Source() string

	// Mode returns the render mode named by the source's bindings annotation.
	Mode() binding.RenderMode

	// ShaderType returns the stage this shader was built for.
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for the shader's stage.
	EntryPoint() string

	// WorkgroupSize returns the workgroup size for compute shaders and [0, 0, 0] otherwise.
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptors retrieves the layouts parsed from the source, keyed by group.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable declared at a group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is declared there
	BindGroupVarName(group, binding int) string

	// Module returns the wgpu.ShaderModuleDescriptor built from the source.
	Module() *wgpu.ShaderModuleDescriptor

	// CheckBindings compares the parsed layouts with binding.Layout for the shader's mode.
	//
	// Returns:
	//   - error: ErrBindingMismatch joined for every difference
	CheckBindings() error
}

var _ Shader = &shader{}

// NewShader pre-processes WGSL source and parses the entry point, workgroup size and
// bind group layouts for the requested stage.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage to build for
//   - source: WGSL source carrying an @oxy:bindings annotation
//
// Returns:
//   - Shader: the parsed shader
//   - error: a pre-processing error or ErrNoEntryPoint
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	processed, mode, err := Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	s := &shader{
		key:        key,
		source:     processed,
		shaderType: shaderType,
		mode:       mode,
		entryPoint: parseEntryPoint(processed, shaderType),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("%w: %s has no entry point for stage %d", ErrNoEntryPoint, key, shaderType)
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, shaderType.visibility())
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: processed,
		},
	}
	return s, nil
}

// BuiltinSource returns the bundled, unprocessed WGSL source for a render mode.
func BuiltinSource(mode binding.RenderMode) (string, error) {
	name, ok := builtinFiles[mode]
	if !ok {
		return "", fmt.Errorf("shader: no builtin source for %s", mode)
	}
	data, err := builtinSources.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("shader: read %s: %w", name, err)
	}
	return string(data), nil
}

// Builtin builds the bundled shader of a render mode for one stage.
func Builtin(mode binding.RenderMode, shaderType ShaderType) (Shader, error) {
	src, err := BuiltinSource(mode)
	if err != nil {
		return nil, err
	}
	return NewShader(mode.String(), shaderType, src)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Mode() binding.RenderMode {
	return s.mode
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) CheckBindings() error {
	return CompareLayouts(binding.Layout(s.mode, s.shaderType.visibility()), s.bindGroupLayoutDescriptors)
}

// CompareLayouts reports every difference between the expected and parsed bind group
// layouts. Visibility is ignored. WGSL cannot express an unfilterable float texture,
// so an expected UnfilterableFloat matches a parsed Float.
//
// Parameters:
//   - want: layouts from the binding registry
//   - got: layouts parsed from WGSL
//
// Returns:
//   - error: ErrBindingMismatch joined for every difference, or nil
func CompareLayouts(want, got map[int]wgpu.BindGroupLayoutDescriptor) error {
	var errs []error
	for group, wd := range want {
		gd, ok := got[group]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: group %d not declared", ErrBindingMismatch, group))
			continue
		}
		parsed := make(map[uint32]wgpu.BindGroupLayoutEntry, len(gd.Entries))
		for _, e := range gd.Entries {
			parsed[e.Binding] = e
		}
		for _, we := range wd.Entries {
			ge, ok := parsed[we.Binding]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: group %d binding %d not declared", ErrBindingMismatch, group, we.Binding))
				continue
			}
			delete(parsed, we.Binding)
			errs = append(errs, compareEntry(group, we, ge)...)
		}
		for b := range parsed {
			errs = append(errs, fmt.Errorf("%w: group %d binding %d is not part of the mode", ErrBindingMismatch, group, b))
		}
	}
	for group := range got {
		if _, ok := want[group]; !ok {
			errs = append(errs, fmt.Errorf("%w: unexpected group %d", ErrBindingMismatch, group))
		}
	}
	return errors.Join(errs...)
}

func compareEntry(group int, want, got wgpu.BindGroupLayoutEntry) []error {
	var errs []error
	if want.Buffer.Type != got.Buffer.Type {
		errs = append(errs, fmt.Errorf("%w: group %d binding %d buffer type %v, declared %v",
			ErrBindingMismatch, group, want.Binding, want.Buffer.Type, got.Buffer.Type))
	}
	if want.Buffer.MinBindingSize != got.Buffer.MinBindingSize {
		errs = append(errs, fmt.Errorf("%w: group %d binding %d min size %d, declared %d",
			ErrBindingMismatch, group, want.Binding, want.Buffer.MinBindingSize, got.Buffer.MinBindingSize))
	}
	wantSample := want.Texture.SampleType
	if wantSample == wgpu.TextureSampleTypeUnfilterableFloat {
		wantSample = wgpu.TextureSampleTypeFloat
	}
	if wantSample != got.Texture.SampleType {
		errs = append(errs, fmt.Errorf("%w: group %d binding %d sample type %v, declared %v",
			ErrBindingMismatch, group, want.Binding, want.Texture.SampleType, got.Texture.SampleType))
	}
	if want.Texture.ViewDimension != got.Texture.ViewDimension {
		errs = append(errs, fmt.Errorf("%w: group %d binding %d view dimension %v, declared %v",
			ErrBindingMismatch, group, want.Binding, want.Texture.ViewDimension, got.Texture.ViewDimension))
	}
	return errs
}
