package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
// Options that attach resources fail when the provider's render mode does not use them.
type BindGroupProviderOption func(*bindGroupProvider) error

// WithBindGroup sets the bind group for a group index.
//
// Parameters:
//   - group: the bind group index
//   - bg: the bind group
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group for this provider
func WithBindGroup(group int, bg *wgpu.BindGroup) BindGroupProviderOption {
	return func(p *bindGroupProvider) error {
		p.SetBindGroup(group, bg)
		return nil
	}
}

// WithBuffer attaches an owned buffer for a resource.
//
// Parameters:
//   - r: the buffer resource
//   - buf: the buffer to associate with the resource
//   - size: the size the buffer was created with
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the resource
func WithBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) error {
		return p.SetBuffer(r, buf, size)
	}
}

// WithSharedBuffer attaches a buffer owned by another provider.
func WithSharedBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) error {
		return p.ShareBuffer(r, buf, size)
	}
}

// WithTextureView binds a texture view for a resource.
//
// Parameters:
//   - r: the texture resource
//   - tv: the texture view
//
// Returns:
//   - BindGroupProviderOption: a function that binds the view for the resource
func WithTextureView(r binding.TextureResource, tv *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) error {
		return p.SetTextureView(r, tv)
	}
}
