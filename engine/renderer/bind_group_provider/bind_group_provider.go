package bind_group_provider

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoBuffer is returned when a write targets a resource the provider holds no buffer for.
var ErrNoBuffer = errors.New("bind group provider: no buffer for resource")

// ErrWriteOutOfRange is returned when a write would run past the end of its buffer.
var ErrWriteOutOfRange = errors.New("bind group provider: write past end of buffer")

// allocation is a GPU buffer together with the size it was created with.
type allocation struct {
	buffer *wgpu.Buffer
	size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// set enforces the render mode's resource rules on every Set call.
	set *binding.BindingSet

	// The following fields are GPU allocated resources and must be released when no longer needed.

	// bindGroups holds the GPU bind groups created for this provider, keyed by group index.
	bindGroups map[int]*wgpu.BindGroup
	// buffers holds the GPU buffers created for this provider, keyed by resource.
	buffers map[binding.BufferResource]allocation
	// textureViews holds the texture views bound for this provider, keyed by resource.
	textureViews map[binding.TextureResource]*wgpu.TextureView
	// shared marks buffers owned by another provider; Release leaves them alone.
	shared map[binding.BufferResource]bool
}

// BindGroupProvider holds the GPU resources one pass of one render mode binds.
// Resources are addressed by their logical name, never by raw slot, and the
// provider rejects any resource the mode does not use.
//
// Usage pattern:
//  1. The Uploader creates a provider per in-flight frame for a render mode
//  2. Buffers and texture views are attached with SetBuffer and SetTextureView
//  3. The renderer creates bind groups from Layout(mode) and stores them with SetBindGroup
//  4. Staged BufferWrites are flushed into the provider's buffers each frame
type BindGroupProvider interface {
	// Release releases any GPU resources owned by this provider.
	Release()

	// Label returns the debug label for this provider.
	Label() string

	// Mode returns the render mode whose resources this provider holds.
	Mode() binding.RenderMode

	// BindGroup returns the bind group created for a group index, or nil.
	BindGroup(group int) *wgpu.BindGroup

	// SetBindGroup stores the bind group created for a group index.
	SetBindGroup(group int, bg *wgpu.BindGroup)

	// Buffer returns the buffer bound for a resource and its allocated size.
	//
	// Parameters:
	//   - r: the buffer resource
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	//   - uint64: the size the buffer was created with
	Buffer(r binding.BufferResource) (*wgpu.Buffer, uint64)

	// SetBuffer attaches an owned buffer for a resource.
	//
	// Parameters:
	//   - r: the buffer resource
	//   - buf: the buffer
	//   - size: the size the buffer was created with
	//
	// Returns:
	//   - error: binding.ErrResourceNotInMode or binding.ErrSlotOccupied
	SetBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) error

	// ShareBuffer attaches a buffer owned elsewhere, e.g. the particle ring shared by
	// every in-flight frame. Release does not free shared buffers.
	ShareBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) error

	// TextureView returns the view bound for a texture resource, or nil.
	TextureView(r binding.TextureResource) *wgpu.TextureView

	// SetTextureView binds a texture view for a resource. Views are owned by the
	// texture producer and are not released by the provider.
	//
	// Returns:
	//   - error: binding.ErrResourceNotInMode or binding.ErrSlotOccupied
	SetTextureView(r binding.TextureResource, tv *wgpu.TextureView) error

	// Entries returns bind group entries for every bound resource of a group, in slot order.
	Entries(group int) []wgpu.BindGroupEntry
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider for a render mode.
//
// Parameters:
//   - label: a debug label
//   - mode: the render mode whose resources the provider holds
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: the provider
//   - error: the first option that attached a resource the mode does not allow
func NewBindGroupProvider(label string, mode binding.RenderMode, options ...BindGroupProviderOption) (BindGroupProvider, error) {
	p := &bindGroupProvider{
		label:        label,
		set:          binding.NewBindingSet(mode),
		bindGroups:   make(map[int]*wgpu.BindGroup),
		buffers:      make(map[binding.BufferResource]allocation),
		textureViews: make(map[binding.TextureResource]*wgpu.TextureView),
		shared:       make(map[binding.BufferResource]bool),
	}
	for _, opt := range options {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
	}
	return p, nil
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Mode() binding.RenderMode {
	return p.set.Mode()
}

func (p *bindGroupProvider) BindGroup(group int) *wgpu.BindGroup {
	return p.bindGroups[group]
}

func (p *bindGroupProvider) SetBindGroup(group int, bg *wgpu.BindGroup) {
	p.bindGroups[group] = bg
}

func (p *bindGroupProvider) Buffer(r binding.BufferResource) (*wgpu.Buffer, uint64) {
	a := p.buffers[r]
	return a.buffer, a.size
}

func (p *bindGroupProvider) SetBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) error {
	if _, err := p.set.BindBuffer(r); err != nil {
		return err
	}
	p.buffers[r] = allocation{buffer: buf, size: size}
	delete(p.shared, r)
	return nil
}

func (p *bindGroupProvider) ShareBuffer(r binding.BufferResource, buf *wgpu.Buffer, size uint64) error {
	if err := p.SetBuffer(r, buf, size); err != nil {
		return err
	}
	p.shared[r] = true
	return nil
}

func (p *bindGroupProvider) TextureView(r binding.TextureResource) *wgpu.TextureView {
	return p.textureViews[r]
}

func (p *bindGroupProvider) SetTextureView(r binding.TextureResource, tv *wgpu.TextureView) error {
	if _, err := p.set.BindTexture(r); err != nil {
		return err
	}
	p.textureViews[r] = tv
	return nil
}

func (p *bindGroupProvider) Entries(group int) []wgpu.BindGroupEntry {
	var entries []wgpu.BindGroupEntry
	mode := p.set.Mode()
	switch group {
	case binding.BufferGroup:
		for _, use := range mode.Buffers() {
			a, ok := p.buffers[use.Resource]
			if !ok {
				continue
			}
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: uint32(use.Resource.Slot()),
				Buffer:  a.buffer,
				Size:    a.size,
			})
		}
	case binding.TextureGroup:
		for _, tex := range mode.Textures() {
			tv, ok := p.textureViews[tex]
			if !ok {
				continue
			}
			entries = append(entries, wgpu.BindGroupEntry{
				Binding:     uint32(tex.Slot()),
				TextureView: tv,
			})
		}
	}
	return entries
}

func (p *bindGroupProvider) Release() {
	for group, bg := range p.bindGroups {
		if bg != nil {
			bg.Release()
		}
		delete(p.bindGroups, group)
	}
	for r, a := range p.buffers {
		if a.buffer != nil && !p.shared[r] {
			a.buffer.Release()
		}
		delete(p.buffers, r)
	}
	clear(p.textureViews)
	clear(p.shared)
	p.set.Unbind()
}
