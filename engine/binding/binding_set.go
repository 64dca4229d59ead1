package binding

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotOccupied is returned when a resource targets a slot another resource already holds.
	ErrSlotOccupied = errors.New("binding: slot already bound")

	// ErrResourceNotInMode is returned when a resource is bound in a mode that does not use it.
	ErrResourceNotInMode = errors.New("binding: resource not used by render mode")
)

// BindingSet records the resources bound for one pass in one RenderMode.
// It is not safe for concurrent use; a pass is encoded on one goroutine.
type BindingSet struct {
	mode     RenderMode
	textures map[Slot]TextureResource
	buffers  map[Slot]BufferResource
}

// NewBindingSet creates an empty BindingSet for the mode.
//
// Parameters:
//   - mode: the render mode of the pass
//
// Returns:
//   - *BindingSet: the empty set
func NewBindingSet(mode RenderMode) *BindingSet {
	return &BindingSet{
		mode:     mode,
		textures: make(map[Slot]TextureResource),
		buffers:  make(map[Slot]BufferResource),
	}
}

// Mode returns the render mode the set was created for.
func (s *BindingSet) Mode() RenderMode {
	return s.mode
}

// BindTexture claims the texture's slot. Rebinding the same resource is a no-op.
//
// Parameters:
//   - r: the texture resource
//
// Returns:
//   - Slot: the slot the resource occupies
//   - error: ErrResourceNotInMode or ErrSlotOccupied
func (s *BindingSet) BindTexture(r TextureResource) (Slot, error) {
	if !s.mode.AllowsTexture(r) {
		return 0, fmt.Errorf("%w: %s in %s", ErrResourceNotInMode, r, s.mode)
	}
	slot := r.Slot()
	if held, ok := s.textures[slot]; ok && held != r {
		return 0, fmt.Errorf("%w: texture slot %d holds %s, cannot bind %s", ErrSlotOccupied, slot, held, r)
	}
	s.textures[slot] = r
	return slot, nil
}

// BindBuffer claims the buffer's slot. Rebinding the same resource is a no-op.
//
// Parameters:
//   - r: the buffer resource
//
// Returns:
//   - Slot: the slot the resource occupies
//   - error: ErrResourceNotInMode or ErrSlotOccupied
func (s *BindingSet) BindBuffer(r BufferResource) (Slot, error) {
	if !s.mode.AllowsBuffer(r) {
		return 0, fmt.Errorf("%w: %s in %s", ErrResourceNotInMode, r, s.mode)
	}
	slot := r.Slot()
	if held, ok := s.buffers[slot]; ok && held != r {
		return 0, fmt.Errorf("%w: buffer slot %d holds %s, cannot bind %s", ErrSlotOccupied, slot, held, r)
	}
	s.buffers[slot] = r
	return slot, nil
}

// Buffer returns the buffer resource bound at slot, if any.
func (s *BindingSet) Buffer(slot Slot) (BufferResource, bool) {
	r, ok := s.buffers[slot]
	return r, ok
}

// Texture returns the texture resource bound at slot, if any.
func (s *BindingSet) Texture(slot Slot) (TextureResource, bool) {
	r, ok := s.textures[slot]
	return r, ok
}

// Unbind releases both slot tables so the set can be reused for the next pass of the same mode.
func (s *BindingSet) Unbind() {
	clear(s.textures)
	clear(s.buffers)
}
