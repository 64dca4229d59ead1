package bind_group_provider

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// BufferWrite describes a single GPU buffer write targeting the buffer bound for a
// resource on a BindGroupProvider, at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Resource binding.BufferResource
	Offset   uint64
	Data     []byte
}

// WriteFunc copies data into a GPU buffer at an offset.
type WriteFunc func(buf *wgpu.Buffer, offset uint64, data []byte) error

// QueueWriter adapts a wgpu queue to a WriteFunc.
func QueueWriter(q *wgpu.Queue) WriteFunc {
	return func(buf *wgpu.Buffer, offset uint64, data []byte) error {
		return q.WriteBuffer(buf, offset, data)
	}
}

// WriteBuffers resolves every write to its buffer and hands it to write. All writes
// are checked before any is issued, so a bad batch leaves the GPU untouched.
//
// Parameters:
//   - writes: the staged writes
//   - write: the function that performs the copy
//
// Returns:
//   - error: ErrNoBuffer or ErrWriteOutOfRange for the first bad write, or the first write error
func WriteBuffers(writes []BufferWrite, write WriteFunc) error {
	targets := make([]*wgpu.Buffer, len(writes))
	for i, w := range writes {
		buf, size := w.Provider.Buffer(w.Resource)
		if buf == nil {
			return fmt.Errorf("%w: %s on %s", ErrNoBuffer, w.Resource, w.Provider.Label())
		}
		if w.Offset+uint64(len(w.Data)) > size {
			return fmt.Errorf("%w: %s on %s, %d bytes at %d into %d", ErrWriteOutOfRange,
				w.Resource, w.Provider.Label(), len(w.Data), w.Offset, size)
		}
		targets[i] = buf
	}

	var errs []error
	for i, w := range writes {
		if len(w.Data) == 0 {
			continue
		}
		if err := write(targets[i], w.Offset, w.Data); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", w.Resource, err))
		}
	}
	return errors.Join(errs...)
}
