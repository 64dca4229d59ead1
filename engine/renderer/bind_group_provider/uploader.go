package bind_group_provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/profiler"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNoCapacity is returned when a mode binds an array buffer no capacity was given for.
	ErrNoCapacity = errors.New("uploader: no capacity for array buffer")

	// ErrExceedsLimit is returned when an array buffer is larger than the device can bind.
	ErrExceedsLimit = errors.New("uploader: buffer exceeds device limit")
)

// DefaultStorageLimit is the maxStorageBufferBindingSize every WebGPU device
// supports without requesting higher limits (128 MiB). At 48 bytes per particle it
// caps the default particle ring at 2,796,202 points, well under
// uniforms.DefaultMaxPoints; pass WithLimits to size against a larger device.
const DefaultStorageLimit uint64 = 128 << 20

// DeviceLimits returns the limits a device was created with, for WithLimits.
func DeviceLimits(d *wgpu.Device) wgpu.Limits {
	return d.GetLimits().Limits
}

// Allocator creates a GPU buffer.
type Allocator func(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error)

// DeviceAllocator adapts a wgpu device to an Allocator.
func DeviceAllocator(d *wgpu.Device) Allocator {
	return func(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
		return d.CreateBuffer(desc)
	}
}

// Marshaler is implemented by the uniform structs.
type Marshaler interface {
	Marshal() []byte
}

// arrayResources are storage arrays that accumulate across frames and are therefore
// shared by every in-flight frame instead of duplicated.
var arrayResources = map[binding.BufferResource]bool{
	binding.BufferParticleUniforms: true,
	binding.BufferGridPoints:       true,
	binding.BufferModelVertices:    true,
}

// Uploader owns the GPU buffers of one render mode: a uniform buffer per in-flight
// frame for every uniform resource, and one shared buffer per storage array. Host
// writes are staged on a Frame and flushed through a WriteFunc.
type Uploader struct {
	mode       binding.RenderMode
	ring       *FrameRing
	providers  []BindGroupProvider
	shared     map[binding.BufferResource]allocation
	capacities map[binding.BufferResource]int
	frames     int
	alloc      Allocator
	write      WriteFunc
	limit      uint64
	marshaler  *uniforms.ParticleMarshaler
	ownMarshal bool
	profiler   *profiler.Profiler
	logger     common.Logger
}

// UploaderOption is a functional option used to configure an Uploader during construction.
type UploaderOption func(*Uploader)

// WithInFlightFrames sets how many frames may be encoded ahead of the GPU.
func WithInFlightFrames(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.frames = n
		}
	}
}

// WithCapacity sets the element capacity of a storage array resource. Model
// vertices are counted in floats, three per vertex.
//
// Parameters:
//   - r: BufferParticleUniforms, BufferGridPoints or BufferModelVertices
//   - elements: number of array elements the buffer holds
//
// Returns:
//   - UploaderOption: a function that sets the capacity
func WithCapacity(r binding.BufferResource, elements int) UploaderOption {
	return func(u *Uploader) {
		u.capacities[r] = elements
	}
}

// WithLimits sizes array buffers against a device's limits instead of
// DefaultStorageLimit. The smaller of maxStorageBufferBindingSize and maxBufferSize
// applies; zero fields are ignored.
func WithLimits(l wgpu.Limits) UploaderOption {
	return func(u *Uploader) {
		limit := l.MaxStorageBufferBindingSize
		if l.MaxBufferSize > 0 && (limit == 0 || l.MaxBufferSize < limit) {
			limit = l.MaxBufferSize
		}
		if limit > 0 {
			u.limit = limit
		}
	}
}

// WithLogger sets the logger; nil disables logging.
func WithLogger(l common.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = common.LoggerOrNop(l)
	}
}

// WithParticleMarshaler sets the marshaler used for particle uploads. The caller
// keeps ownership and closes it; a marshaler the uploader creates itself is closed
// by Release.
func WithParticleMarshaler(m *uniforms.ParticleMarshaler) UploaderOption {
	return func(u *Uploader) {
		u.marshaler = m
	}
}

// WithProfiler records every flush on p.
func WithProfiler(p *profiler.Profiler) UploaderOption {
	return func(u *Uploader) {
		u.profiler = p
	}
}

// NewUploader allocates every buffer the render mode binds. The particle ring
// defaults to uniforms.DefaultMaxPoints clamped to the storage limit, and the grid
// to uniforms.DefaultGridPoints.
//
// Parameters:
//   - mode: the render mode
//   - alloc: creates GPU buffers, DeviceAllocator in production
//   - write: copies into GPU buffers, QueueWriter in production
//   - options: functional options applied in order
//
// Returns:
//   - *Uploader: the uploader
//   - error: ErrNoCapacity, ErrExceedsLimit or an allocation error
func NewUploader(mode binding.RenderMode, alloc Allocator, write WriteFunc, options ...UploaderOption) (*Uploader, error) {
	u := &Uploader{
		mode:       mode,
		shared:     make(map[binding.BufferResource]allocation),
		capacities: make(map[binding.BufferResource]int),
		frames:     DefaultInFlightFrames,
		alloc:      alloc,
		write:      write,
		limit:      DefaultStorageLimit,
		logger:     common.NewNopLogger(),
	}
	for _, option := range options {
		option(u)
	}
	u.setDefaultCapacity(binding.BufferParticleUniforms, uniforms.DefaultMaxPoints)
	u.setDefaultCapacity(binding.BufferGridPoints, uniforms.DefaultGridPoints)
	u.ring = NewFrameRing(u.frames)

	for _, use := range mode.Buffers() {
		if !arrayResources[use.Resource] {
			continue
		}
		n := u.capacities[use.Resource]
		if n <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCapacity, use.Resource)
		}
		size := uint64(n) * use.Resource.MinBindingSize()
		if size > u.limit {
			return nil, fmt.Errorf("%w: %s needs %d bytes, limit %d", ErrExceedsLimit, use.Resource, size, u.limit)
		}
		buf, err := u.create(use, size, use.Resource.String())
		if err != nil {
			return nil, err
		}
		u.shared[use.Resource] = allocation{buffer: buf, size: size}
	}

	for i := range u.frames {
		label := fmt.Sprintf("%s frame %d", mode, i)
		opts := make([]BindGroupProviderOption, 0, len(mode.Buffers()))
		for _, use := range mode.Buffers() {
			if a, ok := u.shared[use.Resource]; ok {
				opts = append(opts, WithSharedBuffer(use.Resource, a.buffer, a.size))
				continue
			}
			size := use.Resource.MinBindingSize()
			buf, err := u.create(use, size, label+" "+use.Resource.String())
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithBuffer(use.Resource, buf, size))
		}
		p, err := NewBindGroupProvider(label, mode, opts...)
		if err != nil {
			return nil, err
		}
		u.providers = append(u.providers, p)
	}

	if u.marshaler == nil && mode.AllowsBuffer(binding.BufferParticleUniforms) {
		u.marshaler = uniforms.NewParticleMarshaler()
		u.ownMarshal = true
	}
	return u, nil
}

// setDefaultCapacity fills in the capacity of an array the mode binds when no
// WithCapacity gave one, clamped to what fits under the storage limit.
func (u *Uploader) setDefaultCapacity(r binding.BufferResource, n int) {
	if !u.mode.AllowsBuffer(r) {
		return
	}
	if _, ok := u.capacities[r]; ok {
		return
	}
	u.capacities[r] = min(n, int(u.limit/r.MinBindingSize()))
}

func (u *Uploader) create(use binding.BufferUse, size uint64, label string) (*wgpu.Buffer, error) {
	usage := wgpu.BufferUsageCopyDst
	switch use.Access {
	case binding.AccessUniform:
		usage |= wgpu.BufferUsageUniform
	default:
		usage |= wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc
	}
	buf, err := u.alloc(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	u.logger.Debugf("created %s buffer (%d bytes)", label, size)
	return buf, nil
}

// Mode returns the render mode the uploader serves.
func (u *Uploader) Mode() binding.RenderMode {
	return u.mode
}

// Provider returns the bind group provider of an in-flight frame index.
func (u *Uploader) Provider(frame int) BindGroupProvider {
	return u.providers[frame]
}

// Capacity returns the element capacity of a shared storage array. Pass the
// particle capacity to uniforms.WithMaxPoints so the ring cursor wraps inside the
// buffer.
func (u *Uploader) Capacity(r binding.BufferResource) int {
	return u.capacities[r]
}

// Frame collects the writes for one in-flight frame.
type Frame struct {
	Index    int
	Provider BindGroupProvider

	uploader *Uploader
	writes   []BufferWrite
}

// BeginFrame waits for a free in-flight frame.
//
// Parameters:
//   - ctx: cancels the wait
//
// Returns:
//   - *Frame: the frame to stage writes on
//   - error: ctx.Err() if the context ends first
func (u *Uploader) BeginFrame(ctx context.Context) (*Frame, error) {
	idx, err := u.ring.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Frame{Index: idx, Provider: u.providers[idx], uploader: u}, nil
}

// Complete returns a frame to the ring once the GPU has finished with it.
func (u *Uploader) Complete(frame int) error {
	return u.ring.Complete(frame)
}

// Stage queues raw bytes for a resource.
//
// Returns:
//   - error: binding.ErrResourceNotInMode if the frame's mode does not bind r
func (f *Frame) Stage(r binding.BufferResource, offset uint64, data []byte) error {
	if !f.uploader.mode.AllowsBuffer(r) {
		return fmt.Errorf("%w: %s in %s", binding.ErrResourceNotInMode, r, f.uploader.mode)
	}
	f.writes = append(f.writes, BufferWrite{
		Provider: f.Provider,
		Resource: r,
		Offset:   offset,
		Data:     data,
	})
	return nil
}

// StageUniforms queues a uniform struct for a resource at offset 0.
func (f *Frame) StageUniforms(r binding.BufferResource, m Marshaler) error {
	return f.Stage(r, 0, m.Marshal())
}

// StageParticles queues particles into the particle ring starting at element start.
// A batch that runs past the end of the ring wraps to element 0.
//
// Parameters:
//   - start: ring index of the first particle
//   - particles: the particles to write; at most the ring capacity
//
// Returns:
//   - error: binding.ErrResourceNotInMode, or uniforms.ErrCapacity when the batch is larger than the ring
func (f *Frame) StageParticles(start int, particles []uniforms.ParticleUniforms) error {
	if !f.uploader.mode.AllowsBuffer(binding.BufferParticleUniforms) {
		return fmt.Errorf("%w: %s in %s", binding.ErrResourceNotInMode, binding.BufferParticleUniforms, f.uploader.mode)
	}
	if start < 0 {
		return fmt.Errorf("%w: start %d", uniforms.ErrCursorRange, start)
	}
	capacity := f.uploader.capacities[binding.BufferParticleUniforms]
	if len(particles) > capacity {
		return fmt.Errorf("%w: %d particles into a ring of %d", uniforms.ErrCapacity, len(particles), capacity)
	}
	if len(particles) == 0 {
		return nil
	}
	start %= capacity
	data := f.uploader.marshaler.Marshal(particles)

	head := min(len(particles), capacity-start)
	split := head * uniforms.ParticleUniformsSize
	if err := f.Stage(binding.BufferParticleUniforms, uint64(start*uniforms.ParticleUniformsSize), data[:split]); err != nil {
		return err
	}
	if head < len(particles) {
		return f.Stage(binding.BufferParticleUniforms, 0, data[split:])
	}
	return nil
}

// StageGridPoints queues the unprojection sample grid from element 0.
//
// Parameters:
//   - points: sample positions in pixels, usually from uniforms.GridPoints
//
// Returns:
//   - error: binding.ErrResourceNotInMode, or uniforms.ErrCapacity when the grid is larger than the buffer
func (f *Frame) StageGridPoints(points []mgl32.Vec2) error {
	if !f.uploader.mode.AllowsBuffer(binding.BufferGridPoints) {
		return fmt.Errorf("%w: %s in %s", binding.ErrResourceNotInMode, binding.BufferGridPoints, f.uploader.mode)
	}
	if capacity := f.uploader.capacities[binding.BufferGridPoints]; len(points) > capacity {
		return fmt.Errorf("%w: %d grid points into a buffer of %d", uniforms.ErrCapacity, len(points), capacity)
	}
	if len(points) == 0 {
		return nil
	}
	return f.Stage(binding.BufferGridPoints, 0, uniforms.MarshalGridPoints(points))
}

// Writes returns the writes staged so far.
func (f *Frame) Writes() []BufferWrite {
	return f.writes
}

// Flush issues every staged write and clears the stage.
func (f *Frame) Flush() error {
	writes := f.writes
	f.writes = nil
	if err := WriteBuffers(writes, f.uploader.write); err != nil {
		f.uploader.logger.Errorf("flush frame %d: %v", f.Index, err)
		return err
	}
	if f.uploader.profiler != nil {
		var n uint64
		for _, w := range writes {
			n += uint64(len(w.Data))
		}
		f.uploader.profiler.RecordFlush(len(writes), n)
	}
	f.uploader.logger.Debugf("flushed %d writes for frame %d", len(writes), f.Index)
	return nil
}

// Release frees every buffer the uploader created and stops a particle marshaler
// it created.
func (u *Uploader) Release() {
	u.releaseMarshaler()
	for _, p := range u.providers {
		p.Release()
	}
	u.providers = nil
	for r, a := range u.shared {
		if a.buffer != nil {
			a.buffer.Release()
		}
		delete(u.shared, r)
	}
}

func (u *Uploader) releaseMarshaler() {
	if u.ownMarshal && u.marshaler != nil {
		u.marshaler.Close()
	}
	u.marshaler = nil
	u.ownMarshal = false
}
