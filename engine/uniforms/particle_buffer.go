package uniforms

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// DefaultParticleChunk is the number of particles one marshal task encodes.
const DefaultParticleChunk = 64 * 1024

// MarshalParticles serializes a particle array for the particle storage buffer.
// Elements are packed at a 48-byte stride.
//
// Parameters:
//   - particles: the particles to encode
//
// Returns:
//   - []byte: len(particles)*48 bytes ready for GPU upload
func MarshalParticles(particles []ParticleUniforms) []byte {
	buf := make([]byte, len(particles)*ParticleUniformsSize)
	for i := range particles {
		particles[i].marshalInto(buf[i*ParticleUniformsSize:])
	}
	return buf
}

// UnmarshalParticles decodes a particle storage buffer read back from the GPU.
//
// Parameters:
//   - buf: raw buffer contents
//
// Returns:
//   - []ParticleUniforms: the decoded particles
//   - error: ErrBufferStride if len(buf) is not a multiple of 48
func UnmarshalParticles(buf []byte) ([]ParticleUniforms, error) {
	if len(buf)%ParticleUniformsSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes, stride %d", ErrBufferStride, len(buf), ParticleUniformsSize)
	}
	out := make([]ParticleUniforms, len(buf)/ParticleUniformsSize)
	for i := range out {
		// length is checked above, Unmarshal cannot fail here
		_ = out[i].Unmarshal(buf[i*ParticleUniformsSize:])
	}
	return out, nil
}

// ParticleMarshaler encodes large particle arrays in parallel. Each chunk is
// written into a disjoint window of one output buffer by a pooled worker.
type ParticleMarshaler struct {
	pool      worker.DynamicWorkerPool
	chunkSize int
	workers   int
	closed    atomic.Bool
	closeOnce sync.Once
}

// ParticleMarshalerOption is a functional option used to configure a ParticleMarshaler during construction.
type ParticleMarshalerOption func(*ParticleMarshaler)

// WithChunkSize sets how many particles one task encodes.
//
// Parameters:
//   - n: particles per task; values below 1 are ignored
//
// Returns:
//   - ParticleMarshalerOption: a function that sets the chunk size
func WithChunkSize(n int) ParticleMarshalerOption {
	return func(m *ParticleMarshaler) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithWorkers sets the worker pool size.
//
// Parameters:
//   - n: number of workers; values below 1 are ignored
//
// Returns:
//   - ParticleMarshalerOption: a function that sets the worker count
func WithWorkers(n int) ParticleMarshalerOption {
	return func(m *ParticleMarshaler) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewParticleMarshaler creates a ParticleMarshaler backed by a dynamic worker pool.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - *ParticleMarshaler: the marshaler
func NewParticleMarshaler(options ...ParticleMarshalerOption) *ParticleMarshaler {
	m := &ParticleMarshaler{
		chunkSize: DefaultParticleChunk,
		workers:   max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(m)
	}
	// Queue of 256 covers a full 15M-point ring at the default chunk size.
	m.pool = worker.NewDynamicWorkerPool(m.workers, 256, 1*time.Second)
	return m
}

// Close stops the worker pool. Later calls to Marshal encode on the calling
// goroutine. Close may be called more than once.
func (m *ParticleMarshaler) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.pool.Stop()
	})
}

// Marshal serializes particles exactly as MarshalParticles does. Arrays no larger
// than one chunk, and every array after Close, are encoded on the calling goroutine.
//
// Parameters:
//   - particles: the particles to encode
//
// Returns:
//   - []byte: len(particles)*48 bytes ready for GPU upload
func (m *ParticleMarshaler) Marshal(particles []ParticleUniforms) []byte {
	if len(particles) <= m.chunkSize || m.closed.Load() {
		return MarshalParticles(particles)
	}

	buf := make([]byte, len(particles)*ParticleUniformsSize)
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(particles); start += m.chunkSize {
		end := min(start+m.chunkSize, len(particles))
		chunk := particles[start:end]
		dst := buf[start*ParticleUniformsSize : end*ParticleUniformsSize]

		wg.Add(1)
		id := taskID
		taskID++
		m.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := range chunk {
					chunk[i].marshalInto(dst[i*ParticleUniformsSize:])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return buf
}
