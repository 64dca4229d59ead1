package bind_group_provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-pointcloud/engine/binding"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/profiler"
	"github.com/Carmen-Shannon/oxy-pointcloud/engine/uniforms"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGPU records buffer creation and writes without touching a device.
type fakeGPU struct {
	mu      sync.Mutex
	created []wgpu.BufferDescriptor
	byBuf   map[*wgpu.Buffer]string
	writes  []recordedWrite
	failOn  string
}

type recordedWrite struct {
	label  string
	offset uint64
	data   []byte
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{byBuf: make(map[*wgpu.Buffer]string)}
}

func (g *fakeGPU) alloc(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOn != "" && desc.Label == g.failOn {
		return nil, errors.New("out of memory")
	}
	g.created = append(g.created, *desc)
	buf := &wgpu.Buffer{}
	g.byBuf[buf] = desc.Label
	return buf, nil
}

func (g *fakeGPU) write(buf *wgpu.Buffer, offset uint64, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes = append(g.writes, recordedWrite{label: g.byBuf[buf], offset: offset, data: data})
	return nil
}

func TestNewUploaderAllocatesPerFrameUniforms(t *testing.T) {
	gpu := newFakeGPU()
	u, err := NewUploader(binding.ModeUnproject, gpu.alloc, gpu.write,
		WithInFlightFrames(3),
		WithCapacity(binding.BufferParticleUniforms, 100),
		WithCapacity(binding.BufferGridPoints, 10),
	)
	require.NoError(t, err)

	// two shared arrays plus one uniform buffer per frame
	require.Len(t, gpu.created, 2+3)
	sizes := map[string]uint64{}
	for _, d := range gpu.created {
		sizes[d.Label] = d.Size
	}
	assert.Equal(t, uint64(100*48), sizes["particleUniforms"])
	assert.Equal(t, uint64(10*8), sizes["gridPoints"])
	assert.Equal(t, uint64(288), sizes["unproject frame 2 pointCloudUniforms"])

	p0, p1 := u.Provider(0), u.Provider(1)
	b0, _ := p0.Buffer(binding.BufferParticleUniforms)
	b1, _ := p1.Buffer(binding.BufferParticleUniforms)
	assert.Same(t, b0, b1, "particle ring is shared across frames")
	c0, _ := p0.Buffer(binding.BufferPointCloudUniforms)
	c1, _ := p1.Buffer(binding.BufferPointCloudUniforms)
	assert.NotSame(t, c0, c1, "uniforms are per frame")

	for _, d := range gpu.created {
		if d.Label == "particleUniforms" {
			assert.NotZero(t, d.Usage&wgpu.BufferUsageStorage)
		} else if d.Label == "unproject frame 0 pointCloudUniforms" {
			assert.NotZero(t, d.Usage&wgpu.BufferUsageUniform)
		}
	}
}

func TestNewUploaderErrors(t *testing.T) {
	gpu := newFakeGPU()
	_, err := NewUploader(binding.ModeMesh, gpu.alloc, gpu.write)
	assert.ErrorIs(t, err, ErrNoCapacity)

	gpu = newFakeGPU()
	gpu.failOn = "bounds frame 0 boundingBox"
	_, err = NewUploader(binding.ModeBounds, gpu.alloc, gpu.write, WithCapacity(binding.BufferParticleUniforms, 4))
	assert.ErrorContains(t, err, "out of memory")
}

func TestNewUploaderRespectsStorageLimit(t *testing.T) {
	gpu := newFakeGPU()
	u, err := NewUploader(binding.ModeParticles, gpu.alloc, gpu.write)
	require.NoError(t, err)
	want := int(DefaultStorageLimit / uniforms.ParticleUniformsSize)
	assert.Equal(t, want, u.Capacity(binding.BufferParticleUniforms))
	require.Len(t, gpu.created, 1+DefaultInFlightFrames)
	assert.LessOrEqual(t, gpu.created[0].Size, DefaultStorageLimit)

	big := wgpu.Limits{MaxStorageBufferBindingSize: 1 << 30, MaxBufferSize: 1 << 30}
	u, err = NewUploader(binding.ModeParticles, newFakeGPU().alloc, gpu.write, WithLimits(big))
	require.NoError(t, err)
	assert.Equal(t, uniforms.DefaultMaxPoints, u.Capacity(binding.BufferParticleUniforms))

	small := wgpu.Limits{MaxStorageBufferBindingSize: 1 << 30, MaxBufferSize: 48 * 10}
	u, err = NewUploader(binding.ModeParticles, newFakeGPU().alloc, gpu.write, WithLimits(small))
	require.NoError(t, err)
	assert.Equal(t, 10, u.Capacity(binding.BufferParticleUniforms), "the smaller limit applies")

	_, err = NewUploader(binding.ModeParticles, newFakeGPU().alloc, gpu.write,
		WithCapacity(binding.BufferParticleUniforms, uniforms.DefaultMaxPoints))
	assert.ErrorIs(t, err, ErrExceedsLimit)
}

func TestFrameStageGridPoints(t *testing.T) {
	gpu := newFakeGPU()
	u, err := NewUploader(binding.ModeUnproject, gpu.alloc, gpu.write,
		WithInFlightFrames(1),
		WithCapacity(binding.BufferParticleUniforms, 16),
	)
	require.NoError(t, err)
	assert.Equal(t, uniforms.DefaultGridPoints, u.Capacity(binding.BufferGridPoints))

	f, err := u.BeginFrame(context.Background())
	require.NoError(t, err)
	grid := uniforms.GridPoints(mgl32.Vec2{256, 192}, uniforms.DefaultGridPoints)
	require.NotEmpty(t, grid)
	require.LessOrEqual(t, len(grid), uniforms.DefaultGridPoints)
	require.NoError(t, f.StageGridPoints(grid))
	require.NoError(t, f.StageGridPoints(nil))
	require.NoError(t, f.Flush())

	require.Len(t, gpu.writes, 1)
	assert.Equal(t, "gridPoints", gpu.writes[0].label)
	assert.Equal(t, uint64(0), gpu.writes[0].offset)
	assert.Equal(t, uniforms.MarshalGridPoints(grid), gpu.writes[0].data)

	tooMany := make([]mgl32.Vec2, uniforms.DefaultGridPoints+1)
	assert.ErrorIs(t, f.StageGridPoints(tooMany), uniforms.ErrCapacity)

	bounds, err := NewUploader(binding.ModeBounds, gpu.alloc, gpu.write, WithCapacity(binding.BufferParticleUniforms, 4))
	require.NoError(t, err)
	bf, err := bounds.BeginFrame(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, bf.StageGridPoints(grid), binding.ErrResourceNotInMode)
}

func TestUploaderClosesOwnMarshaler(t *testing.T) {
	gpu := newFakeGPU()
	u, err := NewUploader(binding.ModeParticles, gpu.alloc, gpu.write, WithCapacity(binding.BufferParticleUniforms, 4))
	require.NoError(t, err)
	own := u.marshaler
	require.NotNil(t, own)
	u.releaseMarshaler()
	assert.Equal(t, uniforms.MarshalParticles(make([]uniforms.ParticleUniforms, 2)), own.Marshal(make([]uniforms.ParticleUniforms, 2)))

	shared := uniforms.NewParticleMarshaler(uniforms.WithWorkers(1), uniforms.WithChunkSize(1))
	defer shared.Close()
	u, err = NewUploader(binding.ModeParticles, gpu.alloc, gpu.write,
		WithCapacity(binding.BufferParticleUniforms, 4),
		WithParticleMarshaler(shared),
	)
	require.NoError(t, err)
	u.releaseMarshaler()
	ps := make([]uniforms.ParticleUniforms, 3)
	assert.Equal(t, uniforms.MarshalParticles(ps), shared.Marshal(ps), "a caller's marshaler keeps working")

	feed, err := NewUploader(binding.ModeCameraFeed, gpu.alloc, gpu.write)
	require.NoError(t, err)
	assert.Nil(t, feed.marshaler, "modes without particles start no workers")
}

func TestFrameStageAndFlush(t *testing.T) {
	gpu := newFakeGPU()
	prof := profiler.NewProfiler(profiler.WithInterval(time.Nanosecond), profiler.WithMemStats(false))
	u, err := NewUploader(binding.ModeBounds, gpu.alloc, gpu.write,
		WithInFlightFrames(2),
		WithCapacity(binding.BufferParticleUniforms, 4),
		WithProfiler(prof),
	)
	require.NoError(t, err)

	f, err := u.BeginFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)

	pc := uniforms.NewPointCloudUniforms(uniforms.WithMaxPoints(4))
	box := uniforms.NewBox([3]float32{1, 1, 1}, [3]float32{-1, -1, -1})
	require.NoError(t, f.StageUniforms(binding.BufferPointCloudUniforms, &pc))
	require.NoError(t, f.StageUniforms(binding.BufferBoundingBox, &box))

	err = f.Stage(binding.BufferGridPoints, 0, []byte{1})
	assert.ErrorIs(t, err, binding.ErrResourceNotInMode)

	ps := make([]uniforms.ParticleUniforms, 3)
	for i := range ps {
		ps[i].Confidence = float32(i + 1)
	}
	require.NoError(t, f.StageParticles(2, ps))
	require.Len(t, f.Writes(), 4, "ring wrap splits the particle write")

	time.Sleep(time.Millisecond)
	require.NoError(t, f.Flush())
	assert.Empty(t, f.Writes())
	require.Len(t, gpu.writes, 4)
	assert.Equal(t, 4, prof.Last().Writes)
	assert.Equal(t, uint64(288+32+3*48), prof.Last().Bytes)

	assert.Equal(t, "bounds frame 0 pointCloudUniforms", gpu.writes[0].label)
	assert.Len(t, gpu.writes[0].data, uniforms.PointCloudUniformsSize)
	assert.Equal(t, "bounds frame 0 boundingBox", gpu.writes[1].label)

	head, tail := gpu.writes[2], gpu.writes[3]
	assert.Equal(t, "particleUniforms", head.label)
	assert.Equal(t, uint64(2*48), head.offset)
	assert.Len(t, head.data, 2*48)
	assert.Equal(t, uint64(0), tail.offset)
	assert.Len(t, tail.data, 48)

	assert.ErrorIs(t, f.StageParticles(0, make([]uniforms.ParticleUniforms, 5)), uniforms.ErrCapacity)
	assert.ErrorIs(t, f.StageParticles(-1, ps), uniforms.ErrCursorRange)
	require.NoError(t, u.Complete(f.Index))
}

func TestWriteBuffersRejectsBadBatch(t *testing.T) {
	gpu := newFakeGPU()
	buf := &wgpu.Buffer{}
	p, err := NewBindGroupProvider("p", binding.ModeParticles, WithBuffer(binding.BufferPointCloudUniforms, buf, 288))
	require.NoError(t, err)

	err = WriteBuffers([]BufferWrite{
		{Provider: p, Resource: binding.BufferPointCloudUniforms, Data: make([]byte, 16)},
		{Provider: p, Resource: binding.BufferPointCloudUniforms, Offset: 280, Data: make([]byte, 16)},
	}, gpu.write)
	assert.ErrorIs(t, err, ErrWriteOutOfRange)
	assert.Empty(t, gpu.writes, "nothing is written when any write is bad")

	err = WriteBuffers([]BufferWrite{{Provider: p, Resource: binding.BufferParticleUniforms, Data: []byte{1}}}, gpu.write)
	assert.ErrorIs(t, err, ErrNoBuffer)
}

func TestProviderRejectsForeignResources(t *testing.T) {
	_, err := NewBindGroupProvider("mesh", binding.ModeMesh, WithBuffer(binding.BufferParticleUniforms, &wgpu.Buffer{}, 48))
	assert.ErrorIs(t, err, binding.ErrResourceNotInMode)

	p, err := NewBindGroupProvider("feed", binding.ModeCameraFeed)
	require.NoError(t, err)
	assert.ErrorIs(t, p.SetTextureView(binding.TextureDepth, &wgpu.TextureView{}), binding.ErrResourceNotInMode)

	y, cbcr := &wgpu.TextureView{}, &wgpu.TextureView{}
	require.NoError(t, p.SetTextureView(binding.TextureCbCr, cbcr))
	require.NoError(t, p.SetTextureView(binding.TextureY, y))
	require.NoError(t, p.SetBuffer(binding.BufferRGBUniforms, &wgpu.Buffer{}, 64))

	textures := p.Entries(binding.TextureGroup)
	require.Len(t, textures, 2)
	assert.Equal(t, uint32(0), textures[0].Binding)
	assert.Same(t, y, textures[0].TextureView)
	buffers := p.Entries(binding.BufferGroup)
	require.Len(t, buffers, 1)
	assert.Equal(t, uint64(64), buffers[0].Size)
}

func TestFrameRingBlocksWhenFull(t *testing.T) {
	r := NewFrameRing(2)
	ctx := context.Background()

	a, err := r.Begin(ctx)
	require.NoError(t, err)
	b, err := r.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, []int{a, b})
	assert.Equal(t, 2, r.InFlight())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = r.Begin(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan int, 1)
	go func() {
		idx, _ := r.Begin(ctx)
		got <- idx
	}()
	require.NoError(t, r.Complete(b))
	select {
	case idx := <-got:
		assert.Equal(t, 1, idx, "the completed frame is reused")
	case <-time.After(time.Second):
		t.Fatal("Begin did not wake after Complete")
	}

	assert.ErrorIs(t, r.Complete(b+5), ErrFrameNotInFlight)
	require.NoError(t, r.Complete(a))
	assert.ErrorIs(t, r.Complete(a), ErrFrameNotInFlight)
	assert.Equal(t, 1, NewFrameRing(0).Len())
}
