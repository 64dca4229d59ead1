package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func TestRecordFlushReportsPerInterval(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(2*time.Second), WithMemStats(false))

	assert.False(t, p.RecordFlush(2, 1024*1024))
	clock.t = clock.t.Add(time.Second)
	assert.False(t, p.RecordFlush(3, 1024*1024))
	assert.Zero(t, p.Last().Frames)

	clock.t = clock.t.Add(time.Second)
	assert.True(t, p.RecordFlush(1, 2*1024*1024))

	s := p.Last()
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 6, s.Writes)
	assert.Equal(t, uint64(4*1024*1024), s.Bytes)
	assert.Equal(t, 2*time.Second, s.Elapsed)
	assert.InDelta(t, 1.5, s.FPS, 1e-9)
	assert.InDelta(t, 2.0, s.UploadMBps, 1e-9)
	assert.Zero(t, s.HeapMB)

	assert.False(t, p.RecordFlush(1, 0), "a new window starts after a report")
}

func TestRecordFlushReadsMemStats(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now))
	clock.t = clock.t.Add(DefaultInterval)
	assert.True(t, p.RecordFlush(1, 0))
	assert.Positive(t, p.Last().HeapMB)
}
