package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
)

// DefaultInterval is how often a Profiler reports.
const DefaultInterval = time.Second

// Stats is one report window of upload activity.
type Stats struct {
	Frames      int
	Writes      int
	Bytes       uint64
	Elapsed     time.Duration
	FPS         float64
	UploadMBps  float64
	HeapMB      float64
	AllocMBps   float64
	GCCount     uint32
	MaxPauseUs  uint64
	LastPauseUs uint64
}

// Profiler tracks flushed frames, staged writes and uploaded bytes, and logs
// throughput and memory statistics once per interval.
type Profiler struct {
	mu             sync.Mutex
	interval       time.Duration
	now            func() time.Time
	logger         common.Logger
	readMem        bool
	memStats       runtime.MemStats
	lastTime       time.Time
	lastGCCount    uint32
	lastTotalAlloc uint64
	window         Stats
	last           Stats
}

// ProfilerOption is a functional option used to configure a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithInterval sets the report interval.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets where reports are written; nil disables them.
func WithLogger(l common.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = common.LoggerOrNop(l)
	}
}

// WithMemStats toggles runtime memory statistics in reports. Reading them stops
// the world briefly.
func WithMemStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// NewProfiler creates a Profiler reporting every DefaultInterval.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		interval: DefaultInterval,
		now:      time.Now,
		logger:   common.NewNopLogger(),
		readMem:  true,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordFlush counts one flushed frame with its writes and payload size. Safe for
// concurrent use.
//
// Returns:
//   - bool: true if this call closed a window and logged a report
func (p *Profiler) RecordFlush(writes int, bytes uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window.Frames++
	p.window.Writes += writes
	p.window.Bytes += bytes

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.interval {
		return false
	}

	s := p.window
	s.Elapsed = elapsed
	s.FPS = float64(s.Frames) / elapsed.Seconds()
	s.UploadMBps = float64(s.Bytes) / 1024 / 1024 / elapsed.Seconds()
	if p.readMem {
		p.fillMem(&s, elapsed)
	}

	p.logger.Infof("[Profiler] FPS: %.2f | Writes: %d | Upload: %.2f MB/s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs)",
		s.FPS, s.Writes, s.UploadMBps, s.HeapMB, s.AllocMBps, s.GCCount, s.LastPauseUs, s.MaxPauseUs)

	p.last = s
	p.window = Stats{}
	p.lastTime = current
	return true
}

func (p *Profiler) fillMem(s *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.AllocMBps = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	s.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		s.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent completed report.
func (p *Profiler) Last() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
