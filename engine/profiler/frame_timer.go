package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-render/log"
)

// FrameStats is a snapshot of frame timing collected by a FrameTimer.
type FrameStats struct {
	// Frames is the total number of ticks since creation.
	Frames uint64

	// LastFrame is the time between the two most recent ticks.
	LastFrame time.Duration

	// FPS is the frame rate measured over the last completed interval.
	FPS float64

	// HeapMB is the live heap size read at the last completed interval.
	HeapMB float64

	// GCCount is the number of completed GC cycles read at the last completed interval.
	GCCount uint32
}

// FrameTimer tracks frame rate and memory statistics for performance monitoring.
// Stats are logged at a configurable interval. A FrameTimer is not safe for
// concurrent use; the render coordinator owns it.
type FrameTimer struct {
	now      func() time.Time
	interval time.Duration
	logger   log.Logger

	stats FrameStats

	intervalFrames int
	intervalStart  time.Time
	lastTick       time.Time

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewFrameTimer creates a FrameTimer. The interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the timer
//
// Returns:
//   - *FrameTimer: the newly created timer
func NewFrameTimer(options ...FrameTimerOption) *FrameTimer {
	p := &FrameTimer{
		now:      time.Now,
		interval: time.Second,
		logger:   log.New("profiler"),
	}
	for _, opt := range options {
		opt(p)
	}
	start := p.now()
	p.intervalStart = start
	p.lastTick = start
	return p
}

// Tick records one presented frame. When the interval has elapsed it
// refreshes FPS and memory statistics and logs them at info level.
//
// Returns:
//   - bool: true if stats were refreshed this tick, false otherwise
func (p *FrameTimer) Tick() bool {
	current := p.now()
	p.stats.Frames++
	p.stats.LastFrame = current.Sub(p.lastTick)
	p.lastTick = current
	p.intervalFrames++

	elapsed := current.Sub(p.intervalStart)
	if elapsed < p.interval || elapsed <= 0 {
		return false
	}

	p.stats.FPS = float64(p.intervalFrames) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	p.stats.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.stats.GCCount = gcCount

	p.logger.Infof("FPS: %.2f | Frame: %s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		p.stats.FPS, p.stats.LastFrame, p.stats.HeapMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.intervalFrames = 0
	p.intervalStart = current
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Stats returns the current frame statistics.
func (p *FrameTimer) Stats() FrameStats {
	return p.stats
}
