package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Counters are the cumulative pipeline counters the profiler samples each tick.
type Counters struct {
	Frames  uint64
	Skipped uint64
	Passes  uint64
}

// Report is one interval's worth of derived statistics.
type Report struct {
	FPS            float64
	SkippedPerSec  float64
	PassesPerFrame float64
	HeapMB         float64
	AllocRateMB    float64
	GCCount        uint32
	LastPauseUs    uint64
	MaxPauseUs     uint64
	SysMB          float64
}

// String formats the report as the profiler log line.
func (r Report) String() string {
	return fmt.Sprintf("FPS: %.2f | Skipped/s: %.2f | Passes/frame: %.1f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		r.FPS, r.SkippedPerSec, r.PassesPerFrame, r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)
}

// Profiler tracks frame rate, pass throughput and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	now            func() time.Time
	lastTime       time.Time
	updateInterval time.Duration
	last           Counters
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	quiet          bool
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options for profiler configuration
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per loop iteration with the pipeline's cumulative counters.
// Logs performance statistics when the update interval has elapsed.
//
// Parameters:
//   - c: the current cumulative counters
//
// Returns:
//   - Report: the statistics for the elapsed interval
//   - bool: true if an interval elapsed and the report was produced this tick
func (p *Profiler) Tick(c Counters) (Report, bool) {
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Report{}, false
	}
	secs := elapsed.Seconds()

	frames := c.Frames - p.last.Frames
	r := Report{
		FPS:           float64(frames) / secs,
		SkippedPerSec: float64(c.Skipped-p.last.Skipped) / secs,
	}
	if frames > 0 {
		r.PassesPerFrame = float64(c.Passes-p.last.Passes) / float64(frames)
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / secs

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}

	if !p.quiet {
		log.Printf("[Profiler] %s", r)
	}

	p.last = c
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return r, true
}
