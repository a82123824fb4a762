// Package profiling wraps runtime/pprof for profiling annotation runs.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiler manages profiling for one process lifetime.
type Profiler struct {
	cpuFile *os.File
}

// NewProfiler creates an idle profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU starts CPU profiling into the given file. The returned cleanup
// stops profiling and flushes the file; call it before the process exits or
// the profile is unusable.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating CPU profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}
	p.cpuFile = f
	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// WriteHeap writes a point-in-time heap profile. A GC runs first so the
// profile reflects live objects, not garbage awaiting collection.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}
	return nil
}

// WriteGoroutine dumps stacks of all current goroutines, useful when the
// worker pool appears stuck.
func (p *Profiler) WriteGoroutine(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating goroutine profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.Lookup("goroutine").WriteTo(f, 1); err != nil {
		return fmt.Errorf("writing goroutine profile: %w", err)
	}
	return nil
}
