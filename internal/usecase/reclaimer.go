package usecase

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/process"

	applogger "MarketPulse/pkg/logger"
)

type residentRecorder interface {
	RecordResidentMemory(bytes uint64)
}

// MemoryReclaimer forces a collection and returns freed pages to the OS between symbols, so
// long runs over many models keep a flat footprint.
type MemoryReclaimer struct {
	proc *process.Process
	rec  residentRecorder
	l    *applogger.Logger
}

// NewMemoryReclaimer samples the current process. rec may be nil.
func NewMemoryReclaimer(rec residentRecorder, l *applogger.Logger) *MemoryReclaimer {
	if l == nil {
		l = applogger.Nop()
	}
	r := &MemoryReclaimer{rec: rec, l: l.Component("reclaimer")}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		r.proc = p
	} else {
		r.l.Warn("process stats unavailable", applogger.Error(err))
	}
	return r
}

// Reclaim runs the collector and returns resident set size afterwards (0 when unknown).
func (r *MemoryReclaimer) Reclaim() uint64 {
	runtime.GC()
	debug.FreeOSMemory()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rss := r.resident()
	r.l.Info("memory reclaimed",
		applogger.Uint64("rss_bytes", rss),
		applogger.Uint64("heap_inuse_bytes", ms.HeapInuse),
		applogger.Int("goroutines", runtime.NumGoroutine()),
	)
	if r.rec != nil && rss > 0 {
		r.rec.RecordResidentMemory(rss)
	}
	return rss
}

func (r *MemoryReclaimer) resident() uint64 {
	if r.proc == nil {
		return 0
	}
	mi, err := r.proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return mi.RSS
}
