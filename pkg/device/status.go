package device

import (
	"context"
	"runtime"
	"syscall"
	"time"

	"github.com/golang/glog"
)

// StorageInfo reports filesystem usage for the data directory, in bytes.
type StorageInfo struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	PercentUsed float64 `json:"percent_used"`
}

// ReadStorageInfo queries the filesystem holding dir. Failures degrade to a
// zero report rather than an error; status must always be answerable.
func ReadStorageInfo(dir string) StorageInfo {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		glog.Warningf("statfs %s: %v", dir, err)
		return StorageInfo{}
	}
	info := StorageInfo{
		Total: uint64(st.Bsize) * st.Blocks,
		Free:  uint64(st.Bsize) * st.Bavail,
	}
	info.Used = info.Total - info.Free
	if info.Total > 0 {
		info.PercentUsed = float64(info.Used) / float64(info.Total) * 100
	}
	return info
}

// MemoryInfo reports heap usage, in bytes.
type MemoryInfo struct {
	Free      uint64 `json:"free"`
	Allocated uint64 `json:"allocated"`
}

// ReadMemoryInfo samples the runtime heap.
func ReadMemoryInfo() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryInfo{
		Free:      ms.HeapIdle - ms.HeapReleased,
		Allocated: ms.HeapAlloc,
	}
}

// DefaultGCThreshold is the heap size past which the memory guard forces a
// collection.
const DefaultGCThreshold = 8 << 20

// MemoryGuard proactively collects garbage when the heap grows, keeping
// pressure from turning into an allocation failure mid-session.
type MemoryGuard struct {
	// Threshold in bytes of allocated heap. Zero means DefaultGCThreshold.
	Threshold uint64

	lastRun time.Time
}

// Tick implements framework.Ticker.
func (g *MemoryGuard) Tick(ctx context.Context, now time.Time) {
	if now.Sub(g.lastRun) < 10*time.Second {
		return
	}
	threshold := g.Threshold
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc < threshold {
		return
	}
	g.lastRun = now
	runtime.GC()
	glog.V(2).Infof("memory guard: collected, heap was %d bytes", ms.HeapAlloc)
}
