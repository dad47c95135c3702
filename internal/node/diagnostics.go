package node

import (
	"context"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Diagnostics periodically logs scheduler and process health. It is only
// started in debug mode and has no effect on what clients receive.
type Diagnostics struct {
	interval time.Duration
	set      *ListenerSet
	proc     *process.Process
}

// Sample is one diagnostics reading. Process fields are zero when the
// platform does not expose them.
type Sample struct {
	Goroutines int
	Sessions   int
	Listeners  int
	Stats      StatsSnapshot
	RSS        uint64
	FDs        int32
	Threads    int32
}

func NewDiagnostics(interval time.Duration, set *ListenerSet) *Diagnostics {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	d := &Diagnostics{interval: interval, set: set}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("Process diagnostics unavailable: %v", err)
	} else {
		d.proc = p
	}
	return d
}

func (d *Diagnostics) Sample() Sample {
	s := Sample{
		Goroutines: runtime.NumGoroutine(),
		Sessions:   d.set.Sessions().Len(),
		Listeners:  len(d.set.Addrs()),
		Stats:      d.set.Stats().Snapshot(),
	}
	if d.proc == nil {
		return s
	}
	if mem, err := d.proc.MemoryInfo(); err == nil {
		s.RSS = mem.RSS
	}
	if n, err := d.proc.NumFDs(); err == nil {
		s.FDs = n
	}
	if n, err := d.proc.NumThreads(); err == nil {
		s.Threads = n
	}
	return s
}

func (d *Diagnostics) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := d.Sample()
			log.Printf("diag: goroutines=%d listeners=%d sessions=%d accepted=%d disconnects=%d frames=%d bytes=%d rss=%dKiB fds=%d threads=%d",
				s.Goroutines, s.Listeners, s.Sessions, s.Stats.Accepted, s.Stats.Disconnects,
				s.Stats.Frames, s.Stats.Bytes, s.RSS/1024, s.FDs, s.Threads)
			for _, info := range d.set.Sessions().Snapshot() {
				log.Printf("diag: session %d port=%d remote=%s state=%s frames=%d age=%s",
					info.ID, info.Port, info.Remote, info.State, info.Frames,
					time.Since(info.StartedAt).Truncate(time.Second))
			}
		}
	}
}
