// Package diag samples the server's own process for the health
// endpoint. Failures degrade to zero values; health never errors.
package diag

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type Snapshot struct {
	UptimeSeconds int64   `json:"uptimeSeconds"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	Goroutines    int     `json:"goroutines"`
}

type Collector struct {
	startedAt time.Time
	proc      *process.Process
}

func NewCollector() *Collector {
	c := &Collector{startedAt: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	}
	return c
}

func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}
	if c.proc == nil {
		return snap
	}
	if mem, err := c.proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	if cpu, err := c.proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	return snap
}
