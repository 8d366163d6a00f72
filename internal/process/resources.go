package process

import (
	"context"
	"fmt"

	gprocess "github.com/shirou/gopsutil/v3/process"
)

// Resources is a point-in-time usage sample of one live process.
// It is informational only; nothing is limited or enforced.
type Resources struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`
}

// Sample reads the current resource usage of pid.
func Sample(ctx context.Context, pid int) (*Resources, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}

	p, err := gprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("error getting process %d: %w", pid, err)
	}

	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting memory info: %w", err)
	}

	cpu, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting cpu percent: %w", err)
	}

	threads, err := p.NumThreadsWithContext(ctx)
	if err != nil {
		threads = 0
	}

	return &Resources{
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpu,
		NumThreads: threads,
	}, nil
}
