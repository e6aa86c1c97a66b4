//go:build !windows
// +build !windows

package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/containerd/cgroups"
	"github.com/pkg/errors"
)

// CGroupsSource samples Linux (v1) control groups. CPU usage is the cpuacct
// delta between consecutive polls of the same cgroup.
type CGroupsSource struct {
	mu      sync.Mutex
	handles map[string]*cgroupHandle
	load    func(path string) (cgroups.Cgroup, error)
}

type cgroupHandle struct {
	control      cgroups.Cgroup
	lastCPUUsage uint64
	lastCPUTime  time.Time
}

// NewCGroupsSource creates a cgroup sample source
func NewCGroupsSource() *CGroupsSource {
	return &CGroupsSource{
		handles: make(map[string]*cgroupHandle),
		load: func(path string) (cgroups.Cgroup, error) {
			return cgroups.Load(reportControllers, cgroups.StaticPath(path))
		},
	}
}

// reportControllers returns v1 controllers only required for measuring resource usage
func reportControllers() ([]cgroups.Subsystem, error) {
	v1, err := cgroups.V1()
	if err != nil {
		return nil, err
	}

	var out []cgroups.Subsystem
	for _, sub := range v1 {
		switch sub.Name() {
		case cgroups.Memory, cgroups.Cpuacct, cgroups.Pids:
			out = append(out, sub)
		}
	}

	return out, nil
}

func (s *CGroupsSource) handle(path string) (*cgroupHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[path]; ok {
		return h, nil
	}

	control, err := s.load(path)
	if err != nil {
		if errors.Is(err, cgroups.ErrCgroupDeleted) {
			return nil, errors.Wrapf(ErrSourceUnavailable, "cgroup '%s'", path)
		}
		return nil, errors.Wrapf(err, "failed to load cgroup: '%s'", path)
	}

	h := &cgroupHandle{control: control}
	s.handles[path] = h
	return h, nil
}

// Poll gets cpu, memory and pid usage from the target control group
func (s *CGroupsSource) Poll(ctx context.Context, target Target) (Sample, error) {
	if target.Kind != CGroup {
		return Sample{}, errors.Errorf("cgroups source cannot sample %s targets", target.Kind)
	}

	h, err := s.handle(target.ID)
	if err != nil {
		return Sample{}, err
	}

	if h.control.State() == cgroups.Deleted {
		return Sample{}, errors.Wrapf(ErrSourceUnavailable, "cgroup '%s' deleted", target.ID)
	}

	metrics, err := h.control.Stat(cgroups.IgnoreNotExist)
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to get metrics from cgroup")
	}

	now := time.Now()

	var cpuPct float64
	if metrics.CPU != nil && metrics.CPU.Usage != nil {
		cpu := metrics.CPU.Usage.Total
		// the first poll only establishes the baseline
		if !h.lastCPUTime.IsZero() && cpu >= h.lastCPUUsage {
			cpuPct = float64(cpu-h.lastCPUUsage) / float64(now.Sub(h.lastCPUTime).Nanoseconds()) * 100
		}
		h.lastCPUUsage = cpu
		h.lastCPUTime = now
	}

	var memPct float64
	if metrics.Memory != nil && metrics.Memory.Usage != nil && metrics.Memory.Usage.Limit > 0 {
		memPct = float64(metrics.Memory.Usage.Usage) / float64(metrics.Memory.Usage.Limit) * 100
	}

	fields := map[string]string{
		ColumnID:   target.ID,
		ColumnName: target.Name,
		ColumnCPU:  FormatPercent(cpuPct),
		ColumnMem:  FormatPercent(memPct),
	}
	if metrics.Pids != nil {
		fields[ColumnPIDs] = strconv.FormatUint(metrics.Pids.Current, 10)
	}

	return Sample{
		Timestamp: now,
		TargetID:  target.ID,
		Fields:    fields,
	}, nil
}
