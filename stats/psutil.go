package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/estesp/statbench/utils"
	"github.com/pkg/errors"
)

// PSUtilSource samples OS processes through gopsutil. CPU usage is measured
// between consecutive polls of the same pid, so one handle is kept per pid.
type PSUtilSource struct {
	mu    sync.Mutex
	procs map[int]*utils.Proc
}

// NewPSUtilSource creates a process sample source
func NewPSUtilSource() *PSUtilSource {
	return &PSUtilSource{procs: make(map[int]*utils.Proc)}
}

func (s *PSUtilSource) handle(pid int) (*utils.Proc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.procs[pid]; ok {
		return p, nil
	}

	p, err := utils.NewProcFromPID(pid)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "pid %d: %v", pid, err)
	}

	s.procs[pid] = p
	return p, nil
}

func (s *PSUtilSource) forget(pid int) {
	s.mu.Lock()
	delete(s.procs, pid)
	s.mu.Unlock()
}

// Poll reads name, cpu, memory and I/O counters of the target process back to back
func (s *PSUtilSource) Poll(ctx context.Context, target Target) (Sample, error) {
	if target.Kind != Process {
		return Sample{}, errors.Errorf("psutil source cannot sample %s targets", target.Kind)
	}

	pid, err := strconv.Atoi(target.ID)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "invalid pid: '%s'", target.ID)
	}

	proc, err := s.handle(pid)
	if err != nil {
		return Sample{}, err
	}

	now := time.Now()

	name, err := proc.Name()
	if err != nil {
		// the name is read from the process table, so failing here means the process is gone
		s.forget(pid)
		return Sample{}, errors.Wrapf(ErrSourceUnavailable, "pid %d: %v", pid, err)
	}

	cpu, err := proc.CPU()
	if err != nil {
		s.forget(pid)
		return Sample{}, errors.Wrapf(ErrSourceUnavailable, "couldn't get cpu info for proc %d: %v", pid, err)
	}

	mem, err := proc.MemPercent()
	if err != nil {
		s.forget(pid)
		return Sample{}, errors.Wrapf(ErrSourceUnavailable, "couldn't get mem info for proc %d: %v", pid, err)
	}

	sample := Sample{
		Timestamp: now,
		TargetID:  target.ID,
		Fields: map[string]string{
			ColumnID:   target.ID,
			ColumnName: name,
			ColumnCPU:  FormatPercent(cpu),
			ColumnMem:  FormatPercent(mem),
		},
	}

	// I/O accounting may be restricted to the process owner; report without it
	if io, err := proc.IO(); err == nil {
		sample.IO = &IOCounters{
			ReadCount:  io.ReadCount,
			WriteCount: io.WriteCount,
			ReadBytes:  io.ReadBytes,
			WriteBytes: io.WriteBytes,
		}
	}

	return sample, nil
}

// FormatPercent renders a percentage the way container runtimes print it,
// using the shortest representation that parses back to the same value
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
