package utils

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
)

// Proc wraps a gopsutil process handle
type Proc struct {
	proc *process.Process
}

// ProcIO is a snapshot of a process I/O counters
type ProcIO struct {
	ReadCount  uint64
	WriteCount uint64
	ReadBytes  uint64
	WriteBytes uint64
}

// NewProcFromPID returns a handle for an existing process
func NewProcFromPID(pid int) (*Proc, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	// gopsutil does not check for existence up front on every platform
	if _, err := p.Name(); err != nil {
		return nil, errors.Wrapf(err, "process %d not found", pid)
	}

	return &Proc{p}, nil
}

// FindProcs returns every process whose name equals name. A numeric name is
// treated as a pid.
func FindProcs(name string) ([]*Proc, error) {
	if pid, err := strconv.Atoi(name); err == nil {
		proc, err := NewProcFromPID(pid)
		if err != nil {
			return nil, nil
		}
		return []*Proc{proc}, nil
	}

	list, err := process.Processes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get process list")
	}

	var out []*Proc
	for _, proc := range list {
		procName, err := proc.Name()
		if err != nil {
			// processes may exit while we walk the table
			continue
		}

		if procName == name {
			out = append(out, &Proc{proc})
		}
	}

	return out, nil
}

// PID returns process id
func (p *Proc) PID() int {
	return int(p.proc.Pid)
}

// Name returns the process name
func (p *Proc) Name() (string, error) {
	return p.proc.Name()
}

// MemPercent returns the share of total physical memory used by the process
func (p *Proc) MemPercent() (float64, error) {
	pct, err := p.proc.MemoryPercent()
	return float64(pct), err
}

// CPU returns how many percents of the CPU a process uses between this and previous call
func (p *Proc) CPU() (float64, error) {
	return p.proc.Percent(0)
}

// IO returns the process I/O counters
func (p *Proc) IO() (*ProcIO, error) {
	io, err := p.proc.IOCounters()
	if err != nil {
		return nil, err
	}

	return &ProcIO{
		ReadCount:  io.ReadCount,
		WriteCount: io.WriteCount,
		ReadBytes:  io.ReadBytes,
		WriteBytes: io.WriteBytes,
	}, nil
}
