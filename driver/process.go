package driver

import (
	"context"
	"strconv"
	"strings"

	"github.com/estesp/statbench/stats"
	"github.com/estesp/statbench/utils"
	"github.com/pkg/errors"
)

// ProcessDriver resolves OS processes by name or pid
type ProcessDriver struct {
	source *stats.PSUtilSource
	find   func(name string) ([]*utils.Proc, error)
}

// NewProcessDriver creates a process driver backed by gopsutil
func NewProcessDriver() *ProcessDriver {
	return &ProcessDriver{
		source: stats.NewPSUtilSource(),
		find:   utils.FindProcs,
	}
}

// Type returns a driver.Type to indentify the driver implementation
func (d *ProcessDriver) Type() Type {
	return Process
}

// Info returns a short description of the driver
func (d *ProcessDriver) Info(ctx context.Context) (string, error) {
	return "process table (gopsutil)", nil
}

// Resolve finds the single process named selector, or with pid selector
func (d *ProcessDriver) Resolve(ctx context.Context, selector string) (stats.Target, error) {
	procs, err := d.find(selector)
	if err != nil {
		return stats.Target{}, errors.Wrapf(err, "failed to look up process '%s'", selector)
	}

	switch len(procs) {
	case 0:
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "no process matches '%s'", selector)
	case 1:
	default:
		pids := make([]string, 0, len(procs))
		for _, p := range procs {
			pids = append(pids, strconv.Itoa(p.PID()))
		}
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "'%s' is ambiguous, matching pids %s", selector, strings.Join(pids, ","))
	}

	name, err := procs[0].Name()
	if err != nil {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "process '%s' exited: %v", selector, err)
	}

	return stats.Target{
		Kind: stats.Process,
		ID:   strconv.Itoa(procs[0].PID()),
		Name: name,
	}, nil
}

// Source returns the gopsutil process source
func (d *ProcessDriver) Source() stats.Source {
	return d.source
}

// Close is a no-op for the process driver
func (d *ProcessDriver) Close() error {
	return nil
}
