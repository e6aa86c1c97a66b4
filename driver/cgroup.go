package driver

import (
	"context"
	"path/filepath"

	"github.com/estesp/statbench/stats"
	"github.com/pkg/errors"
)

// CGroupDriver targets a control group by its path relative to the v1 hierarchy
type CGroupDriver struct {
	source stats.Source
}

// NewCGroupDriver creates a cgroup driver backed by containerd/cgroups
func NewCGroupDriver() *CGroupDriver {
	return &CGroupDriver{source: stats.NewCGroupsSource()}
}

// Type returns a driver.Type to indentify the driver implementation
func (d *CGroupDriver) Type() Type {
	return CGroup
}

// Info returns a short description of the driver
func (d *CGroupDriver) Info(ctx context.Context) (string, error) {
	return "cgroups v1 (cpuacct, memory, pids)", nil
}

// Resolve checks that the cgroup at path selector can be sampled. The probe
// poll also sets the cpu baseline for the first real sample.
func (d *CGroupDriver) Resolve(ctx context.Context, selector string) (stats.Target, error) {
	target := stats.Target{
		Kind: stats.CGroup,
		ID:   selector,
		Name: filepath.Base(selector),
	}

	if _, err := d.source.Poll(ctx, target); err != nil {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "cgroup '%s': %v", selector, err)
	}
	return target, nil
}

// Source returns the cgroups source
func (d *CGroupDriver) Source() stats.Source {
	return d.source
}

// Close is a no-op for the cgroup driver
func (d *CGroupDriver) Close() error {
	return nil
}
