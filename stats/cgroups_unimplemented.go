//go:build windows
// +build windows

package stats

import (
	"context"

	"github.com/pkg/errors"
)

// CGroupsSource is a stub on Windows
type CGroupsSource struct{}

// NewCGroupsSource creates a cgroup sample source
func NewCGroupsSource() *CGroupsSource {
	return &CGroupsSource{}
}

// Poll always fails on Windows
func (s *CGroupsSource) Poll(ctx context.Context, target Target) (Sample, error) {
	return Sample{}, errors.New("unimplemented")
}
