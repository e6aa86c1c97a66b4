package stats

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies what a Target refers to
type Kind string

// Kind constants
const (
	// Process is an OS process identified by its pid
	Process Kind = "process"
	// Container is a container identified by its runtime id
	Container Kind = "container"
	// CGroup is a control group identified by its path
	CGroup Kind = "cgroup"
)

// Raw column names shared by every source. They follow the headers printed
// by `docker stats` so a single rename map covers all sources.
const (
	ColumnID   = "CONTAINER ID"
	ColumnName = "NAME"
	ColumnCPU  = "CPU %"
	ColumnMem  = "MEM %"
	ColumnPIDs = "PIDS"
)

const (
	// DefaultProcessInterval is the poll interval used for process targets
	DefaultProcessInterval = 100 * time.Millisecond
	// DefaultContainerInterval is the poll interval used for container and cgroup
	// targets, coarser since a poll may involve an external process or daemon round trip
	DefaultContainerInterval = time.Second
)

var (
	// ErrNoTarget is returned when a selector does not resolve to exactly one target
	ErrNoTarget = errors.New("no target")
	// ErrSourceUnavailable is returned when the sampled target no longer exists
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParse is returned when runtime stats output does not have the expected layout
	ErrParse = errors.New("parse error")
	// ErrInvalidState is returned when the session API is used out of order
	ErrInvalidState = errors.New("invalid state")
)

// Target identifies what to sample. It is resolved once per run.
type Target struct {
	Kind Kind
	// ID is a pid for processes, a container id, or a cgroup path
	ID string
	// Name is the display name, also used to group persisted reports
	Name string
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.Name + "(" + t.ID + ")"
}

// IOCounters represents process I/O counters at the time of a sample
type IOCounters struct {
	ReadCount  uint64
	WriteCount uint64
	ReadBytes  uint64
	WriteBytes uint64
	OtherCount uint64
	OtherBytes uint64
}

// Sample is a single resource usage observation. Fields holds the raw,
// undecorated column values keyed by header name (see Column* constants).
type Sample struct {
	Timestamp time.Time
	TargetID  string
	TestName  string
	Fields    map[string]string
	IO        *IOCounters
}

// Source represents a resource sample source
type Source interface {
	// Poll takes one observation of the target. Implementations return errors
	// wrapping ErrSourceUnavailable or ErrParse where applicable.
	Poll(ctx context.Context, target Target) (Sample, error)
}

// DefaultInterval returns the poll interval suited to the target kind
func DefaultInterval(kind Kind) time.Duration {
	if kind == Process {
		return DefaultProcessInterval
	}
	return DefaultContainerInterval
}
