package driver

import (
	"context"
	"fmt"

	"github.com/estesp/statbench/stats"
)

// Type represents the known implementations of the driver interface
type Type int

const (
	// Process represents OS processes looked up by name or pid through gopsutil
	Process Type = iota
	// Docker represents containers resolved and sampled through the Docker engine API
	Docker
	// DockerCLI represents containers resolved and sampled by driving the docker binary
	DockerCLI
	// Containerd represents containerd containers, sampled through their task process
	Containerd
	// CGroup represents a Linux control group given by path
	CGroup
	// Null driver represents an empty driver
	Null
)

// Resolver turns a user supplied selector into exactly one target
type Resolver interface {
	// Resolve returns the only target matching selector, or an error wrapping
	// stats.ErrNoTarget when nothing (or more than one thing) matches
	Resolve(ctx context.Context, selector string) (stats.Target, error)
}

// Driver binds a target resolver to the sample source able to poll its targets.
// Runtime clients are owned by the driver and released by Close.
type Driver interface {
	Resolver

	// Type returns a driver type to identify the driver
	Type() Type

	// Info returns a string with information about the runtime details
	Info(ctx context.Context) (string, error)

	// Source returns the sample source for targets resolved by this driver
	Source() stats.Source

	// Close allows the driver to free any resources/close any
	// connections
	Close() error
}

// Config holds driver construction parameters
type Config struct {
	Type Type
	// Path is the binary (docker CLI) or socket (containerd) path, empty for defaults
	Path string
	// Namespace is the containerd namespace
	Namespace string
}

// New creates a driver instance of a specific type
func New(ctx context.Context, config *Config) (Driver, error) {
	switch config.Type {
	case Process:
		return NewProcessDriver(), nil
	case Docker:
		return NewDockerDriver(ctx)
	case DockerCLI:
		return NewDockerCLIDriver(ctx, config.Path)
	case Containerd:
		return NewContainerdDriver(config.Path, config.Namespace)
	case CGroup:
		return NewCGroupDriver(), nil
	case Null:
		return nil, fmt.Errorf("the null driver cannot sample targets")
	default:
		return nil, fmt.Errorf("no such driver type: %v", config.Type)
	}
}

// TypeToString converts a driver Type into its string representation
func TypeToString(dtype Type) string {
	var driverType string
	switch dtype {
	case Process:
		driverType = "process"
	case Docker:
		driverType = "docker"
	case DockerCLI:
		driverType = "docker-cli"
	case Containerd:
		driverType = "containerd"
	case CGroup:
		driverType = "cgroup"
	default:
		driverType = "(unknown)"
	}
	return driverType
}

// StringToType converts a driver stringified typename into its Type
func StringToType(dtype string) Type {
	var driverType Type
	switch dtype {
	case "process":
		driverType = Process
	case "docker":
		driverType = Docker
	case "docker-cli":
		driverType = DockerCLI
	case "containerd":
		driverType = Containerd
	case "cgroup":
		driverType = CGroup
	default:
		driverType = Null
	}
	return driverType
}
