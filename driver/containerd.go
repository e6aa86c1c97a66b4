package driver

import (
	"context"
	"strconv"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/estesp/statbench/stats"
	"github.com/pkg/errors"
)

const (
	defaultContainerdPath      = "/run/containerd/containerd.sock"
	defaultContainerdNamespace = "default"
)

// ContainerdDriver resolves containerd containers to the pid of their running
// task, which is then sampled as a process.
// This uses the provided client library which abstracts using the gRPC APIs directly.
type ContainerdDriver struct {
	ctrdAddress string
	namespace   string
	client      *containerd.Client
	source      *stats.PSUtilSource
}

// NewContainerdDriver creates an instance of the containerd driver, providing a path to the containerd socket
func NewContainerdDriver(path, namespace string) (*ContainerdDriver, error) {
	if path == "" {
		path = defaultContainerdPath
	}
	if namespace == "" {
		namespace = defaultContainerdNamespace
	}
	client, err := containerd.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to containerd at '%s'", path)
	}
	return &ContainerdDriver{
		ctrdAddress: path,
		namespace:   namespace,
		client:      client,
		source:      stats.NewPSUtilSource(),
	}, nil
}

func (d *ContainerdDriver) context(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, d.namespace)
}

// Type returns a driver.Type to indentify the driver implementation
func (d *ContainerdDriver) Type() Type {
	return Containerd
}

// Info returns the daemon version
func (d *ContainerdDriver) Info(ctx context.Context) (string, error) {
	version, err := d.client.Version(d.context(ctx))
	if err != nil {
		return "", err
	}
	info := "containerd gRPC client driver (daemon: " + version.Version + "[Revision: " + version.Revision + "] )"
	return info, nil
}

// Resolve binds the container id selector to its running task
func (d *ContainerdDriver) Resolve(ctx context.Context, selector string) (stats.Target, error) {
	ctx = d.context(ctx)

	ctr, err := d.client.LoadContainer(ctx, selector)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "no container '%s' in namespace '%s'", selector, d.namespace)
		}
		return stats.Target{}, errors.Wrapf(err, "failed to load container '%s'", selector)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "container '%s' has no running task", selector)
		}
		return stats.Target{}, errors.Wrapf(err, "failed to get task of container '%s'", selector)
	}

	return stats.Target{
		Kind: stats.Process,
		ID:   strconv.FormatUint(uint64(task.Pid()), 10),
		Name: selector,
	}, nil
}

// Source returns the process source used for task pids
func (d *ContainerdDriver) Source() stats.Source {
	return d.source
}

// Close closes the containerd client connection
func (d *ContainerdDriver) Close() error {
	return d.client.Close()
}
