package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	docker "github.com/docker/docker/client"
	"github.com/estesp/statbench/stats"
	"github.com/pkg/errors"
)

// dockerAPI is the part of the engine client used by the driver
type dockerAPI interface {
	stats.StatsClient
	ContainerInspect(ctx context.Context, container string) (types.ContainerJSON, error)
	Info(ctx context.Context) (types.Info, error)
	Close() error
}

// DockerDriver resolves and samples containers using the Docker engine API
type DockerDriver struct {
	client dockerAPI
	source *stats.DockerAPISource
}

// NewDockerDriver creates an instance of Docker API driver.
func NewDockerDriver(ctx context.Context) (*DockerDriver, error) {
	client, err := docker.NewClientWithOpts(docker.FromEnv)
	if err != nil {
		return nil, err
	}

	// Make sure daemon is reachable
	ping, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "daemon is unreachable")
	}

	client.NegotiateAPIVersionPing(ping)

	return newDockerDriver(client), nil
}

func newDockerDriver(client dockerAPI) *DockerDriver {
	return &DockerDriver{
		client: client,
		source: stats.NewDockerAPISource(client),
	}
}

// Type returns a driver.Type to indentify the driver implementation
func (d *DockerDriver) Type() Type {
	return Docker
}

// Info returns a short description about the docker server
func (d *DockerDriver) Info(ctx context.Context) (string, error) {
	info, err := d.client.Info(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to query Docker info")
	}

	return fmt.Sprintf("Docker API (name: '%s', driver: '%s', version: '%s')", info.Name, info.Driver, info.ServerVersion), nil
}

// Resolve binds selector (a container name, id or unique id prefix) to one running container
func (d *DockerDriver) Resolve(ctx context.Context, selector string) (stats.Target, error) {
	info, err := d.client.ContainerInspect(ctx, selector)
	if err != nil {
		if docker.IsErrNotFound(err) {
			return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "no container matches '%s'", selector)
		}
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "failed to inspect container '%s': %v", selector, err)
	}

	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "container '%s' is not running", selector)
	}

	return stats.Target{
		Kind: stats.Container,
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}, nil
}

// Source returns the engine API stats source
func (d *DockerDriver) Source() stats.Source {
	return d.source
}

// Close closes the transport used by Docker client
func (d *DockerDriver) Close() error {
	return d.client.Close()
}
