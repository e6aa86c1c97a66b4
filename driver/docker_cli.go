package driver

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/estesp/statbench/stats"
	"github.com/estesp/statbench/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDockerBinary = "docker"
	inspectFormat       = "{{.Id}}|{{.Name}}|{{.State.Running}}"
)

// DockerCLIDriver resolves containers with `docker inspect` and samples them
// with `docker stats`, both through the docker client binary
type DockerCLIDriver struct {
	dockerBinary string
	source       *stats.DockerCLISource
	exec         func(ctx context.Context, cmd string, args ...string) (string, error)
}

// NewDockerCLIDriver creates an instance of the docker CLI driver, providing a path to the docker client binary
func NewDockerCLIDriver(ctx context.Context, binaryPath string) (*DockerCLIDriver, error) {
	if binaryPath == "" {
		binaryPath = defaultDockerBinary
	}

	resolvedBinPath, err := utils.ResolveBinary(binaryPath)
	if err != nil {
		return nil, err
	}

	source, err := stats.NewDockerCLISource(resolvedBinPath)
	if err != nil {
		return nil, err
	}

	driver := &DockerCLIDriver{
		dockerBinary: resolvedBinPath,
		source:       source,
		exec:         utils.ExecCmd,
	}

	info, err := driver.Info(ctx)
	if err != nil {
		return nil, err
	}

	log.Debugf("running docker CLI driver: '%s'", info)
	return driver, nil
}

// Type returns a driver.Type to indentify the driver implementation
func (d *DockerCLIDriver) Type() Type {
	return DockerCLI
}

// Info returns the client and server versions reported by `docker version`
func (d *DockerCLIDriver) Info(ctx context.Context) (string, error) {
	version, err := d.exec(ctx, d.dockerBinary, "version")
	if err != nil {
		return "", errors.Wrapf(err, "could not get docker version (output: %s)", strings.TrimSpace(version))
	}
	return "docker CLI " + parseDaemonInfo(version), nil
}

// Resolve binds selector (a container name, id or unique id prefix) to one running container
func (d *DockerCLIDriver) Resolve(ctx context.Context, selector string) (stats.Target, error) {
	out, err := d.exec(ctx, d.dockerBinary, "inspect", "--type", "container", "--format", inspectFormat, selector)
	if err != nil {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "no container matches '%s': %s", selector, strings.TrimSpace(out))
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "'%s' is ambiguous", selector)
	}

	parts := strings.Split(strings.TrimSpace(lines[0]), "|")
	if len(parts) != 3 {
		return stats.Target{}, errors.Wrapf(stats.ErrParse, "unexpected docker inspect output: %q", lines[0])
	}
	if parts[2] != "true" {
		return stats.Target{}, errors.Wrapf(stats.ErrNoTarget, "container '%s' is not running", selector)
	}

	return stats.Target{
		Kind: stats.Container,
		ID:   parts[0],
		Name: strings.TrimPrefix(parts[1], "/"),
	}, nil
}

// Source returns the `docker stats` source
func (d *DockerCLIDriver) Source() stats.Source {
	return d.source
}

// Close is a no-op for the CLI driver
func (d *DockerCLIDriver) Close() error {
	return nil
}

// return a condensed string of client and server version information
func parseDaemonInfo(version string) string {
	var (
		clientVer string
		serverVer string
	)
	vScan := bufio.NewScanner(strings.NewReader(version))

	for vScan.Scan() {
		parts := strings.SplitN(vScan.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		switch strings.TrimSpace(parts[0]) {
		case "Version":
			if clientVer == "" {
				// first time is client
				clientVer = strings.TrimSpace(parts[1])
			} else if serverVer == "" {
				serverVer = strings.TrimSpace(parts[1])
			}
		case "API version":
			if serverVer == "" {
				clientVer = clientVer + "|API:" + strings.TrimSpace(parts[1])
			} else if !strings.Contains(serverVer, "|API:") {
				serverVer = serverVer + "|API:" + strings.TrimSpace(parts[1])
			}
		}
	}
	return fmt.Sprintf("[CLIENT:%s][SERVER:%s]", clientVer, serverVer)
}
