package stats

import (
	"context"
	"strings"
	"time"

	"github.com/estesp/statbench/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const defaultDockerBinary = "docker"

// DockerCLISource samples containers by running `docker stats --no-stream`.
// Every poll shells out, so concurrent polls of one container share a single
// invocation.
type DockerCLISource struct {
	dockerBinary string
	flight       singleflight.Group
	exec         func(ctx context.Context, cmd string, args ...string) (string, error)
}

// NewDockerCLISource creates a container sample source driving the docker client binary
func NewDockerCLISource(binaryPath string) (*DockerCLISource, error) {
	if binaryPath == "" {
		binaryPath = defaultDockerBinary
	}

	resolvedBinPath, err := utils.ResolveBinary(binaryPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve docker binary '%s'", binaryPath)
	}

	return &DockerCLISource{
		dockerBinary: resolvedBinPath,
		exec:         utils.ExecCmd,
	}, nil
}

// Poll queries point-in-time stats of the target container
func (s *DockerCLISource) Poll(ctx context.Context, target Target) (Sample, error) {
	if target.Kind != Container {
		return Sample{}, errors.Errorf("docker CLI source cannot sample %s targets", target.Kind)
	}

	v, err, shared := s.flight.Do(target.ID, func() (interface{}, error) {
		return s.query(ctx, target.ID)
	})
	if err != nil {
		return Sample{}, err
	}
	if shared {
		log.Debugf("docker stats for %s shared with a concurrent poll", target.ID)
	}

	row := v.(map[string]string)
	fields := make(map[string]string, len(row))
	for k, val := range row {
		fields[k] = val
	}

	return Sample{
		Timestamp: time.Now(),
		TargetID:  target.ID,
		Fields:    fields,
	}, nil
}

func (s *DockerCLISource) query(ctx context.Context, id string) (map[string]string, error) {
	out, err := s.exec(ctx, s.dockerBinary, "stats", "--no-stream", id)
	if err != nil {
		if strings.Contains(out, "No such container") {
			return nil, errors.Wrapf(ErrSourceUnavailable, "container '%s'", id)
		}
		return nil, errors.Wrapf(err, "docker stats failed for '%s' (output: %s)", id, strings.TrimSpace(out))
	}

	rows, err := ParseTable(out, ColumnID, ColumnName, ColumnCPU, ColumnMem)
	if err != nil {
		return nil, errors.Wrapf(err, "docker stats output for '%s'", id)
	}

	for _, row := range rows {
		// the CLI prints ids truncated to 12 characters
		if rowID := row[ColumnID]; rowID != "" && (strings.HasPrefix(id, rowID) || strings.HasPrefix(rowID, id) || row[ColumnName] == id) {
			return row, nil
		}
	}

	return nil, errors.Wrapf(ErrParse, "no row for container '%s' in docker stats output", id)
}
