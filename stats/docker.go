package stats

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	docker "github.com/docker/docker/client"
	"github.com/pkg/errors"
)

// StatsClient is the part of the Docker engine client used for sampling
type StatsClient interface {
	ContainerStats(ctx context.Context, container string, stream bool) (types.ContainerStats, error)
}

// DockerAPISource samples containers through the Docker engine API
type DockerAPISource struct {
	client StatsClient
}

// NewDockerAPISource creates a container sample source from an existing engine client
func NewDockerAPISource(client StatsClient) *DockerAPISource {
	return &DockerAPISource{client: client}
}

// Poll requests a single stats frame for the target container
func (s *DockerAPISource) Poll(ctx context.Context, target Target) (Sample, error) {
	if target.Kind != Container {
		return Sample{}, errors.Errorf("docker API source cannot sample %s targets", target.Kind)
	}

	resp, err := s.client.ContainerStats(ctx, target.ID, false)
	if err != nil {
		if docker.IsErrNotFound(err) {
			return Sample{}, errors.Wrapf(ErrSourceUnavailable, "container '%s'", target.ID)
		}
		return Sample{}, errors.Wrapf(err, "failed to get stats for container: '%s'", target.ID)
	}
	defer resp.Body.Close()

	var frame types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return Sample{}, errors.Wrapf(ErrParse, "decoding stats for container '%s': %v", target.ID, err)
	}

	name := strings.TrimPrefix(frame.Name, "/")
	if name == "" {
		name = target.Name
	}

	return Sample{
		Timestamp: time.Now(),
		TargetID:  target.ID,
		Fields: map[string]string{
			ColumnID:   target.ID,
			ColumnName: name,
			ColumnCPU:  FormatPercent(cpuPercent(&frame)),
			ColumnMem:  FormatPercent(memPercent(&frame.MemoryStats)),
			ColumnPIDs: strconv.FormatUint(frame.PidsStats.Current, 10),
		},
	}, nil
}

// cpuPercent follows the calculation done by `docker stats` on Linux
func cpuPercent(frame *types.StatsJSON) float64 {
	cpuDelta := float64(frame.CPUStats.CPUUsage.TotalUsage) - float64(frame.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(frame.CPUStats.SystemUsage) - float64(frame.PreCPUStats.SystemUsage)

	online := float64(frame.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(frame.CPUStats.CPUUsage.PercpuUsage))
	}

	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	return cpuDelta / systemDelta * online * 100
}

// memPercent excludes page cache from usage the way `docker stats` does
func memPercent(mem *types.MemoryStats) float64 {
	if mem.Limit == 0 {
		return 0
	}

	usage := mem.Usage
	// cgroup v1 reports total_inactive_file, v2 inactive_file
	if v, ok := mem.Stats["total_inactive_file"]; ok && v < usage {
		usage -= v
	} else if v, ok := mem.Stats["inactive_file"]; ok && v < usage {
		usage -= v
	}

	return float64(usage) / float64(mem.Limit) * 100
}
