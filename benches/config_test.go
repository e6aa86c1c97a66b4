package benches

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/estesp/statbench/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBenchmark = `
name: graph-load
reportDir: /tmp/statbench-reports
pollInterval: 250ms
warmup: 1s
targets:
  - kind: docker
    selector: neo4j
  - kind: process
    selector: "4242"
    name: loader
tests:
  - name: test_load_data
    command: ./load.sh
    dir: /opt/bench
  - name: test_list_tactics
    command: curl -s localhost:7474
`

func writeBenchmark(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadBenchmark(t *testing.T) {
	b, err := ReadBenchmark(writeBenchmark(t, sampleBenchmark))
	require.NoError(t, err)

	assert.Equal(t, "graph-load", b.Name)
	assert.Equal(t, "/tmp/statbench-reports", b.ReportDir)
	assert.Equal(t, Duration(250*time.Millisecond), b.PollInterval)
	require.Len(t, b.Targets, 2)
	assert.Equal(t, driver.Docker, b.Targets[0].DriverConfig().Type)
	assert.Equal(t, driver.Process, b.Targets[1].DriverConfig().Type)
	require.Len(t, b.Tests, 2)
	assert.Equal(t, "/opt/bench", b.Tests[0].Dir)

	opts := b.Options(b.Targets[1])
	assert.Equal(t, 250*time.Millisecond, opts.PollInterval)
	assert.Equal(t, time.Second, opts.Warmup)
	assert.Equal(t, DefaultCooldown, opts.Cooldown)
	assert.Equal(t, "loader", opts.Group)
	assert.Empty(t, b.Options(b.Targets[0]).Group)
}

func TestReadBenchmarkDefaults(t *testing.T) {
	b, err := ReadBenchmark(writeBenchmark(t, `
targets:
  - kind: cgroup
    selector: /system.slice/neo4j.service
tests:
  - name: idle
    command: sleep 1
`))
	require.NoError(t, err)
	assert.Equal(t, defaultReportDir, b.ReportDir)

	opts := b.Options(b.Targets[0])
	assert.Equal(t, time.Duration(0), opts.PollInterval)
	assert.Equal(t, DefaultWarmup, opts.Warmup)
	assert.Equal(t, DefaultCooldown, opts.Cooldown)
}

func TestReadBenchmarkZeroWarmup(t *testing.T) {
	b, err := ReadBenchmark(writeBenchmark(t, `
warmup: 0s
cooldown: 0s
targets: [{kind: process, selector: neo4j}]
tests: [{name: t, command: "true"}]
`))
	require.NoError(t, err)
	opts := b.Options(b.Targets[0])
	assert.Equal(t, time.Duration(0), opts.Warmup)
	assert.Equal(t, time.Duration(0), opts.Cooldown)
}

func TestReadBenchmarkInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"no targets":      "tests: [{name: t, command: x}]",
		"no tests":        "targets: [{kind: process, selector: x}]",
		"unknown kind":    "targets: [{kind: vm, selector: x}]\ntests: [{name: t, command: x}]",
		"no selector":     "targets: [{kind: docker}]\ntests: [{name: t, command: x}]",
		"no command":      "targets: [{kind: docker, selector: x}]\ntests: [{name: t}]",
		"no test name":    "targets: [{kind: docker, selector: x}]\ntests: [{command: x}]",
		"duplicate test":  "targets: [{kind: docker, selector: x}]\ntests: [{name: t, command: x}, {name: t, command: y}]",
		"bad duration":    "pollInterval: often\ntargets: [{kind: docker, selector: x}]\ntests: [{name: t, command: x}]",
		"negative warmup": "warmup: -1s\ntargets: [{kind: docker, selector: x}]\ntests: [{name: t, command: x}]",
		"not yaml":        "targets: [",
	} {
		_, err := ReadBenchmark(writeBenchmark(t, content))
		assert.Error(t, err, name)
	}
}

func TestReadBenchmarkMissingFile(t *testing.T) {
	_, err := ReadBenchmark(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
