package benches

import (
	"fmt"
	"os"
	"time"

	"github.com/estesp/statbench/driver"
	"gopkg.in/yaml.v3"
)

const defaultReportDir = "report"

// Duration is a time.Duration read from strings such as "100ms" or "5s"
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %v", s, value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// TargetConfig selects one target to sample
type TargetConfig struct {
	// Kind is the driver type name: process, docker, docker-cli, containerd or cgroup
	Kind string `yaml:"kind"`
	// Selector is a process name or pid, a container name or id, or a cgroup path
	Selector string `yaml:"selector"`
	// Name overrides the report group, defaults to the resolved target name
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	// Path is the docker binary or containerd socket
	Path string `yaml:"path"`
}

// TestConfig is one benchmarked operation
type TestConfig struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Dir     string `yaml:"dir"`
}

// Benchmark is the YAML benchmark definition
type Benchmark struct {
	Name         string         `yaml:"name"`
	ReportDir    string         `yaml:"reportDir"`
	PollInterval Duration       `yaml:"pollInterval"`
	Warmup       *Duration      `yaml:"warmup"`
	Cooldown     *Duration      `yaml:"cooldown"`
	Targets      []TargetConfig `yaml:"targets"`
	Tests        []TestConfig   `yaml:"tests"`
}

// DriverConfig returns the driver configuration of a target
func (t TargetConfig) DriverConfig() *driver.Config {
	return &driver.Config{
		Type:      driver.StringToType(t.Kind),
		Path:      t.Path,
		Namespace: t.Namespace,
	}
}

// Options returns the run options for target t
func (b *Benchmark) Options(t TargetConfig) Options {
	opts := DefaultOptions()
	opts.PollInterval = time.Duration(b.PollInterval)
	if b.Warmup != nil {
		opts.Warmup = time.Duration(*b.Warmup)
	}
	if b.Cooldown != nil {
		opts.Cooldown = time.Duration(*b.Cooldown)
	}
	opts.Group = t.Name
	return opts
}

// Validate checks the benchmark definition and fills in defaults
func (b *Benchmark) Validate() error {
	if b.ReportDir == "" {
		b.ReportDir = defaultReportDir
	}
	if len(b.Targets) == 0 {
		return fmt.Errorf("no targets defined in the benchmark YAML")
	}
	if len(b.Tests) == 0 {
		return fmt.Errorf("no tests defined in the benchmark YAML")
	}
	if b.PollInterval < 0 {
		return fmt.Errorf("pollInterval must not be negative")
	}
	if b.Warmup != nil && *b.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative")
	}
	if b.Cooldown != nil && *b.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}

	for i, t := range b.Targets {
		if driver.StringToType(t.Kind) == driver.Null {
			return fmt.Errorf("target %d: unknown kind %q", i, t.Kind)
		}
		if t.Selector == "" {
			return fmt.Errorf("target %d: no selector", i)
		}
	}

	seen := make(map[string]bool, len(b.Tests))
	for i, t := range b.Tests {
		if t.Name == "" {
			return fmt.Errorf("test %d: no name", i)
		}
		if t.Command == "" {
			return fmt.Errorf("test %q: no command", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate test name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// ReadBenchmark reads and validates a benchmark YAML file
func ReadBenchmark(filename string) (Benchmark, error) {
	var benchmark Benchmark
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return benchmark, fmt.Errorf("can't read YAML file %q: %v", filename, err)
	}
	if err := yaml.Unmarshal(yamlFile, &benchmark); err != nil {
		return benchmark, fmt.Errorf("can't unmarshal YAML file %q: %v", filename, err)
	}
	if err := benchmark.Validate(); err != nil {
		return benchmark, fmt.Errorf("invalid benchmark %q: %v", filename, err)
	}
	return benchmark, nil
}
