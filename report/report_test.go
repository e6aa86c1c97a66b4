package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/estesp/statbench/stats"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var neo4j = stats.Target{Kind: stats.Container, ID: "4f1a9c2b7d3e", Name: "neo4j"}

func containerSample(cpu, mem, pids string) stats.Sample {
	return stats.Sample{
		Timestamp: time.Now(),
		TargetID:  neo4j.ID,
		TestName:  "test_load_data",
		Fields: map[string]string{
			stats.ColumnID:      neo4j.ID,
			stats.ColumnName:    "neo4j",
			stats.ColumnCPU:     cpu,
			stats.ColumnMem:     mem,
			stats.ColumnPIDs:    pids,
			"MEM USAGE / LIMIT": "512.3MiB / 7.667GiB",
		},
	}
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(containerSample("12.34%", " 6.53 % ", "42"), neo4j, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, neo4j.ID, rec.TargetID)
	assert.Equal(t, "neo4j", rec.TargetName)
	assert.Equal(t, 12.34, rec.CPUPercent)
	assert.Equal(t, 6.53, rec.MemPercent)
	require.NotNil(t, rec.PIDCount)
	assert.Equal(t, uint64(42), *rec.PIDCount)
	assert.Equal(t, 1.5, rec.ExecTimeSeconds)
}

func TestNormalizeFallsBackToTarget(t *testing.T) {
	sample := stats.Sample{Fields: map[string]string{stats.ColumnCPU: "1", stats.ColumnMem: "2%"}}

	rec, err := Normalize(sample, neo4j, time.Second)
	require.NoError(t, err)
	assert.Equal(t, neo4j.ID, rec.TargetID)
	assert.Equal(t, neo4j.Name, rec.TargetName)
	assert.Nil(t, rec.PIDCount)
	assert.Equal(t, 1.0, rec.CPUPercent)
}

func TestNormalizeInvalid(t *testing.T) {
	for name, sample := range map[string]stats.Sample{
		"stopped container": containerSample("--", "--", "0"),
		"bad pids":          containerSample("1%", "1%", "many"),
		"missing mem":       {Fields: map[string]string{stats.ColumnCPU: "1%"}},
	} {
		_, err := Normalize(sample, neo4j, time.Second)
		assert.True(t, errors.Is(err, stats.ErrParse), name)
	}
}

func TestAssembleBroadcastsExecTime(t *testing.T) {
	var samples []stats.Sample
	for _, cpu := range []string{"1%", "2.5%", "3%", "40%", "0.01%"} {
		samples = append(samples, containerSample(cpu, "5%", "3"))
	}

	rep, err := NewAssembler(t.TempDir()).Assemble(samples, 2750*time.Millisecond, neo4j, "test_load_data", Diagnostics{})
	require.NoError(t, err)

	assert.Equal(t, OK, rep.Status)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Records, len(samples))
	for _, rec := range rep.Records {
		assert.Equal(t, 2.75, rec.ExecTimeSeconds)
	}
	assert.Equal(t, len(samples), rep.Summary.Samples)
	assert.Equal(t, 40.0, rep.Summary.CPUMax)
	assert.InDelta(t, 9.302, rep.Summary.CPUMean, 1e-9)
	assert.Equal(t, 5.0, rep.Summary.MemMean)
}

func TestAssembleDropsUnparseableRecords(t *testing.T) {
	samples := []stats.Sample{
		containerSample("1%", "1%", "1"),
		containerSample("--", "--", "0"),
		containerSample("2%", "2%", "1"),
	}

	rep, err := NewAssembler(t.TempDir()).Assemble(samples, time.Second, neo4j, "t", Diagnostics{})
	require.NoError(t, err)

	assert.Len(t, rep.Records, 2)
	assert.Equal(t, Degraded, rep.Status)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "dropped sample 1")
}

func TestAssembleAllDropped(t *testing.T) {
	dir := t.TempDir()
	samples := []stats.Sample{containerSample("--", "--", "0"), containerSample("n/a", "n/a", "")}

	rep, err := NewAssembler(dir).Assemble(samples, time.Second, neo4j, "t", Diagnostics{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stats.ErrParse))
	require.NotNil(t, rep)
	assert.Equal(t, Empty, rep.Status)
	assert.Empty(t, rep.Records)
}

func TestAssembleAllDroppedBySession(t *testing.T) {
	diag := Diagnostics{Degraded: true, Dropped: 3, Warnings: []string{"dropped sample: parse error"}}

	rep, err := NewAssembler(t.TempDir()).Assemble(nil, time.Second, neo4j, "t", diag)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stats.ErrParse))
	require.NotNil(t, rep)
	assert.Equal(t, Empty, rep.Status)
	assert.Empty(t, rep.Records)
	assert.NotEmpty(t, rep.Path)
}

func TestAssembleNoSamples(t *testing.T) {
	rep, err := NewAssembler(t.TempDir()).Assemble(nil, time.Second, neo4j, "t", Diagnostics{Degraded: true, Warnings: []string{"gone"}})
	require.NoError(t, err)
	assert.Equal(t, Degraded, rep.Status)
	assert.Equal(t, []string{"gone"}, rep.Warnings)
	assert.Empty(t, rep.Records)
}

func TestAssemblePersistError(t *testing.T) {
	dir := t.TempDir()
	// a regular file where the report directory should be
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	samples := []stats.Sample{containerSample("1%", "1%", "1")}
	rep, err := NewAssembler(blocker).Assemble(samples, time.Second, neo4j, "t", Diagnostics{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersist))
	require.NotNil(t, rep)
	assert.Len(t, rep.Records, 1)
	assert.Empty(t, rep.Path)
}

func TestAssembleRoundTrip(t *testing.T) {
	values := []float64{0, 0.1, 1.0 / 3, 12.34, 99.99999999, 1e-7, 250.5}

	start := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.Local)

	var samples []stats.Sample
	for i, v := range values {
		sample := containerSample(stats.FormatPercent(v), stats.FormatPercent(values[len(values)-1-i]), "")
		sample.Timestamp = start.Add(time.Duration(i) * 100 * time.Millisecond)
		sample.IO = &stats.IOCounters{ReadCount: uint64(i), WriteBytes: 4096}
		samples = append(samples, sample)
	}

	execTime := 1234567 * time.Microsecond
	rep, err := NewAssembler(t.TempDir()).Assemble(samples, execTime, neo4j, "test_round_trip", Diagnostics{})
	require.NoError(t, err)
	require.NotEmpty(t, rep.Path)

	loaded, err := Load(rep.Path)
	require.NoError(t, err)
	require.Len(t, loaded, len(values))

	for i, rec := range loaded {
		assert.Equal(t, values[i], rec.CPUPercent)
		assert.Equal(t, values[len(values)-1-i], rec.MemPercent)
		assert.Equal(t, execTime.Seconds(), rec.ExecTimeSeconds)
		assert.Nil(t, rec.PIDCount)
		assert.True(t, rec.Timestamp.Equal(samples[i].Timestamp), "line %d timestamp %v", i, rec.Timestamp)
		require.NotNil(t, rec.IO)
		assert.Equal(t, uint64(i), rec.IO.ReadCount)
		assert.Equal(t, uint64(4096), rec.IO.WriteBytes)
	}
}

func TestAssembleOverwrites(t *testing.T) {
	asm := NewAssembler(t.TempDir())
	many := []stats.Sample{containerSample("1%", "1%", "1"), containerSample("2%", "2%", "1"), containerSample("3%", "3%", "1")}
	few := []stats.Sample{containerSample("9%", "9%", "2")}

	first, err := asm.Assemble(many, time.Second, neo4j, "t", Diagnostics{})
	require.NoError(t, err)
	second, err := asm.Assemble(few, 2*time.Second, neo4j, "t", Diagnostics{})
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path)
	assert.NotEqual(t, first.RunID, second.RunID)

	loaded, err := Load(second.Path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 9.0, loaded[0].CPUPercent)
	require.NotNil(t, loaded[0].PIDCount)
	assert.Equal(t, uint64(2), *loaded[0].PIDCount)
	assert.Equal(t, 2.0, loaded[0].ExecTimeSeconds)

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(second.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPath(t *testing.T) {
	asm := NewAssembler("report")
	assert.Equal(t, filepath.Join("report", "neo4j", "test_load_data.csv"), asm.Path("neo4j", "test_load_data"))
	assert.Equal(t, filepath.Join("report", "my_db", "a_b.csv"), asm.Path("/my db", "a/b"))
	assert.Equal(t, filepath.Join("report", "_", "t.csv"), asm.Path("", "t"))
}

func TestParsePercent(t *testing.T) {
	v, err := ParsePercent("12.5%")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = ParsePercent("7")
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = ParsePercent("%")
	assert.True(t, errors.Is(err, stats.ErrParse))
}

func TestReadWithoutTimestampColumn(t *testing.T) {
	in := "targetId,targetName,cpuPercent,memPercent,pidCount,execTimeSeconds\n" +
		"4f1a,neo4j,1.5,2.5,4,3.25\n"

	records, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.IsZero())
	assert.Equal(t, 3.25, records[0].ExecTimeSeconds)
}

func TestWriteTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	var buf strings.Builder
	require.NoError(t, Write(&buf, []Record{{TargetID: "a", TargetName: "b", Timestamp: ts}, {TargetID: "a", TargetName: "b"}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], ",timestamp"))
	assert.True(t, strings.HasSuffix(lines[1], ",2024-03-01T12:00:00.0000005Z"))
	assert.True(t, strings.HasSuffix(lines[2], ","), "zero timestamp is an empty cell")
}
