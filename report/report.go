package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/estesp/statbench/stats"
	"github.com/google/uuid"
	mstats "github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Status flags the quality of a report
type Status string

// Status constants
const (
	// OK means sampling covered the whole run and every sample was kept
	OK Status = "ok"
	// Degraded means sampling ended early or some samples were dropped
	Degraded Status = "degraded"
	// Empty means samples were collected but none could be normalized
	Empty Status = "empty"
)

// ErrPersist is returned when a report could not be written
var ErrPersist = errors.New("persist error")

// Normalized column names of a persisted report
const (
	ColTargetID   = "targetId"
	ColTargetName = "targetName"
	ColCPU        = "cpuPercent"
	ColMem        = "memPercent"
	ColPIDs       = "pidCount"
	ColExecTime   = "execTimeSeconds"
	ColTimestamp  = "timestamp"
)

// renameMap maps raw sample columns to report columns
var renameMap = map[string]string{
	stats.ColumnID:   ColTargetID,
	stats.ColumnName: ColTargetName,
	stats.ColumnCPU:  ColCPU,
	stats.ColumnMem:  ColMem,
	stats.ColumnPIDs: ColPIDs,
}

// Record is one normalized report row
type Record struct {
	TargetID        string
	TargetName      string
	CPUPercent      float64
	MemPercent      float64
	PIDCount        *uint64
	ExecTimeSeconds float64
	// Timestamp is when the sample was taken
	Timestamp time.Time
	IO        *stats.IOCounters
}

// Summary holds aggregate statistics over the records of a report
type Summary struct {
	Samples int
	CPUMean float64
	CPUMax  float64
	CPUP95  float64
	MemMean float64
	MemMax  float64
	MemP95  float64
}

// Report is the normalized result of one instrumented run
type Report struct {
	RunID    string
	Target   stats.Target
	TestName string
	ExecTime time.Duration
	Records  []Record
	Summary  Summary
	Status   Status
	Warnings []string
	// Path is where the report was persisted, empty if it was not
	Path string
}

// Diagnostics carries what the sampling session observed into the report
type Diagnostics struct {
	Degraded bool
	// Dropped counts polls discarded by the session because their output
	// could not be parsed; they never reach Assemble as samples
	Dropped  int
	Warnings []string
}

// Normalize turns a raw sample into a record. Non-numeric decoration such as
// a trailing '%' is stripped before values are parsed.
func Normalize(sample stats.Sample, target stats.Target, execTime time.Duration) (Record, error) {
	values := make(map[string]string, len(renameMap))
	for raw, col := range renameMap {
		if v, ok := sample.Fields[raw]; ok {
			values[col] = strings.TrimSpace(v)
		}
	}

	rec := Record{
		TargetID:        values[ColTargetID],
		TargetName:      values[ColTargetName],
		ExecTimeSeconds: execTime.Seconds(),
		Timestamp:       sample.Timestamp,
		IO:              sample.IO,
	}
	if rec.TargetID == "" {
		rec.TargetID = target.ID
	}
	if rec.TargetName == "" {
		rec.TargetName = target.Name
	}

	var err error
	if rec.CPUPercent, err = ParsePercent(values[ColCPU]); err != nil {
		return Record{}, errors.Wrapf(err, "column '%s'", ColCPU)
	}
	if rec.MemPercent, err = ParsePercent(values[ColMem]); err != nil {
		return Record{}, errors.Wrapf(err, "column '%s'", ColMem)
	}
	if v := values[ColPIDs]; v != "" {
		pids, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Record{}, errors.Wrapf(stats.ErrParse, "column '%s': %v", ColPIDs, err)
		}
		rec.PIDCount = &pids
	}

	return rec, nil
}

// ParsePercent parses a percentage with or without its '%' sign
func ParsePercent(v string) (float64, error) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
	if v == "" {
		return 0, errors.Wrap(stats.ErrParse, "empty value")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(stats.ErrParse, "invalid number '%s'", v)
	}
	return f, nil
}

func summarize(records []Record) Summary {
	sum := Summary{Samples: len(records)}
	if len(records) == 0 {
		return sum
	}

	cpu := make(mstats.Float64Data, 0, len(records))
	mem := make(mstats.Float64Data, 0, len(records))
	for _, rec := range records {
		cpu = append(cpu, rec.CPUPercent)
		mem = append(mem, rec.MemPercent)
	}

	// errors are only returned for empty input, which is excluded above
	sum.CPUMean, _ = mstats.Mean(cpu)
	sum.CPUMax, _ = mstats.Max(cpu)
	sum.CPUP95, _ = mstats.Percentile(cpu, 95)
	sum.MemMean, _ = mstats.Mean(mem)
	sum.MemMax, _ = mstats.Max(mem)
	sum.MemP95, _ = mstats.Percentile(mem, 95)
	return sum
}

// Assembler normalizes session samples into reports and persists them
// below a report directory, one CSV file per target group and test.
type Assembler struct {
	dir string
}

// NewAssembler creates an assembler writing below dir
func NewAssembler(dir string) *Assembler {
	return &Assembler{dir: dir}
}

// Assemble builds the report of one run and persists it, replacing any earlier
// report of the same target group and test. The returned report is always
// usable; the error wraps ErrPersist when writing failed and stats.ErrParse
// when polls were made but none of them yielded a usable record, whether the
// session dropped them (diag.Dropped) or normalization did.
func (a *Assembler) Assemble(samples []stats.Sample, execTime time.Duration, target stats.Target, testName string, diag Diagnostics) (*Report, error) {
	rep := &Report{
		RunID:    uuid.New().String(),
		Target:   target,
		TestName: testName,
		ExecTime: execTime,
		Records:  make([]Record, 0, len(samples)),
		Status:   OK,
		Warnings: append([]string(nil), diag.Warnings...),
	}
	if diag.Degraded {
		rep.Status = Degraded
	}

	for i, sample := range samples {
		rec, err := Normalize(sample, target, execTime)
		if err != nil {
			msg := fmt.Sprintf("dropped sample %d (%s): %v", i, sample.Timestamp.Format(time.RFC3339Nano), err)
			log.Warnf("Report %s/%s: %s", target.Name, testName, msg)
			rep.Warnings = append(rep.Warnings, msg)
			rep.Status = Degraded
			continue
		}
		rep.Records = append(rep.Records, rec)
	}
	rep.Summary = summarize(rep.Records)

	var parseErr error
	if polled := len(samples) + diag.Dropped; polled > 0 && len(rep.Records) == 0 {
		rep.Status = Empty
		parseErr = errors.Wrapf(stats.ErrParse, "all %d samples of %s/%s were dropped", polled, target.Name, testName)
	}

	path := a.Path(target.Name, testName)
	if err := Save(path, rep.Records); err != nil {
		log.WithError(err).Errorf("Could not save report %s/%s", target.Name, testName)
		if parseErr != nil {
			return rep, parseErr
		}
		return rep, errors.Wrapf(ErrPersist, "%s: %v", path, err)
	}
	rep.Path = path
	log.Infof("Saved %d records of test %q for %s to %s", len(rep.Records), testName, target.Name, path)

	return rep, parseErr
}
