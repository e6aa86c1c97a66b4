package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/estesp/statbench/stats"
	"github.com/pkg/errors"
)

// I/O counter columns, written only when a record carries counters
const (
	ColReadCount  = "readCount"
	ColWriteCount = "writeCount"
	ColReadBytes  = "readBytes"
	ColWriteBytes = "writeBytes"
	ColOtherCount = "otherCount"
	ColOtherBytes = "otherBytes"
)

var (
	baseColumns = []string{ColTargetID, ColTargetName, ColCPU, ColMem, ColPIDs, ColExecTime, ColTimestamp}
	// reports written before the timestamp column existed still load
	requiredColumns = baseColumns[:6]
	ioColumns   = []string{ColReadCount, ColWriteCount, ColReadBytes, ColWriteBytes, ColOtherCount, ColOtherBytes}
)

// Path returns the file a report of the given target group and test is written to
func (a *Assembler) Path(group, testName string) string {
	return filepath.Join(a.dir, sanitize(group), sanitize(testName)+".csv")
}

// sanitize keeps a name usable as a single path element
func sanitize(name string) string {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Save writes records as CSV to path, replacing the file atomically
func Save(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create report directory '%s'", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close report file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "failed to replace report file")
}

// Write encodes records as CSV with a header line
func Write(w io.Writer, records []Record) error {
	withIO := false
	for _, rec := range records {
		if rec.IO != nil {
			withIO = true
			break
		}
	}

	header := baseColumns
	if withIO {
		header = append(append([]string(nil), baseColumns...), ioColumns...)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write report header")
	}

	for _, rec := range records {
		var pids string
		if rec.PIDCount != nil {
			pids = strconv.FormatUint(*rec.PIDCount, 10)
		}
		row := []string{
			rec.TargetID,
			rec.TargetName,
			formatFloat(rec.CPUPercent),
			formatFloat(rec.MemPercent),
			pids,
			formatFloat(rec.ExecTimeSeconds),
			formatTime(rec.Timestamp),
		}
		if withIO {
			row = append(row, ioCells(rec.IO)...)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write report record")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush report")
}

func ioCells(c *stats.IOCounters) []string {
	if c == nil {
		return make([]string, len(ioColumns))
	}
	cells := []uint64{c.ReadCount, c.WriteCount, c.ReadBytes, c.WriteBytes, c.OtherCount, c.OtherBytes}
	out := make([]string, len(cells))
	for i, v := range cells {
		out[i] = strconv.FormatUint(v, 10)
	}
	return out
}

// Load reads a persisted report back into records
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open report '%s'", path)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes CSV written by Write. Columns are matched by header name.
func Read(r io.Reader) ([]Record, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(stats.ErrParse, err.Error())
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(stats.ErrParse, "report has no header")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, errors.Wrapf(stats.ErrParse, "report is missing column '%s'", name)
		}
	}
	cell := func(row []string, name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := Record{
			TargetID:   cell(row, ColTargetID),
			TargetName: cell(row, ColTargetName),
		}
		if rec.CPUPercent, err = ParsePercent(cell(row, ColCPU)); err != nil {
			return nil, errors.Wrapf(err, "line %d", n+2)
		}
		if rec.MemPercent, err = ParsePercent(cell(row, ColMem)); err != nil {
			return nil, errors.Wrapf(err, "line %d", n+2)
		}
		if rec.ExecTimeSeconds, err = strconv.ParseFloat(cell(row, ColExecTime), 64); err != nil {
			return nil, errors.Wrapf(stats.ErrParse, "line %d: %v", n+2, err)
		}
		if v := cell(row, ColPIDs); v != "" {
			pids, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(stats.ErrParse, "line %d: %v", n+2, err)
			}
			rec.PIDCount = &pids
		}
		if v := cell(row, ColTimestamp); v != "" {
			if rec.Timestamp, err = time.Parse(time.RFC3339Nano, v); err != nil {
				return nil, errors.Wrapf(stats.ErrParse, "line %d: %v", n+2, err)
			}
		}
		if cell(row, ColReadCount) != "" {
			if rec.IO, err = readIO(row, cell); err != nil {
				return nil, errors.Wrapf(err, "line %d", n+2)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func readIO(row []string, cell func([]string, string) string) (*stats.IOCounters, error) {
	var vals [6]uint64
	for i, name := range ioColumns {
		v, err := strconv.ParseUint(cell(row, name), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(stats.ErrParse, "column '%s': %v", name, err)
		}
		vals[i] = v
	}
	return &stats.IOCounters{
		ReadCount:  vals[0],
		WriteCount: vals[1],
		ReadBytes:  vals[2],
		WriteBytes: vals[3],
		OtherCount: vals[4],
		OtherBytes: vals[5],
	}, nil
}
