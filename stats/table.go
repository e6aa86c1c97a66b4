package stats

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
)

type column struct {
	name  string
	start int
}

// ParseTable parses the column-aligned output printed by container runtime CLIs
// such as `docker stats`. Column names and their offsets are taken from the
// header line (columns are separated by two or more spaces, names may contain
// single spaces) and every following line is cut at those offsets. Each row is
// returned keyed by header name. All required headers must be present.
func ParseTable(out string, required ...string) ([]map[string]string, error) {
	var (
		header []column
		rows   []map[string]string
	)

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header == nil {
			header = parseHeader(line)
			continue
		}
		rows = append(rows, cutRow(line, header))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}

	if header == nil {
		return nil, errors.Wrap(ErrParse, "no header line in output")
	}

	for _, name := range required {
		if !hasColumn(header, name) {
			return nil, errors.Wrapf(ErrParse, "missing column '%s' in header", name)
		}
	}

	return rows, nil
}

func parseHeader(line string) []column {
	// tabs are expanded by the runtime's tabwriter, but tolerate raw ones
	line = strings.ReplaceAll(line, "\t", "  ")

	var (
		cols  []column
		start = -1
		gap   = 0
	)
	for i, r := range line {
		if r == ' ' {
			gap++
			continue
		}
		if start == -1 {
			start = i
		} else if gap >= 2 {
			cols = append(cols, column{name: strings.TrimSpace(line[start:i]), start: start})
			start = i
		}
		gap = 0
	}
	if start != -1 {
		cols = append(cols, column{name: strings.TrimSpace(line[start:]), start: start})
	}
	return cols
}

func cutRow(line string, header []column) map[string]string {
	line = strings.ReplaceAll(line, "\t", "  ")

	row := make(map[string]string, len(header))
	for i, col := range header {
		if col.start >= len(line) {
			row[col.name] = ""
			continue
		}
		end := len(line)
		if i+1 < len(header) && header[i+1].start < end {
			end = header[i+1].start
		}
		row[col.name] = strings.TrimSpace(line[col.start:end])
	}
	return row
}

func hasColumn(header []column, name string) bool {
	for _, col := range header {
		if col.name == name {
			return true
		}
	}
	return false
}
