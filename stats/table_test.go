package stats

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statsRowFormat = "%-15s%-12s%-10s%-22s%-10s%-18s%-17s%s\n"

func dockerStatsOutput(rows ...[]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, statsRowFormat, "CONTAINER ID", "NAME", "CPU %", "MEM USAGE / LIMIT", "MEM %", "NET I/O", "BLOCK I/O", "PIDS")
	for _, r := range rows {
		cells := make([]interface{}, len(r))
		for i := range r {
			cells[i] = r[i]
		}
		fmt.Fprintf(&b, statsRowFormat, cells...)
	}
	return b.String()
}

func TestParseTableDockerStats(t *testing.T) {
	out := dockerStatsOutput(
		[]string{"4f1a9c2b7d3e", "neo4j", "12.34%", "512.3MiB / 7.667GiB", "6.53%", "1.2kB / 0B", "0B / 4.1kB", "42"},
	)

	rows, err := ParseTable(out, ColumnID, ColumnName, ColumnCPU, ColumnMem)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "4f1a9c2b7d3e", row[ColumnID])
	assert.Equal(t, "neo4j", row[ColumnName])
	assert.Equal(t, "12.34%", row[ColumnCPU])
	assert.Equal(t, "512.3MiB / 7.667GiB", row["MEM USAGE / LIMIT"])
	assert.Equal(t, "6.53%", row[ColumnMem])
	assert.Equal(t, "1.2kB / 0B", row["NET I/O"])
	assert.Equal(t, "42", row[ColumnPIDs])
}

func TestParseTableColumnOrderIndependent(t *testing.T) {
	out := "NAME        MEM %     CONTAINER ID   CPU %\n" +
		"postgres    1.5%      abcdef012345   0.25%\n"

	rows, err := ParseTable(out, ColumnID, ColumnName, ColumnCPU, ColumnMem)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "abcdef012345", rows[0][ColumnID])
	assert.Equal(t, "postgres", rows[0][ColumnName])
	assert.Equal(t, "0.25%", rows[0][ColumnCPU])
	assert.Equal(t, "1.5%", rows[0][ColumnMem])
}

func TestParseTableShortRow(t *testing.T) {
	out := "CONTAINER ID   NAME    CPU %    MEM %    PIDS\n" +
		"abcdef012345   web     1%       2%\n"

	rows, err := ParseTable(out, ColumnID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2%", rows[0][ColumnMem])
	assert.Equal(t, "", rows[0][ColumnPIDs])
}

func TestParseTableMultipleRowsAndBlankLines(t *testing.T) {
	out := "\n" + dockerStatsOutput(
		[]string{"aaaaaaaaaaaa", "one", "1%", "1MiB / 1GiB", "0.1%", "0B / 0B", "0B / 0B", "1"},
		[]string{"bbbbbbbbbbbb", "two", "2%", "2MiB / 1GiB", "0.2%", "0B / 0B", "0B / 0B", "2"},
	) + "\n\n"

	rows, err := ParseTable(out, ColumnID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "one", rows[0][ColumnName])
	assert.Equal(t, "two", rows[1][ColumnName])
}

func TestParseTableMissingColumn(t *testing.T) {
	out := "ID     NAME    CPU\n" +
		"abc    web     1%\n"

	_, err := ParseTable(out, ColumnID, ColumnName)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), ColumnID)
}

func TestParseTableEmptyOutput(t *testing.T) {
	_, err := ParseTable("  \n\n", ColumnID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}
