package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBinary(t *testing.T) {
	path, err := ResolveBinary("bash")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	_, err = ResolveBinary("no-such-binary-statbench")
	assert.Error(t, err)
}

func TestExecCmd(t *testing.T) {
	out, err := ExecCmd(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = ExecCmd(context.Background(), "bash", "-c", "echo oops >&2; exit 2")
	require.Error(t, err)
	assert.Equal(t, "oops\n", out)
}

func TestExecShellCmdDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0644))

	out, err := ExecShellCmd(context.Background(), "ls", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "marker")
}

func TestExecShellCmdCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ExecShellCmd(ctx, "sleep 10", "")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
