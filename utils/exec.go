package utils

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ResolveBinary finds a binary name along the path and evaluates any symlinks
func ResolveBinary(binname string) (string, error) {
	binaryPath, err := exec.LookPath(binname)
	if err != nil {
		return "", err
	}
	resolvedPath, err := filepath.EvalSymlinks(binaryPath)
	if err != nil {
		return "", err
	}
	return resolvedPath, nil
}

// ExecCmd executes a command and returns the combined err/out output and any errors
func ExecCmd(ctx context.Context, cmd string, args ...string) (string, error) {
	execCmd := exec.CommandContext(ctx, cmd, args...)
	out, err := execCmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "exec failed: %s %s", cmd, strings.Join(args, " "))
	}
	return string(out), nil
}

// ExecShellCmd executes a 'bash -c' process, with the passed-in command
// handed to the -c flag of bash. A non-empty dir sets the working directory.
func ExecShellCmd(ctx context.Context, cmd, dir string) (string, error) {
	execCmd := exec.CommandContext(ctx, "bash", "-c", cmd)
	execCmd.Dir = dir
	out, err := execCmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "exec failed: %s", cmd)
	}
	return string(out), nil
}
