package util

import (
	"os/exec"

	"github.com/pkg/errors"
)

// ExitCode extracts the subprocess exit code from an error returned by a
// command invocation, unwrapping as needed. Returns 0 for nil and -1 when
// the error does not carry an exit code (e.g. the binary was not found).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
