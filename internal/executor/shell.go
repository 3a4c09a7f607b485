package executor

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// ShellRunner runs commands through a POSIX shell
type ShellRunner struct {
	Shell string
}

// NewShellRunner creates a runner for the given shell binary
func NewShellRunner(shell string) *ShellRunner {
	return &ShellRunner{Shell: shell}
}

// Run executes command with dir as working directory. A non-zero exit
// status is returned as an *exec.ExitError.
func (r *ShellRunner) Run(ctx context.Context, dir, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Shell, "-c", command)
	cmd.Dir = dir

	// Background children can keep the output pipe open after the shell
	// is killed
	cmd.WaitDelay = 5 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.Bytes(), err
}
