package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// waitDelay bounds how long Wait blocks on pipes held open by stragglers
// after the process group has been killed.
const waitDelay = 2 * time.Second

// hostRun is what a finished host process left behind.
type hostRun struct {
	exitCode    int
	stdout      *limitedBuffer
	stderr      *limitedBuffer
	elapsed     time.Duration
	deadlineHit bool
	cancelled   bool
}

// runHost starts name with args in its own process group and waits for it
// or the deadline. On deadline or cancellation the whole group is killed.
// A process that cannot be started is reported as ErrSandboxUnavailable.
func runHost(ctx context.Context, deadline time.Duration, name string, args []string, stdin string, maxOutput int, merge bool) (*hostRun, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, name, args...)

	// Set up process group for clean termination
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		killGroup(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay
	cmd.Stdin = strings.NewReader(stdin)

	res := &hostRun{
		stdout: newLimitedBuffer(maxOutput),
		stderr: newLimitedBuffer(maxOutput),
	}
	cmd.Stdout = res.stdout
	if merge {
		cmd.Stderr = res.stdout
	} else {
		cmd.Stderr = res.stderr
	}

	startTime := time.Now()
	err := cmd.Run()
	res.elapsed = time.Since(startTime)

	res.cancelled = ctx.Err() != nil
	res.deadlineHit = !res.cancelled && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded)
	if res.cancelled || res.deadlineHit {
		// Reap anything that escaped the first kill.
		killGroup(cmd)
	}

	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitCodeOf(exitErr)
		return res, nil
	}
	if res.cancelled || res.deadlineHit {
		res.exitCode = -1
		return res, nil
	}
	return nil, fmt.Errorf("%w: start %s: %v", domain.ErrSandboxUnavailable, name, err)
}

// exitCodeOf maps signal deaths to the shell convention 128+signal.
func exitCodeOf(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
