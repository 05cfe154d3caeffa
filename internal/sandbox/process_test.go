package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH: skipping process test")
	}
}

func TestRunHost_CapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)

	run, err := runHost(context.Background(), 5*time.Second, "sh",
		[]string{"-c", "cat; echo oops >&2; exit 3"}, "from stdin", 1024, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.exitCode != 3 {
		t.Errorf("exit code: got %d, want 3", run.exitCode)
	}
	if run.stdout.String() != "from stdin" {
		t.Errorf("stdout: got %q", run.stdout.String())
	}
	if run.stderr.String() != "oops\n" {
		t.Errorf("stderr: got %q", run.stderr.String())
	}
	if run.deadlineHit || run.cancelled {
		t.Error("did not expect deadline or cancellation")
	}
}

func TestRunHost_MergeOutput(t *testing.T) {
	requireShell(t)

	run, err := runHost(context.Background(), 5*time.Second, "sh",
		[]string{"-c", "echo a; echo b >&2; echo c"}, "", 1024, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.stdout.String() != "a\nb\nc\n" {
		t.Errorf("merged output: got %q", run.stdout.String())
	}
	if run.stderr.String() != "" {
		t.Errorf("stderr should be empty when merged, got %q", run.stderr.String())
	}
}

func TestRunHost_DeadlineKillsProcessGroup(t *testing.T) {
	requireShell(t)

	start := time.Now()
	run, err := runHost(context.Background(), 200*time.Millisecond, "sh",
		[]string{"-c", "sleep 30 & sleep 30"}, "", 1024, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.deadlineHit {
		t.Error("expected deadline to be hit")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("process group was not killed promptly: %v", elapsed)
	}
}

func TestRunHost_Cancellation(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	run, err := runHost(ctx, 10*time.Second, "sh", []string{"-c", "sleep 30"}, "", 1024, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.cancelled {
		t.Error("expected cancellation to be reported")
	}
	if run.deadlineHit {
		t.Error("cancellation must not be reported as a deadline")
	}
}

func TestRunHost_MissingBinaryIsInfrastructure(t *testing.T) {
	_, err := runHost(context.Background(), time.Second, "/nonexistent/sandbox", nil, "", 1024, false)
	if !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Fatalf("expected ErrSandboxUnavailable, got %v", err)
	}
}

func TestRunHost_SignalExitCode(t *testing.T) {
	requireShell(t)

	run, err := runHost(context.Background(), 5*time.Second, "sh", []string{"-c", "kill -9 $$"}, "", 1024, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.exitCode != 137 {
		t.Errorf("exit code: got %d, want 137", run.exitCode)
	}
}
