package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// fakeDocker behaves like the docker CLI for the subcommands the runner
// uses. FAKE_DOCKER_MODE selects what `docker run` does; every invocation
// is appended to FAKE_DOCKER_LOG.
const fakeDocker = `#!/bin/sh
echo "$@" >> "$FAKE_DOCKER_LOG"
case "$1" in
  rm) exit 0 ;;
  image)
    if [ "$FAKE_DOCKER_MODE" = "noimage" ]; then
      echo "Error: No such image" >&2
      exit 1
    fi
    echo sha256:abc
    exit 0 ;;
esac
case "$FAKE_DOCKER_MODE" in
  echo) cat ;;
  stderr) echo "compiler says no" >&2; exit 1 ;;
  sleep) sleep 30 ;;
  fail) echo "docker: Error response from daemon: boom" >&2; exit 125 ;;
  exit125) exit 125 ;;
  flood) head -c 70000 /dev/zero | tr '\0' a ;;
  oom) exit 137 ;;
  crash) exit 139 ;;
esac
`

func newFakeDocker(t *testing.T, mode string) (*DockerRunner, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH: skipping docker runner test")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "docker")
	if err := os.WriteFile(bin, []byte(fakeDocker), 0o755); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(dir, "calls.log")
	t.Setenv("FAKE_DOCKER_MODE", mode)
	t.Setenv("FAKE_DOCKER_LOG", logFile)

	r := NewDockerRunner(DockerOptions{DockerPath: bin, User: "1000:1000"}, zap.NewNop())
	return r, logFile
}

func testSpec(timeout time.Duration) *RunSpec {
	return &RunSpec{
		ID:            "abc",
		Toolchain:     Toolchain{Image: "judge-toolchain:latest", Profile: "python"},
		Command:       domain.Command{Args: []string{"python3", "/workspace/main.py"}},
		HostDir:       "/tmp/ws-abc",
		SandboxDir:    "/workspace",
		Stdin:         "5\n",
		Timeout:       timeout,
		MemoryLimitMB: 256,
	}
}

func readCalls(t *testing.T, logFile string) string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read call log: %v", err)
	}
	return string(data)
}

func TestDockerRunner_PassesStdinThrough(t *testing.T) {
	r, _ := newFakeDocker(t, "echo")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.Stdout != "5\n" {
		t.Errorf("got exit=%d stdout=%q", res.ExitCode, res.Stdout)
	}
	if res.TimedOut || res.OOMKilled {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestDockerRunner_ProgramFailureIsNotAnError(t *testing.T) {
	r, _ := newFakeDocker(t, "stderr")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "compiler says no") {
		t.Errorf("got exit=%d stderr=%q", res.ExitCode, res.Stderr)
	}
}

func TestDockerRunner_MergeOutput(t *testing.T) {
	r, _ := newFakeDocker(t, "stderr")
	spec := testSpec(5 * time.Second)
	spec.MergeOutput = true

	res, err := r.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Stdout, "compiler says no") || res.Stderr != "" {
		t.Errorf("got stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestDockerRunner_TimeoutRemovesContainer(t *testing.T) {
	r, logFile := newFakeDocker(t, "sleep")

	start := time.Now()
	res, err := r.Run(context.Background(), testSpec(200*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut || res.ExitCode != -1 {
		t.Errorf("expected timeout, got %+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("run was not cut off at the deadline")
	}
	if !strings.Contains(readCalls(t, logFile), "rm -f judge-abc") {
		t.Error("expected container to be force-removed")
	}
}

func TestDockerRunner_CancellationRemovesContainer(t *testing.T) {
	r, logFile := newFakeDocker(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, testSpec(10*time.Second))
	if !errors.Is(err, domain.ErrJudgingCancelled) {
		t.Fatalf("expected ErrJudgingCancelled, got %v", err)
	}
	if !strings.Contains(readCalls(t, logFile), "rm -f judge-abc") {
		t.Error("expected container to be force-removed")
	}
}

func TestDockerRunner_DaemonFailureIsInfrastructure(t *testing.T) {
	r, _ := newFakeDocker(t, "fail")

	_, err := r.Run(context.Background(), testSpec(5*time.Second))
	if !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Fatalf("expected ErrSandboxUnavailable, got %v", err)
	}
}

func TestDockerRunner_ProgramExit125IsNotInfrastructure(t *testing.T) {
	r, _ := newFakeDocker(t, "exit125")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("exit 125 without a docker diagnostic must be a program result, got %v", err)
	}
	if res.ExitCode != 125 || res.TimedOut || res.OOMKilled {
		t.Errorf("got %+v", res)
	}
}

func TestDockerRunner_OutputCap(t *testing.T) {
	r, _ := newFakeDocker(t, "flood")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated || res.OutputLimit != DefaultMaxOutputBytes {
		t.Errorf("expected truncation at %d bytes, got truncated=%v limit=%d", DefaultMaxOutputBytes, res.Truncated, res.OutputLimit)
	}
	if !strings.HasSuffix(res.Stdout, outputTruncatedMsg) {
		t.Errorf("missing truncation marker")
	}
}

func TestDockerRunner_OOMKill(t *testing.T) {
	r, _ := newFakeDocker(t, "oom")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OOMKilled {
		t.Errorf("expected OOMKilled, got %+v", res)
	}
}

func TestDockerRunner_Crash(t *testing.T) {
	r, _ := newFakeDocker(t, "crash")

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 139 || res.OOMKilled || res.TimedOut {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDockerRunner_Probe(t *testing.T) {
	r, _ := newFakeDocker(t, "echo")
	if err := r.Probe(context.Background(), Toolchain{Image: "judge-toolchain:latest"}); err != nil {
		t.Errorf("expected image to be available: %v", err)
	}
	if err := r.Probe(context.Background(), Toolchain{}); !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Errorf("expected ErrSandboxUnavailable for empty image, got %v", err)
	}

	r, _ = newFakeDocker(t, "noimage")
	if err := r.Probe(context.Background(), Toolchain{Image: "missing:latest"}); !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Errorf("expected ErrSandboxUnavailable, got %v", err)
	}
}

func TestDockerRunner_BuildArgs(t *testing.T) {
	r := NewDockerRunner(DockerOptions{CPUs: 0.5, PidsLimit: 32, User: "1000:1000"}, zap.NewNop())
	spec := testSpec(time.Second)
	spec.Command.Env = []string{"HOME=/tmp"}

	args := strings.Join(r.buildArgs(spec, "judge-abc"), " ")

	for _, want := range []string{
		"run --rm -i --name judge-abc",
		"--network=none",
		"--memory=256m",
		"--memory-swap=256m",
		"--cpus=0.5",
		"--pids-limit=32",
		"--cap-drop=ALL",
		"--user 1000:1000",
		"-v /tmp/ws-abc:/workspace -w /workspace",
		"-e HOME=/tmp",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "judge-toolchain:latest python3 /workspace/main.py") {
		t.Errorf("image and command must come last: %s", args)
	}
}

func TestIsDockerFailure(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		stderr   string
		want     bool
	}{
		{"daemon error", 125, "docker: Error response from daemon: conflict", true},
		{"program exit 125", 125, "", false},
		{"program exit 125 with stderr", 125, "segfault in user code", false},
		{"program exit 126", 126, "permission denied", false},
		{"runtime exec failure", 126, "OCI runtime exec failed", true},
		{"program exit 127", 127, "sh: foo: not found", false},
		{"daemon 127", 127, "Error response from daemon: x", true},
		{"program exit 1", 1, "Error response from daemon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDockerFailure(tt.exitCode, tt.stderr); got != tt.want {
				t.Errorf("isDockerFailure(%d, %q) = %v, want %v", tt.exitCode, tt.stderr, got, tt.want)
			}
		})
	}
}
