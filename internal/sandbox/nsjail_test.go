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

func TestNsjailRunner_BuildArgs(t *testing.T) {
	r := NewNsjailRunner(NsjailOptions{ConfigDir: "/etc/nsjail", CPUs: 1, PidsLimit: 16}, zap.NewNop())
	spec := testSpec(2 * time.Second)
	spec.Command.Env = []string{"HOME=/tmp"}

	args := r.buildArgs(spec, r.configPath(spec.Toolchain), "")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--config /etc/nsjail/python.cfg",
		"--bindmount /tmp/ws-abc:/workspace",
		"--cwd /workspace",
		"--time_limit 3",
		"--cgroup_mem_max 268435456",
		"--cgroup_cpu_ms_per_sec 1000",
		"--cgroup_pids_max 16",
		"--env HOME=/tmp",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if !strings.HasSuffix(joined, "-- python3 /workspace/main.py") {
		t.Errorf("command must follow --: %s", joined)
	}
	if strings.Contains(joined, "cgroupv2") {
		t.Errorf("no cgroup mount expected without a run cgroup: %s", joined)
	}

	joined = strings.Join(r.buildArgs(spec, r.configPath(spec.Toolchain), "/sys/fs/cgroup/judge/run-abc"), " ")
	if !strings.Contains(joined, "--use_cgroupv2 --cgroupv2_mount /sys/fs/cgroup/judge/run-abc") {
		t.Errorf("run cgroup not passed to nsjail: %s", joined)
	}
}

func TestNsjailRunner_Probe(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "nsjail")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cpp.cfg"), []byte("name: \"cpp\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewNsjailRunner(NsjailOptions{NsjailPath: bin, ConfigDir: dir}, zap.NewNop())
	if err := r.Probe(context.Background(), Toolchain{Profile: "cpp"}); err != nil {
		t.Errorf("expected cpp to be available: %v", err)
	}
	if err := r.Probe(context.Background(), Toolchain{Profile: "csharp"}); !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Errorf("expected ErrSandboxUnavailable for missing config, got %v", err)
	}

	r = NewNsjailRunner(NsjailOptions{NsjailPath: filepath.Join(dir, "missing"), ConfigDir: dir}, zap.NewNop())
	if err := r.Probe(context.Background(), Toolchain{Profile: "cpp"}); !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Errorf("expected ErrSandboxUnavailable for missing binary, got %v", err)
	}
}

func TestIsNsjailFailure(t *testing.T) {
	tests := []struct {
		log  string
		want bool
	}{
		{"", false},
		{"[I] Mode: STANDALONE_ONCE", false},
		{"[F] Couldn't initialize cgroup", true},
		{"[E] execve('/workspace/main') failed: No such file", true},
		{"[E] pid=12 exited with status: 1", false},
	}
	for _, tt := range tests {
		if got := isNsjailFailure(tt.log); got != tt.want {
			t.Errorf("isNsjailFailure(%q) = %v, want %v", tt.log, got, tt.want)
		}
	}
}

// fakeNsjail stands in for nsjail. FAKE_NSJAIL_MODE selects the behaviour;
// arguments are appended to FAKE_NSJAIL_LOG.
const fakeNsjail = `#!/bin/sh
echo "$@" >> "$FAKE_NSJAIL_LOG"
echo "[I] Mode: STANDALONE_ONCE" >&2
case "$FAKE_NSJAIL_MODE" in
  echo) cat ;;
  slow) sleep 0.5; cat ;;
  sleep) sleep 30 ;;
  tlelog) echo "[W] pid=7 run time >= time limit (2 >= 2) (1 >= 1). Killing it" >&2; exit 137 ;;
  oomlog) echo "[I] pid=7 terminated by the memory cgroup OOM killer" >&2; exit 9 ;;
  merge) echo "partial"; echo "main.c:1: error: expected ';'" >&2; echo "[I] pid=7 exited with status: 1" >&2; exit 1 ;;
  fatal) echo "[F] Couldn't launch the child process" >&2; exit 255 ;;
  cgroup)
    while [ $# -gt 0 ]; do
      if [ "$1" = "--cgroupv2_mount" ]; then echo 2097152 > "$2/memory.peak"; fi
      shift
    done
    cat ;;
esac
`

func newFakeNsjail(t *testing.T, mode string, opts NsjailOptions) (*NsjailRunner, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH: skipping nsjail runner test")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "nsjail")
	if err := os.WriteFile(bin, []byte(fakeNsjail), 0o755); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(dir, "calls.log")
	t.Setenv("FAKE_NSJAIL_MODE", mode)
	t.Setenv("FAKE_NSJAIL_LOG", logFile)

	opts.NsjailPath = bin
	opts.ConfigDir = dir
	return NewNsjailRunner(opts, zap.NewNop()), logFile
}

func TestNsjailRunner_StripsOwnLogs(t *testing.T) {
	r, _ := newFakeNsjail(t, "echo", NsjailOptions{})

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.Stdout != "5\n" || res.Stderr != "" {
		t.Errorf("got exit=%d stdout=%q stderr=%q", res.ExitCode, res.Stdout, res.Stderr)
	}
	if res.TimedOut || res.OOMKilled || res.MemoryUsedKB != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestNsjailRunner_LimitEnforcedBelowWholeSecond(t *testing.T) {
	r, logFile := newFakeNsjail(t, "slow", NsjailOptions{})

	res, err := r.Run(context.Background(), testSpec(200*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut || res.ExitCode != -1 {
		t.Errorf("expected time limit to be exceeded, got %+v", res)
	}
	if !strings.Contains(readCalls(t, logFile), "--time_limit 2") {
		t.Errorf("hard limit should stay at whole seconds: %s", readCalls(t, logFile))
	}
}

func TestNsjailRunner_TimeLimitFromLog(t *testing.T) {
	r, _ := newFakeNsjail(t, "tlelog", NsjailOptions{})

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut || res.OOMKilled || res.ExitCode != -1 {
		t.Errorf("expected TimedOut only, got %+v", res)
	}
}

func TestNsjailRunner_OOMFromLog(t *testing.T) {
	r, _ := newFakeNsjail(t, "oomlog", NsjailOptions{})

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OOMKilled || res.TimedOut {
		t.Errorf("expected OOMKilled, got %+v", res)
	}
}

func TestNsjailRunner_MergeOutputWithoutLogs(t *testing.T) {
	r, _ := newFakeNsjail(t, "merge", NsjailOptions{})
	spec := testSpec(5 * time.Second)
	spec.MergeOutput = true

	res, err := r.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 || res.Stderr != "" {
		t.Errorf("got exit=%d stderr=%q", res.ExitCode, res.Stderr)
	}
	if !strings.Contains(res.Stdout, "partial") || !strings.Contains(res.Stdout, "expected ';'") {
		t.Errorf("merged output incomplete: %q", res.Stdout)
	}
	if strings.Contains(res.Stdout, "[I]") {
		t.Errorf("nsjail log leaked into output: %q", res.Stdout)
	}
}

func TestNsjailRunner_FatalIsInfrastructure(t *testing.T) {
	r, _ := newFakeNsjail(t, "fatal", NsjailOptions{})

	_, err := r.Run(context.Background(), testSpec(5*time.Second))
	if !errors.Is(err, domain.ErrSandboxUnavailable) {
		t.Fatalf("expected ErrSandboxUnavailable, got %v", err)
	}
}

func TestNsjailRunner_Cancellation(t *testing.T) {
	r, _ := newFakeNsjail(t, "sleep", NsjailOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.Run(ctx, testSpec(10*time.Second))
	if !errors.Is(err, domain.ErrJudgingCancelled) {
		t.Fatalf("expected ErrJudgingCancelled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation took %s", time.Since(start))
	}
}

func TestNsjailRunner_MemoryFromRunCgroup(t *testing.T) {
	root := t.TempDir()
	r, logFile := newFakeNsjail(t, "cgroup", NsjailOptions{CgroupRoot: root})

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MemoryUsedKB != 2048 {
		t.Errorf("MemoryUsedKB = %d, want 2048", res.MemoryUsedKB)
	}
	want := "--cgroupv2_mount " + filepath.Join(root, "run-abc")
	if !strings.Contains(readCalls(t, logFile), want) {
		t.Errorf("expected %q in %s", want, readCalls(t, logFile))
	}
}

func TestNsjailRunner_MissingCgroupRootReportsZero(t *testing.T) {
	r, logFile := newFakeNsjail(t, "cgroup", NsjailOptions{CgroupRoot: filepath.Join(t.TempDir(), "absent")})

	res, err := r.Run(context.Background(), testSpec(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MemoryUsedKB != 0 {
		t.Errorf("MemoryUsedKB = %d, want 0", res.MemoryUsedKB)
	}
	if strings.Contains(readCalls(t, logFile), "cgroupv2") {
		t.Errorf("no run cgroup should be passed: %s", readCalls(t, logFile))
	}
}
