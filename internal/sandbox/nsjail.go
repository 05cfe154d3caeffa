package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// nsjailGrace is added to the context deadline on top of nsjail's own
// --time_limit, which is the primary enforcement.
const nsjailGrace = 2 * time.Second

// NsjailOptions configures the nsjail backend.
type NsjailOptions struct {
	NsjailPath     string
	ConfigDir      string
	CPUs           float64
	PidsLimit      int
	MaxOutputBytes int
	// CgroupRoot is a delegated cgroup v2 directory with the memory
	// controller enabled. Every run gets its own child directory below it,
	// handed to nsjail as the cgroup mount, so memory.peak covers that run
	// alone. Empty or unusable means memory is reported as 0.
	CgroupRoot string
}

// NsjailRunner runs commands in an nsjail sandbox. nsjail creates a new
// network namespace for every run unless the profile disables it, so the
// judged program has no network.
type NsjailRunner struct {
	opts   NsjailOptions
	logger *zap.Logger
}

var _ Runner = (*NsjailRunner)(nil)

// NewNsjailRunner creates a new nsjail-backed runner.
func NewNsjailRunner(opts NsjailOptions, logger *zap.Logger) *NsjailRunner {
	if opts.NsjailPath == "" {
		opts.NsjailPath = "/usr/bin/nsjail"
	}
	if opts.CPUs <= 0 {
		opts.CPUs = 1
	}
	if opts.PidsLimit <= 0 {
		opts.PidsLimit = 64
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &NsjailRunner{opts: opts, logger: logger}
}

// Run executes spec under nsjail.
func (r *NsjailRunner) Run(ctx context.Context, spec *RunSpec) (*RunResult, error) {
	configPath := r.configPath(spec.Toolchain)
	cgroupDir := r.runCgroup(spec.ID)
	if cgroupDir != "" {
		defer r.removeCgroup(cgroupDir)
	}
	args := r.buildArgs(spec, configPath, cgroupDir)

	// nsjail's own log lines always go to stderr, so keep streams apart and
	// merge after filtering.
	run, err := runHost(ctx, spec.Timeout+nsjailGrace, r.opts.NsjailPath, args,
		spec.Stdin, r.opts.MaxOutputBytes, false)
	if err != nil {
		return nil, err
	}
	if run.cancelled {
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgingCancelled, ctx.Err())
	}

	progStderr, nsjailLog := separateNsjailLogs(run.stderr.String())

	r.logger.Debug("nsjail execution completed",
		zap.String("run_id", spec.ID),
		zap.Duration("elapsed", run.elapsed),
		zap.Int("exit_code", run.exitCode),
		zap.String("nsjail_log", nsjailLog),
	)

	if isNsjailFailure(nsjailLog) {
		return nil, fmt.Errorf("%w: nsjail: %s", domain.ErrSandboxUnavailable, nsjailLog)
	}

	result := &RunResult{
		ExitCode:    run.exitCode,
		Stdout:      run.stdout.String(),
		Stderr:      progStderr,
		Truncated:   run.stdout.truncated || run.stderr.truncated,
		OutputLimit: r.opts.MaxOutputBytes,
		TimeUsedMs:  int(run.elapsed.Milliseconds()),
	}
	if cgroupDir != "" {
		result.MemoryUsedKB = readCgroupMemoryPeak(filepath.Join(cgroupDir, "memory.peak"))
	}
	if spec.MergeOutput {
		result.Stdout = result.Output()
		result.Stderr = ""
	}
	result.Stdout = truncateOutput(result.Stdout, run.stdout.truncated)

	// --time_limit only has whole-second resolution and is the hard kill;
	// the limit itself is checked against the measured wall clock.
	switch {
	case run.deadlineHit || run.elapsed > spec.Timeout || strings.Contains(nsjailLog, "time limit"):
		result.TimedOut = true
		result.ExitCode = -1
	case run.exitCode != 0 && isOOMKill(run.exitCode, nsjailLog):
		result.OOMKilled = true
	}
	return result, nil
}

// Probe checks that nsjail and the profile's config file are present.
func (r *NsjailRunner) Probe(_ context.Context, tc Toolchain) error {
	if _, err := os.Stat(r.opts.NsjailPath); err != nil {
		return fmt.Errorf("%w: nsjail binary: %v", domain.ErrSandboxUnavailable, err)
	}
	if _, err := os.Stat(r.configPath(tc)); err != nil {
		return fmt.Errorf("%w: nsjail config: %v", domain.ErrSandboxUnavailable, err)
	}
	return nil
}

func (r *NsjailRunner) configPath(tc Toolchain) string {
	return filepath.Join(r.opts.ConfigDir, tc.Profile+".cfg")
}

// runCgroup creates the per-run cgroup, or returns "" when memory cannot
// be measured.
func (r *NsjailRunner) runCgroup(id string) string {
	if r.opts.CgroupRoot == "" {
		return ""
	}
	dir := filepath.Join(r.opts.CgroupRoot, "run-"+id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		r.logger.Debug("Per-run cgroup unavailable, memory will not be reported",
			zap.String("dir", dir), zap.Error(err))
		return ""
	}
	return dir
}

// removeCgroup deletes a run cgroup. cgroupfs only allows rmdir, which
// succeeds once nsjail has removed its own child group.
func (r *NsjailRunner) removeCgroup(dir string) {
	if err := os.Remove(dir); err != nil {
		r.logger.Warn("Failed to remove run cgroup", zap.String("dir", dir), zap.Error(err))
	}
}

func (r *NsjailRunner) buildArgs(spec *RunSpec, configPath, cgroupDir string) []string {
	args := []string{
		"--config", configPath,
		"--bindmount", spec.HostDir + ":" + spec.SandboxDir,
		"--cwd", spec.SandboxDir,
		"--time_limit", strconv.Itoa(nsjailTimeLimit(spec.Timeout)),
		"--cgroup_mem_max", strconv.FormatInt(int64(spec.MemoryLimitMB)*1024*1024, 10),
		"--cgroup_cpu_ms_per_sec", strconv.Itoa(int(r.opts.CPUs * 1000)),
		"--cgroup_pids_max", strconv.Itoa(r.opts.PidsLimit),
	}
	if cgroupDir != "" {
		args = append(args, "--use_cgroupv2", "--cgroupv2_mount", cgroupDir)
	}
	for _, env := range spec.Command.Env {
		args = append(args, "--env", env)
	}
	args = append(args, "--")
	return append(args, spec.Command.Args...)
}

// nsjailTimeLimit converts a deadline into nsjail's whole-second limit,
// rounding up and adding one second of slack.
func nsjailTimeLimit(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return secs + 1
}

// isNsjailFailure reports fatal nsjail errors, logged with the [F] tag or
// as a failed exec of the target.
func isNsjailFailure(nsjailLog string) bool {
	for _, line := range strings.Split(nsjailLog, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[F]") {
			return true
		}
		if strings.HasPrefix(line, "[E]") && strings.Contains(line, "execve(") {
			return true
		}
	}
	return false
}
