package sandbox

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

const (
	containerPrefix = "judge-"

	// Docker CLI exit codes for failures of the runtime itself.
	dockerExitDaemon     = 125
	dockerExitNoInvoke   = 126
	dockerExitNotFound   = 127
	dockerCleanupTimeout = 10 * time.Second
	dockerProbeTimeout   = 5 * time.Second
)

// DockerOptions configures the Docker backend.
type DockerOptions struct {
	DockerPath     string
	CPUs           float64
	PidsLimit      int
	MaxOutputBytes int
	// StartupGrace is added to every deadline to absorb container start-up.
	StartupGrace time.Duration
	// User is passed to --user so artifacts stay owned by the host user.
	User string
}

// DockerRunner runs each command in a fresh `docker run --rm` container with
// networking disabled and memory, CPU and pid caps applied.
type DockerRunner struct {
	opts   DockerOptions
	logger *zap.Logger
}

var _ Runner = (*DockerRunner)(nil)

// NewDockerRunner creates a new Docker-backed runner.
func NewDockerRunner(opts DockerOptions, logger *zap.Logger) *DockerRunner {
	if opts.DockerPath == "" {
		opts.DockerPath = "docker"
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
	if opts.User == "" {
		opts.User = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}
	return &DockerRunner{opts: opts, logger: logger}
}

// Run executes spec in a new container and removes it on every exit path.
func (r *DockerRunner) Run(ctx context.Context, spec *RunSpec) (*RunResult, error) {
	name := containerPrefix + spec.ID
	args := r.buildArgs(spec, name)

	run, err := runHost(ctx, spec.Timeout+r.opts.StartupGrace, r.opts.DockerPath, args,
		spec.Stdin, r.opts.MaxOutputBytes, spec.MergeOutput)
	if err != nil {
		return nil, err
	}

	if run.deadlineHit || run.cancelled {
		// Killing the CLI does not stop the container.
		r.removeContainer(name)
	}

	r.logger.Debug("docker run completed",
		zap.String("container", name),
		zap.String("image", spec.Toolchain.Image),
		zap.Duration("elapsed", run.elapsed),
		zap.Int("exit_code", run.exitCode),
		zap.Bool("deadline_hit", run.deadlineHit),
	)

	if run.cancelled {
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgingCancelled, ctx.Err())
	}

	stderr := run.stderr.String()
	diag := stderr
	if spec.MergeOutput {
		diag = run.stdout.String()
	}
	if !run.deadlineHit && isDockerFailure(run.exitCode, diag) {
		return nil, fmt.Errorf("%w: docker exited %d: %s",
			domain.ErrSandboxUnavailable, run.exitCode, strings.TrimSpace(diag))
	}

	result := &RunResult{
		ExitCode:    run.exitCode,
		Stdout:      truncateOutput(run.stdout.String(), run.stdout.truncated),
		Stderr:      truncateOutput(stderr, run.stderr.truncated),
		TimedOut:    run.deadlineHit,
		Truncated:   run.stdout.truncated || run.stderr.truncated,
		OutputLimit: r.opts.MaxOutputBytes,
		TimeUsedMs:  int(run.elapsed.Milliseconds()),
	}
	if result.TimedOut {
		result.ExitCode = -1
	} else if run.exitCode == exitCodeKilled {
		result.OOMKilled = true
	}
	return result, nil
}

// Probe checks that the toolchain image exists locally.
func (r *DockerRunner) Probe(ctx context.Context, tc Toolchain) error {
	if tc.Image == "" {
		return fmt.Errorf("%w: no image configured", domain.ErrSandboxUnavailable)
	}
	run, err := runHost(ctx, dockerProbeTimeout, r.opts.DockerPath,
		[]string{"image", "inspect", "--format", "{{.Id}}", tc.Image}, "", 4096, false)
	if err != nil {
		return err
	}
	if run.deadlineHit || run.cancelled || run.exitCode != 0 {
		return fmt.Errorf("%w: image %s: %s", domain.ErrSandboxUnavailable, tc.Image,
			strings.TrimSpace(run.stderr.String()))
	}
	return nil
}

func (r *DockerRunner) buildArgs(spec *RunSpec, name string) []string {
	mem := strconv.Itoa(spec.MemoryLimitMB) + "m"
	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"--network=none",
		"--memory=" + mem,
		"--memory-swap=" + mem,
		"--cpus=" + strconv.FormatFloat(r.opts.CPUs, 'f', -1, 64),
		"--pids-limit=" + strconv.Itoa(r.opts.PidsLimit),
		"--cap-drop=ALL",
		"--security-opt=no-new-privileges",
		"--tmpfs", "/tmp:rw,size=256m",
		"--user", r.opts.User,
		"-v", spec.HostDir + ":" + spec.SandboxDir,
		"-w", spec.SandboxDir,
	}
	for _, env := range spec.Command.Env {
		args = append(args, "-e", env)
	}
	args = append(args, spec.Toolchain.Image)
	return append(args, spec.Command.Args...)
}

func (r *DockerRunner) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), dockerCleanupTimeout)
	defer cancel()

	run, err := runHost(ctx, dockerCleanupTimeout, r.opts.DockerPath, []string{"rm", "-f", name}, "", 4096, false)
	if err != nil {
		r.logger.Warn("Failed to remove container", zap.String("container", name), zap.Error(err))
		return
	}
	if run.exitCode != 0 && !strings.Contains(run.stderr.String(), "No such container") {
		r.logger.Warn("Failed to remove container",
			zap.String("container", name),
			zap.String("stderr", run.stderr.String()),
		)
	}
}

// isDockerFailure separates errors of the docker runtime from exit codes of
// the program running inside the container. docker passes the container's
// exit status through unchanged, so 125-127 only count as docker failures
// when the CLI printed its own diagnostic.
func isDockerFailure(exitCode int, stderr string) bool {
	switch exitCode {
	case dockerExitDaemon, dockerExitNoInvoke, dockerExitNotFound:
		return strings.Contains(stderr, "docker:") ||
			strings.Contains(stderr, "Error response from daemon") ||
			strings.Contains(stderr, "OCI runtime")
	}
	return false
}
