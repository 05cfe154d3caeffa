// Package sandbox runs commands inside an isolated, resource-capped,
// network-less execution context with a hard wall-clock deadline.
package sandbox

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

const (
	// DefaultMaxOutputBytes caps captured output to prevent memory exhaustion.
	DefaultMaxOutputBytes = 64 * 1024 // 64 KB

	// outputTruncatedMsg is appended when output exceeds the limit.
	outputTruncatedMsg = "\n... output truncated ..."

	// exitCodeKilled is 128 + SIGKILL, what cgroup OOM kills look like.
	exitCodeKilled = 137
)

// Runner executes one command in the sandbox. Implementations must never
// leave a process or container behind once Run returns.
//
// Infrastructure failures are returned as errors wrapping
// domain.ErrSandboxUnavailable. A judged program that crashes, exits
// non-zero or times out is not an error: it is described by RunResult.
type Runner interface {
	Run(ctx context.Context, spec *RunSpec) (*RunResult, error)

	// Probe reports whether the toolchain can be started. A nil error
	// means available.
	Probe(ctx context.Context, tc Toolchain) error
}

// Toolchain identifies where a language's tools live: a container image
// for Docker, a config profile for nsjail.
type Toolchain struct {
	Image   string
	Profile string
}

// RunSpec describes a single sandboxed invocation.
type RunSpec struct {
	// ID names the run in logs and, for Docker, the container.
	ID        string
	Toolchain Toolchain
	Command   domain.Command

	// HostDir is bound read-write at SandboxDir inside the sandbox and is
	// the working directory of the process.
	HostDir    string
	SandboxDir string

	Stdin         string
	Timeout       time.Duration
	MemoryLimitMB int

	// MergeOutput sends stderr into Stdout, in write order.
	MergeOutput bool
}

// RunResult is the raw outcome of a run. The runner does not interpret output.
type RunResult struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	TimedOut     bool
	OOMKilled    bool
	Truncated    bool
	// OutputLimit is the capture cap in bytes that Truncated refers to.
	OutputLimit  int
	TimeUsedMs   int
	MemoryUsedKB int
}

// Output returns stdout followed by stderr.
func (r *RunResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ──────────────────────────────────────────────────────
// Helper types and functions
// ──────────────────────────────────────────────────────

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &limitedBuffer{limit: limit}
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil // discard silently
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}

	return lb.buf.Write(p)
}

func (lb *limitedBuffer) String() string {
	return lb.buf.String()
}

// truncateOutput appends a truncation notice if the output was cut off.
func truncateOutput(s string, wasTruncated bool) string {
	if wasTruncated {
		return s + outputTruncatedMsg
	}
	return s
}

// separateNsjailLogs splits nsjail log lines from the user program's stderr.
// nsjail logs are prefixed with bracketed tags like [I], [W], [E], [F], [D].
func separateNsjailLogs(rawStderr string) (programStderr, nsjailLogs string) {
	if rawStderr == "" {
		return "", ""
	}

	var progLines, logLines []string
	for _, line := range strings.Split(rawStderr, "\n") {
		if isNsjailLogLine(strings.TrimSpace(line)) {
			logLines = append(logLines, line)
		} else {
			progLines = append(progLines, line)
		}
	}

	return strings.Join(progLines, "\n"), strings.Join(logLines, "\n")
}

func isNsjailLogLine(line string) bool {
	for _, prefix := range []string{"[I]", "[W]", "[E]", "[F]", "[D]"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// isOOMKill checks if the process was killed due to an OOM condition.
// Exit code 137 is SIGKILL, which is what the cgroup OOM killer sends.
func isOOMKill(exitCode int, sandboxLog string) bool {
	if exitCode == exitCodeKilled {
		return true
	}
	lowerLog := strings.ToLower(sandboxLog)
	return strings.Contains(lowerLog, "oom") ||
		strings.Contains(lowerLog, "memory cgroup") ||
		strings.Contains(lowerLog, "cgroup_mem")
}

// readCgroupMemoryPeak returns the peak memory in KB from the first readable
// cgroup file, or 0 if none is available.
func readCgroupMemoryPeak(paths ...string) int {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		s := strings.TrimSpace(string(data))
		if s == "max" || s == "" {
			continue
		}
		val, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		return int(val / 1024)
	}
	return 0
}
