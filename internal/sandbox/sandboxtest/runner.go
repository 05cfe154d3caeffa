// Package sandboxtest provides a scripted sandbox.Runner for tests of code
// that drives the sandbox.
package sandboxtest

import (
	"context"
	"sync"

	"github.com/Harsh-BH/Sentinel/judge/internal/sandbox"
)

var _ sandbox.Runner = (*Runner)(nil)

// Runner is a test double for sandbox.Runner. RunFn sees every spec; the
// default answers every run with exit code 0 and no output.
type Runner struct {
	mu sync.Mutex

	RunFn   func(ctx context.Context, spec *sandbox.RunSpec) (*sandbox.RunResult, error)
	ProbeFn func(ctx context.Context, tc sandbox.Toolchain) error

	RunCalls []*sandbox.RunSpec
}

func (m *Runner) Run(ctx context.Context, spec *sandbox.RunSpec) (*sandbox.RunResult, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, spec)
	m.mu.Unlock()
	if m.RunFn != nil {
		return m.RunFn(ctx, spec)
	}
	return &sandbox.RunResult{TimeUsedMs: 10}, nil
}

func (m *Runner) Probe(ctx context.Context, tc sandbox.Toolchain) error {
	if m.ProbeFn != nil {
		return m.ProbeFn(ctx, tc)
	}
	return nil
}

// Calls returns a snapshot of the recorded run specs.
func (m *Runner) Calls() []*sandbox.RunSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*sandbox.RunSpec(nil), m.RunCalls...)
}
