// Package judge compiles a submission once and runs it against every active
// test case in the sandbox, turning the outcome into an ExecutionVerdict.
package judge

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/language"
	"github.com/Harsh-BH/Sentinel/judge/internal/metrics"
	"github.com/Harsh-BH/Sentinel/judge/internal/registry"
	"github.com/Harsh-BH/Sentinel/judge/internal/sandbox"
	"github.com/Harsh-BH/Sentinel/judge/internal/workspace"
)

const (
	DefaultCompileTimeout  = 30 * time.Second
	DefaultCompileMemoryMB = 512

	// maxMessageBytes caps program stderr copied into a verdict message.
	maxMessageBytes = 1024
)

// Options tune the orchestrator. Zero values fall back to the defaults.
type Options struct {
	// CompileTimeout applies to compile and syntax-check steps and is
	// independent of the problem's time limit.
	CompileTimeout  time.Duration
	CompileMemoryMB int
	// PresentationError enables the PRESENTATION_ERROR verdict.
	PresentationError bool
}

// StatusFunc observes the transient COMPILING and RUNNING states.
type StatusFunc func(status domain.SubmissionStatus)

// Orchestrator judges submissions. It holds no per-submission state and is
// safe for concurrent use.
type Orchestrator struct {
	registry   *registry.Registry
	runner     sandbox.Runner
	workspaces *workspace.Manager
	opts       Options
	logger     *zap.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	reg *registry.Registry,
	runner sandbox.Runner,
	workspaces *workspace.Manager,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.CompileTimeout <= 0 {
		opts.CompileTimeout = DefaultCompileTimeout
	}
	if opts.CompileMemoryMB <= 0 {
		opts.CompileMemoryMB = DefaultCompileMemoryMB
	}
	return &Orchestrator{
		registry:   reg,
		runner:     runner,
		workspaces: workspaces,
		opts:       opts,
		logger:     logger,
	}
}

// Judge runs the full compile → execute → aggregate pipeline. It never
// returns an error: every failure, including a panic, is reported as a
// terminal verdict, and the workspace is removed on every path.
func (o *Orchestrator) Judge(ctx context.Context, req *domain.JudgeRequest, onStatus StatusFunc) (verdict *domain.ExecutionVerdict) {
	start := time.Now()
	log := o.logger.With(
		zap.String("submission_id", req.SubmissionID),
		zap.String("language", string(req.Language)),
	)
	if onStatus == nil {
		onStatus = func(domain.SubmissionStatus) {}
	}

	cases := domain.ActiveInOrder(req.TestCases)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Judging panicked", zap.Any("panic", r), zap.Stack("stack"))
			verdict = systemError(len(cases), fmt.Errorf("internal error: %v", r))
		}
		metrics.JudgementsTotal.WithLabelValues(string(req.Language), string(verdict.Status)).Inc()
		metrics.JudgeDuration.WithLabelValues(string(req.Language)).Observe(time.Since(start).Seconds())
		log.Info("Judging finished",
			zap.String("status", string(verdict.Status)),
			zap.Int("passed", verdict.PassedCount),
			zap.Int("total", verdict.TotalCount),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	strategy, err := o.registry.StrategyFor(req.Language)
	if err != nil {
		return &domain.ExecutionVerdict{
			Status:        domain.StatusCompileError,
			TotalCount:    len(cases),
			CompileOutput: err.Error(),
			ErrorMessage:  err.Error(),
			Cases:         []domain.TestCaseVerdict{},
		}
	}
	if !req.Limits.Valid() {
		return systemError(len(cases), fmt.Errorf("invalid resource limits: time=%dms memory=%dMB",
			req.Limits.TimeLimitMs, req.Limits.MemoryLimitMB))
	}
	if len(cases) == 0 {
		return systemError(0, domain.ErrNoTestCases)
	}

	ws, err := o.workspaces.Create(strategy.SourceFileName(), req.SourceCode)
	if err != nil {
		log.Error("Failed to create workspace", zap.Error(err))
		return systemError(len(cases), err)
	}
	defer func() {
		if err := o.workspaces.Remove(ws); err != nil {
			log.Warn("Failed to clean up workspace", zap.String("dir", ws.HostDir), zap.Error(err))
		}
	}()

	compiled, err := o.compile(ctx, strategy, ws, onStatus)
	if err != nil {
		return o.infraFailure(log, len(cases), err)
	}
	if !compiled.Success {
		return &domain.ExecutionVerdict{
			Status:        domain.StatusCompileError,
			TotalCount:    len(cases),
			TotalPoints:   totalPoints(cases),
			CompileOutput: compiled.ErrorOutput,
			ErrorMessage:  "Compilation failed",
			Cases:         []domain.TestCaseVerdict{},
		}
	}

	onStatus(domain.StatusRunning)
	results, err := o.runCases(ctx, log, strategy, ws, cases, req.Limits)
	if err != nil {
		return o.infraFailure(log, len(cases), err)
	}
	return aggregate(cases, results)
}

// compile runs the compile step, or the syntax check for interpreted
// languages. A non-nil error means the sandbox itself failed.
func (o *Orchestrator) compile(ctx context.Context, s language.Strategy, ws *workspace.Workspace, onStatus StatusFunc) (*domain.CompilationResult, error) {
	artifact := path.Join(workspace.SandboxDir, s.ArtifactName())

	cmd, ok := s.CompileInvocation(workspace.SandboxDir)
	if !ok {
		cmd, ok = s.SyntaxCheckInvocation(workspace.SandboxDir)
	}
	if !ok {
		return &domain.CompilationResult{Success: true, ArtifactPath: artifact}, nil
	}

	onStatus(domain.StatusCompiling)
	res, err := o.runner.Run(ctx, &sandbox.RunSpec{
		ID:            ws.ID + "-compile",
		Toolchain:     registry.Toolchain(s),
		Command:       cmd,
		HostDir:       ws.HostDir,
		SandboxDir:    workspace.SandboxDir,
		Timeout:       o.opts.CompileTimeout,
		MemoryLimitMB: o.opts.CompileMemoryMB,
		MergeOutput:   true,
	})
	if err != nil {
		return nil, err
	}
	metrics.CompileDuration.WithLabelValues(string(s.Language())).Observe(float64(res.TimeUsedMs) / 1000)

	output := printable(strings.TrimSpace(res.Stdout), 0)
	switch {
	case res.TimedOut:
		msg := fmt.Sprintf("Compilation timed out after %s", o.opts.CompileTimeout)
		if output != "" {
			msg += "\n" + output
		}
		return &domain.CompilationResult{ErrorOutput: msg, TimeUsedMs: res.TimeUsedMs}, nil
	case res.ExitCode != 0:
		if output == "" {
			output = fmt.Sprintf("Compiler exited with code %d", res.ExitCode)
		}
		return &domain.CompilationResult{ErrorOutput: output, TimeUsedMs: res.TimeUsedMs}, nil
	}
	return &domain.CompilationResult{Success: true, ArtifactPath: artifact, TimeUsedMs: res.TimeUsedMs}, nil
}

// runCases executes cases strictly in order. Evaluation stops after the
// first time limit failure.
func (o *Orchestrator) runCases(
	ctx context.Context,
	log *zap.Logger,
	s language.Strategy,
	ws *workspace.Workspace,
	cases []domain.TestCase,
	limits domain.ResourceLimits,
) ([]domain.TestCaseVerdict, error) {
	cmd := s.RunInvocation(workspace.SandboxDir)
	timeout := time.Duration(limits.TimeLimitMs) * time.Millisecond

	results := make([]domain.TestCaseVerdict, 0, len(cases))
	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %v", domain.ErrJudgingCancelled, err)
		}

		res, err := o.runner.Run(ctx, &sandbox.RunSpec{
			ID:            ws.ID + "-" + strconv.Itoa(i+1),
			Toolchain:     registry.Toolchain(s),
			Command:       cmd,
			HostDir:       ws.HostDir,
			SandboxDir:    workspace.SandboxDir,
			Stdin:         tc.Input,
			Timeout:       timeout,
			MemoryLimitMB: limits.MemoryLimitMB,
		})
		if err != nil {
			return results, err
		}

		v := o.evaluate(tc, res, limits)
		results = append(results, v)
		metrics.TestCasesExecuted.WithLabelValues(string(s.Language()), string(v.Status)).Inc()

		log.Debug("Test case evaluated",
			zap.Int("test_order", tc.Order),
			zap.String("status", string(v.Status)),
			zap.Int("time_ms", v.ExecutionTimeMs),
		)

		if v.Status == domain.StatusTimeLimitExceeded {
			break
		}
	}
	return results, nil
}

// evaluate classifies one sandbox result against its test case.
func (o *Orchestrator) evaluate(tc domain.TestCase, res *sandbox.RunResult, limits domain.ResourceLimits) domain.TestCaseVerdict {
	v := domain.TestCaseVerdict{
		Order:           tc.Order,
		ActualOutput:    strings.TrimSpace(res.Stdout),
		ExpectedOutput:  strings.TrimSpace(tc.ExpectedOutput),
		ExecutionTimeMs: res.TimeUsedMs,
		MemoryUsedKB:    res.MemoryUsedKB,
	}

	switch {
	case res.TimedOut:
		v.Status = domain.StatusTimeLimitExceeded
		v.ExecutionTimeMs = limits.TimeLimitMs
		v.ErrorMessage = "Time limit exceeded"
	case res.OOMKilled:
		v.Status = domain.StatusMemoryLimitExceeded
		v.ErrorMessage = fmt.Sprintf("Memory limit exceeded (%d MB)", limits.MemoryLimitMB)
	case res.ExitCode != 0:
		v.Status = domain.StatusRuntimeError
		v.ErrorMessage = runtimeMessage(res)
	default:
		v.Status = compareOutput(res.Stdout, tc.ExpectedOutput, o.opts.PresentationError)
		switch v.Status {
		case domain.StatusWrongAnswer:
			v.ErrorMessage = "Output does not match the expected output"
			if res.Truncated {
				v.ErrorMessage = fmt.Sprintf("Output exceeded %d KB", res.OutputLimit/1024)
			}
		case domain.StatusPresentationError:
			v.ErrorMessage = "Output differs only in whitespace"
		}
	}

	v.Passed = v.Status == domain.StatusAccepted
	if v.Passed {
		v.Points = tc.Points
	}
	return v
}

func runtimeMessage(res *sandbox.RunResult) string {
	msg := fmt.Sprintf("Runtime error (exit code %d)", res.ExitCode)
	stderr := printable(strings.TrimSpace(res.Stderr), maxMessageBytes)
	if stderr == "" {
		return msg
	}
	return msg + ": " + stderr
}

// aggregate folds per-case results into the submission verdict. totalCount
// is always the full active set, even when evaluation stopped early.
func aggregate(cases []domain.TestCase, results []domain.TestCaseVerdict) *domain.ExecutionVerdict {
	v := &domain.ExecutionVerdict{
		Status:      domain.StatusAccepted,
		TotalCount:  len(cases),
		TotalPoints: totalPoints(cases),
		Cases:       results,
	}

	var firstFailure *domain.TestCaseVerdict
	for i := range results {
		r := &results[i]
		v.ExecutionTimeMs += r.ExecutionTimeMs
		v.MaxTimeMs = max(v.MaxTimeMs, r.ExecutionTimeMs)
		v.MemoryUsedKB = max(v.MemoryUsedKB, r.MemoryUsedKB)
		if r.Passed {
			v.PassedCount++
			v.EarnedPoints += r.Points
		} else if firstFailure == nil {
			firstFailure = r
		}
	}

	v.Score = domain.Score(v.PassedCount, v.TotalCount)
	if v.PassedCount == v.TotalCount {
		return v
	}
	if firstFailure == nil {
		// Unreachable while every case is evaluated or evaluation stops on a failure.
		v.Status = domain.StatusSystemError
		v.ErrorMessage = "not all test cases were evaluated"
		return v
	}
	v.Status = firstFailure.Status
	v.ErrorMessage = fmt.Sprintf("Test case %d: %s", firstFailure.Order, firstFailure.ErrorMessage)
	return v
}

func (o *Orchestrator) infraFailure(log *zap.Logger, total int, err error) *domain.ExecutionVerdict {
	switch {
	case errors.Is(err, domain.ErrJudgingCancelled):
		log.Warn("Judging cancelled", zap.Error(err))
	default:
		if errors.Is(err, domain.ErrSandboxUnavailable) {
			metrics.SandboxFailures.Inc()
		}
		log.Error("Sandbox failure", zap.Error(err))
	}
	return systemError(total, err)
}

func systemError(total int, err error) *domain.ExecutionVerdict {
	return &domain.ExecutionVerdict{
		Status:       domain.StatusSystemError,
		TotalCount:   total,
		ErrorMessage: printable(err.Error(), maxMessageBytes),
		Cases:        []domain.TestCaseVerdict{},
	}
}

func totalPoints(cases []domain.TestCase) int {
	sum := 0
	for _, tc := range cases {
		sum += tc.Points
	}
	return sum
}
