// Package executor defines the sandbox contracts shared by the container and
// process backends, plus the supervisor that drives one execution through
// provision, run, and guaranteed teardown.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Limits caps one sandboxed execution.
type Limits struct {
	MemoryBytes int64
	CPU         float64
	WallTime    time.Duration
}

// Request describes one program to run in isolation. Commands execute with
// the working area as their working directory; CompileCmd runs first when
// present and a nonzero exit short-circuits the run phase.
type Request struct {
	ArtifactName string // file name the code is written to inside the working area
	Code         string
	Input        string   // piped to the run phase on stdin
	CompileCmd   []string // nil skips the compile phase
	RunCmd       []string
	Env          []string // extra KEY=VALUE entries; {dir} expands to the working area
	Image        string   // container image, ignored by the process backend
	Limits       Limits
}

// Outcome is the raw result of a sandboxed run, before normalization into
// the wire-level result.
type Outcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Phase    string
	Duration time.Duration
}

// Phase values recorded on Outcome.
const (
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

// TimeoutExitCode marks a forced termination at the wall clock, the same
// convention the unix timeout command uses. Backends set it alongside
// TimedOut so both signals agree.
const TimeoutExitCode = 124

// Sandbox is one provisioned working area. Run may be called at most once.
// Close releases everything the sandbox holds and must be called even when
// Run fails; it is safe to call after a timeout already killed the payload.
type Sandbox interface {
	Run(ctx context.Context) (*Outcome, error)
	Close() error
}

// Provisioner creates sandboxes and reports backend health. Implementations
// must be safe for concurrent use.
type Provisioner interface {
	Provision(ctx context.Context, req Request) (Sandbox, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Supervise drives one request through the full sandbox lifecycle. Teardown
// is unconditional: whatever Run returns, the sandbox is closed before
// Supervise returns. A failed teardown is logged, not returned, so it can
// never mask the run outcome.
func Supervise(ctx context.Context, p Provisioner, req Request, logger *slog.Logger) (*Outcome, error) {
	box, err := p.Provision(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := box.Close(); cerr != nil {
			logger.Warn("sandbox teardown failed", "error", cerr)
		}
	}()
	return box.Run(ctx)
}

// ExpandEnv resolves {dir} placeholders in env entries against the working
// area path. Entries without a placeholder pass through unchanged.
func ExpandEnv(env []string, dir string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, len(env))
	for i, e := range env {
		out[i] = strings.ReplaceAll(e, "{dir}", dir)
	}
	return out
}
