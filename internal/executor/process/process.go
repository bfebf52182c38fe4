// Package process implements the executor contracts with constrained local
// subprocesses. It exists for environments without a container runtime.
// Isolation is weaker than the docker backend since the kernel and
// filesystem are shared, so the backend leans on scrubbed environments, an
// unprivileged run user, resource limits, and whole-tree kills.
package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/execbox/internal/executor"
)

// maxCaptureBytes caps how much stdout and stderr each phase may accumulate
// in memory. Anything past the cap is dropped, not buffered.
const maxCaptureBytes = 1 << 20

// Config tunes the process backend.
type Config struct {
	// WorkRoot is the parent directory for per-run working areas. Empty
	// falls back to a directory under the system temp dir.
	WorkRoot string
}

// Provisioner implements executor.Provisioner with local subprocesses.
type Provisioner struct {
	cfg    Config
	logger *slog.Logger
}

// NewProvisioner prepares the work root and returns the backend. It fails
// on platforms without process group and rlimit support so a misconfigured
// deployment surfaces at startup, not on the first request.
func NewProvisioner(cfg Config, logger *slog.Logger) (*Provisioner, error) {
	if err := platformSupported(); err != nil {
		return nil, err
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "execbox")
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	// The unprivileged run user must be able to traverse into the working
	// areas below. Chmod beats the umask.
	if err := os.Chmod(cfg.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("open up work root: %w", err)
	}
	return &Provisioner{cfg: cfg, logger: logger}, nil
}

// Provision creates the working area and writes the code artifact into it.
// No process starts until Run.
func (p *Provisioner) Provision(ctx context.Context, req executor.Request) (executor.Sandbox, error) {
	if len(req.RunCmd) == 0 {
		return nil, fmt.Errorf("run command is required")
	}
	if req.ArtifactName == "" {
		return nil, fmt.Errorf("artifact name is required")
	}
	if req.Limits.WallTime <= 0 {
		return nil, fmt.Errorf("wall time limit is required")
	}

	dir := filepath.Join(p.cfg.WorkRoot, "exec-"+xid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create working area: %w", err)
	}
	// The payload runs as nobody when the service itself is privileged, and
	// compilers write their outputs next to the source, so the working area
	// must stay writable for everyone. Chmod beats the umask.
	if err := os.Chmod(dir, 0o777); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("open up working area: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, req.ArtifactName), []byte(req.Code), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	return &sandbox{dir: dir, req: req, logger: p.logger}, nil
}

// HealthCheck verifies the work root is still writable.
func (p *Provisioner) HealthCheck(ctx context.Context) error {
	probe := filepath.Join(p.cfg.WorkRoot, ".probe-"+xid.New().String())
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("work root not writable: %w", err)
	}
	return os.Remove(probe)
}

// Close implements executor.Provisioner. Working areas are owned by their
// sandboxes, so there is nothing shared to release.
func (p *Provisioner) Close() error { return nil }

type sandbox struct {
	dir    string
	req    executor.Request
	logger *slog.Logger
}

// Run executes the compile phase when present, then the run phase. Both
// phases share one wall clock budget; a compile that exhausts it or exits
// nonzero short-circuits the run.
func (s *sandbox) Run(ctx context.Context) (*executor.Outcome, error) {
	deadline := time.Now().Add(s.req.Limits.WallTime)

	if len(s.req.CompileCmd) > 0 {
		out, err := s.exec(ctx, executor.PhaseCompile, s.req.CompileCmd, "", deadline)
		if err != nil || out.ExitCode != 0 || out.TimedOut {
			return out, err
		}
	}
	return s.exec(ctx, executor.PhaseRun, s.req.RunCmd, s.req.Input, deadline)
}

// Close removes the working area and everything the payload left in it.
func (s *sandbox) Close() error {
	return os.RemoveAll(s.dir)
}

// environment returns the scrubbed child environment. Nothing from the
// service's own environment leaks through; profile extras land last so they
// may override the scrubbed defaults.
func (s *sandbox) environment() []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + s.dir,
		"TMPDIR=" + s.dir,
		"LANG=C.UTF-8",
	}
	return append(env, executor.ExpandEnv(s.req.Env, s.dir)...)
}

// limitWriter keeps the first n bytes and drops the rest, so a runaway
// print loop cannot exhaust service memory before the deadline fires.
type limitWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := w.n - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return n, nil
}

func (w *limitWriter) String() string { return w.buf.String() }
