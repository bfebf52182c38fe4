//go:build linux

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sakif/execbox/internal/executor"
)

func platformSupported() error { return nil }

// exec runs one phase of the sandboxed program and waits for the whole
// process group to finish. The group is killed as one unit on timeout, so
// children spawned by the payload cannot outlive it.
func (s *sandbox) exec(ctx context.Context, phase string, argv []string, input string, deadline time.Time) (*executor.Outcome, error) {
	budget := time.Until(deadline)
	if budget <= 0 {
		return &executor.Outcome{ExitCode: executor.TimeoutExitCode, TimedOut: true, Phase: phase}, nil
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.dir
	cmd.Env = s.environment()
	cmd.SysProcAttr = sysProcAttr()
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	stdout := &limitWriter{n: maxCaptureBytes}
	stderr := &limitWriter{n: maxCaptureBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	// Limits land from the parent right after start. The wall clock watchdog
	// below covers the narrow window before they apply.
	s.applyRlimits(cmd.Process.Pid, phase)

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(budget):
			timedOut.Store(true)
			killGroup(cmd.Process.Pid)
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				timedOut.Store(true)
			}
			killGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	if waitErr != nil && !timedOut.Load() {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("wait %s: %w", argv[0], waitErr)
		}
	}

	out := &executor.Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(waitErr, cmd.ProcessState),
		TimedOut: timedOut.Load(),
		Phase:    phase,
		Duration: time.Since(start),
	}
	if out.TimedOut {
		out.ExitCode = executor.TimeoutExitCode
	}
	return out, nil
}

// sysProcAttr puts the child in its own process group so the whole tree can
// be addressed by one kill, ties its lifetime to the service, and drops to
// nobody when the service itself runs privileged.
func sysProcAttr() *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if os.Geteuid() == 0 {
		attr.Credential = &syscall.Credential{Uid: 65534, Gid: 65534}
	}
	return attr
}

func (s *sandbox) applyRlimits(pid int, phase string) {
	set := func(name string, resource int, cur uint64) {
		rl := &unix.Rlimit{Cur: cur, Max: cur}
		if err := unix.Prlimit(pid, resource, rl, nil); err != nil {
			s.logger.Warn("apply rlimit failed", "rlimit", name, "error", err)
		}
	}

	// Compilers and VM runtimes reserve large virtual ranges, so the address
	// space cap applies to the run phase only.
	if mem := s.req.Limits.MemoryBytes; mem > 0 && phase == executor.PhaseRun {
		set("as", unix.RLIMIT_AS, uint64(mem))
	}
	if wall := s.req.Limits.WallTime; wall > 0 {
		seconds := uint64((wall + time.Second - 1) / time.Second)
		set("cpu", unix.RLIMIT_CPU, seconds)
	}
	set("nofile", unix.RLIMIT_NOFILE, 256)
	set("fsize", unix.RLIMIT_FSIZE, 32*1024*1024)
	set("nproc", unix.RLIMIT_NPROC, 64)
}

// killGroup sends SIGKILL to the whole process group. The negative pid
// addresses the group created by Setpgid.
func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func exitCode(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
