package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"log/slog"
	"os"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/profile"
)

// stubProvisioner plays back a scripted outcome and records the one request
// it saw, so tests can assert on the check command without a real sandbox.

type stubSandbox struct{ outcome *executor.Outcome }

func (s *stubSandbox) Run(context.Context) (*executor.Outcome, error) { return s.outcome, nil }
func (s *stubSandbox) Close() error                                   { return nil }

type stubProvisioner struct {
	req     executor.Request
	called  int
	outcome executor.Outcome
	provErr error
}

func (s *stubProvisioner) Provision(_ context.Context, req executor.Request) (executor.Sandbox, error) {
	s.called++
	s.req = req
	if s.provErr != nil {
		return nil, s.provErr
	}
	out := s.outcome
	return &stubSandbox{outcome: &out}, nil
}

func (s *stubProvisioner) HealthCheck(context.Context) error { return nil }
func (s *stubProvisioner) Close() error                      { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testProfile(t *testing.T, id string) profile.Profile {
	t.Helper()
	registry, err := profile.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	p, err := registry.Resolve(id)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", id, err)
	}
	return p
}

func TestCheckGo_Valid(t *testing.T) {
	result := Check(context.Background(), &stubProvisioner{}, testProfile(t, "go"),
		"package main\n\nfunc main() {\n\tprintln(42)\n}\n", testLogger())

	if !result.IsValid {
		t.Fatalf("IsValid = false, errors = %v", result.Errors)
	}
	if result.Errors == nil || result.Warnings == nil {
		t.Error("Errors/Warnings must be non-nil so they marshal as []")
	}
}

func TestCheckGo_FragmentScaffolded(t *testing.T) {
	prov := &stubProvisioner{}
	result := Check(context.Background(), prov, testProfile(t, "go"),
		`fmt.Println("hi")`, testLogger())

	if !result.IsValid {
		t.Fatalf("IsValid = false for a scaffoldable fragment, errors = %v", result.Errors)
	}
	if prov.called != 0 {
		t.Errorf("provisioned %d sandboxes for a native go check, want 0", prov.called)
	}
}

func TestCheckGo_SyntaxError(t *testing.T) {
	result := Check(context.Background(), &stubProvisioner{}, testProfile(t, "go"),
		"package main\n\nfunc main() {\n\tif {\n}\n", testLogger())

	if result.IsValid {
		t.Fatal("IsValid = true for broken go code")
	}
	if len(result.Errors) == 0 {
		t.Fatal("Errors is empty, want parser diagnostics")
	}
	if !strings.HasPrefix(result.Errors[0], "line ") {
		t.Errorf("Errors[0] = %q, want a line-numbered diagnostic", result.Errors[0])
	}
}

func TestCheck_RunsProfileChecker(t *testing.T) {
	prov := &stubProvisioner{outcome: executor.Outcome{ExitCode: 0}}
	result := Check(context.Background(), prov, testProfile(t, "python"), "print(1)", testLogger())

	if !result.IsValid {
		t.Fatalf("IsValid = false, errors = %v", result.Errors)
	}
	if prov.called != 1 {
		t.Fatalf("provisioned %d sandboxes, want 1", prov.called)
	}

	if got, want := strings.Join(prov.req.RunCmd, " "), "python3 -m py_compile main.py"; got != want {
		t.Errorf("RunCmd = %q, want %q", got, want)
	}
	if prov.req.CompileCmd != nil {
		t.Errorf("CompileCmd = %v, want nil (the checker is the only phase)", prov.req.CompileCmd)
	}
	if prov.req.Input != "" {
		t.Errorf("Input = %q, want none for a syntax check", prov.req.Input)
	}
	if prov.req.Limits.WallTime != 5*time.Second {
		t.Errorf("WallTime = %v, want the fixed 5s check budget", prov.req.Limits.WallTime)
	}
}

func TestCheck_ReportsDiagnostics(t *testing.T) {
	prov := &stubProvisioner{outcome: executor.Outcome{
		ExitCode: 1,
		Stderr:   "  File \"main.py\", line 1\n    def broken(\n               ^\nSyntaxError: '(' was never closed\n",
	}}

	result := Check(context.Background(), prov, testProfile(t, "python"), "def broken(", testLogger())

	if result.IsValid {
		t.Fatal("IsValid = true for code the checker rejected")
	}
	if len(result.Errors) != 4 {
		t.Fatalf("Errors = %v, want the 4 non-blank stderr lines", result.Errors)
	}
	if result.Errors[3] != "SyntaxError: '(' was never closed" {
		t.Errorf("Errors[3] = %q, want the SyntaxError line", result.Errors[3])
	}
	// Caret alignment depends on leading whitespace surviving.
	if !strings.HasPrefix(result.Errors[2], "     ") {
		t.Errorf("Errors[2] = %q, want leading whitespace preserved", result.Errors[2])
	}
}

func TestCheck_UsesStdoutWhenStderrEmpty(t *testing.T) {
	prov := &stubProvisioner{outcome: executor.Outcome{
		ExitCode: 2,
		Stdout:   "main.ts(1,5): error TS1005: ',' expected.\n",
	}}

	result := Check(context.Background(), prov, testProfile(t, "typescript"), "let x = ;", testLogger())

	if result.IsValid {
		t.Fatal("IsValid = true for code the checker rejected")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "TS1005") {
		t.Errorf("Errors = %v, want the stdout diagnostic", result.Errors)
	}
}

func TestCheck_TruncatesDiagnostics(t *testing.T) {
	var noise strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&noise, "main.cpp:%d: error: expected ';'\n", i+1)
	}
	prov := &stubProvisioner{outcome: executor.Outcome{ExitCode: 1, Stderr: noise.String()}}

	result := Check(context.Background(), prov, testProfile(t, "cpp"), "int main() {", testLogger())

	if len(result.Errors) != maxDiagnostics+1 {
		t.Fatalf("len(Errors) = %d, want %d diagnostics plus a truncation marker", len(result.Errors), maxDiagnostics+1)
	}
	if last := result.Errors[len(result.Errors)-1]; !strings.Contains(last, "truncated") {
		t.Errorf("last entry = %q, want the truncation marker", last)
	}
}

func TestCheck_SilentFailure(t *testing.T) {
	prov := &stubProvisioner{outcome: executor.Outcome{ExitCode: 1}}

	result := Check(context.Background(), prov, testProfile(t, "python"), "???", testLogger())

	if result.IsValid {
		t.Fatal("IsValid = true for a failed check")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "Syntax check failed" {
		t.Errorf("Errors = %v, want the fallback message", result.Errors)
	}
}

func TestCheck_BackendDownDegrades(t *testing.T) {
	prov := &stubProvisioner{provErr: errors.New("daemon gone")}

	result := Check(context.Background(), prov, testProfile(t, "python"), "print(1)", testLogger())

	if !result.IsValid {
		t.Error("IsValid = false, want degraded-valid when no sandbox is available")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want exactly one unavailability note", result.Warnings)
	}
}

func TestCheck_TimeoutDegrades(t *testing.T) {
	prov := &stubProvisioner{outcome: executor.Outcome{
		ExitCode: executor.TimeoutExitCode,
		TimedOut: true,
	}}

	result := Check(context.Background(), prov, testProfile(t, "rust"), "fn main() {}", testLogger())

	if !result.IsValid {
		t.Error("IsValid = false, want degraded-valid when the checker timed out")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "timed out") {
		t.Errorf("Warnings = %v, want a timeout note", result.Warnings)
	}
}

func TestDegraded(t *testing.T) {
	result := Degraded()
	if !result.IsValid {
		t.Error("IsValid = false, want true")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want exactly one entry", result.Warnings)
	}
	if len(result.Errors) != 0 || result.Errors == nil {
		t.Errorf("Errors = %#v, want empty non-nil slice", result.Errors)
	}
}
