// Package validate performs syntax-only inspection of code.
//
// Go is checked natively with go/parser since the toolchain is linked right
// into this binary. Every other language runs its profile's check command
// inside a sandbox with a short fixed budget and no stdin. A check that
// cannot run at all degrades to "valid with warning" rather than failing:
// syntax checking is advisory, execution remains the source of truth.
package validate

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/profile"
)

const (
	// checkBudget caps a sandboxed syntax check. Checks are cheap; one that
	// drags is treated as unavailable instead of holding the caller.
	checkBudget = 5 * time.Second

	// maxDiagnostics bounds the reported error list. One typo can make a
	// compiler emit hundreds of follow-on errors nobody reads.
	maxDiagnostics = 20
)

// Check inspects code for syntax errors under the given language profile
// without executing it.
func Check(ctx context.Context, prov executor.Provisioner, p profile.Profile, code string, logger *slog.Logger) model.ValidationResult {
	// The checker sees exactly the source execution would see, so line
	// numbers in diagnostics match what a real run would report.
	source := profile.Scaffold(p.ID, code)

	if p.ID == "go" {
		return checkGo(source)
	}

	if p.CheckCmd == "" {
		return model.Valid()
	}

	argv, err := profile.BuildCommand(p.CheckCmd, p)
	if err != nil {
		logger.Error("check command expansion failed",
			slog.String("language", p.ID),
			slog.String("error", err.Error()))
		return Degraded()
	}

	out, err := executor.Supervise(ctx, prov, executor.Request{
		ArtifactName: p.ArtifactFile,
		Code:         source,
		RunCmd:       argv,
		Env:          p.Env,
		Image:        p.Image,
		Limits: executor.Limits{
			MemoryBytes: int64(p.MemoryMB) << 20,
			CPU:         p.CPU,
			WallTime:    checkBudget,
		},
	}, logger)
	if err != nil {
		logger.Warn("syntax check backend unavailable",
			slog.String("language", p.ID),
			slog.String("error", err.Error()))
		return Degraded()
	}

	if out.TimedOut {
		result := model.Valid()
		result.Warnings = append(result.Warnings, "Syntax check timed out, code was not verified")
		return result
	}
	if out.ExitCode == 0 {
		return model.Valid()
	}
	return model.Invalid(diagnostics(out.Stderr, out.Stdout)...)
}

// Degraded reports code as valid without having checked it. The warning
// tells the caller the check never actually ran.
func Degraded() model.ValidationResult {
	result := model.Valid()
	result.Warnings = append(result.Warnings, "Syntax check unavailable, code was not verified")
	return result
}

// checkGo parses the source with the standard library parser. Unlike the
// sandboxed checkers this costs microseconds, so it runs in-process.
func checkGo(source string) model.ValidationResult {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "main.go", source, parser.AllErrors); err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			errs := make([]string, 0, len(list))
			for i, e := range list {
				if i == maxDiagnostics {
					errs = append(errs, "(additional errors truncated)")
					break
				}
				errs = append(errs, fmt.Sprintf("line %d: %s", e.Pos.Line, e.Msg))
			}
			return model.Invalid(errs...)
		}
		return model.Invalid(err.Error())
	}
	return model.Valid()
}

// diagnostics turns checker output into a bounded list of error lines.
// Stderr is preferred; some toolchains (tsc among them) print diagnostics
// on stdout instead. Leading whitespace survives because caret markers in
// python tracebacks only line up when it does.
func diagnostics(stderr, stdout string) []string {
	text := stderr
	if strings.TrimSpace(text) == "" {
		text = stdout
	}

	var lines []string
	truncated := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(lines) == maxDiagnostics {
			truncated = true
			break
		}
		lines = append(lines, line)
	}
	if truncated {
		lines = append(lines, "(additional errors truncated)")
	}
	if len(lines) == 0 {
		lines = []string{"Syntax check failed"}
	}
	return lines
}
