package service

import (
	"math"
	"testing"
	"time"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/model"
)

func TestNormalizeOutcome(t *testing.T) {
	tests := []struct {
		name       string
		out        executor.Outcome
		timeoutSec int
		wantStatus string
		wantOutput string
		wantError  string
	}{
		{
			name:       "clean exit",
			out:        executor.Outcome{Stdout: "ok\n", ExitCode: 0},
			timeoutSec: 30,
			wantStatus: model.StatusSuccess,
			wantOutput: "ok\n",
			wantError:  "",
		},
		{
			name:       "clean exit keeps stderr warnings",
			out:        executor.Outcome{Stdout: "ok\n", Stderr: "DeprecationWarning: ancient API", ExitCode: 0},
			timeoutSec: 30,
			wantStatus: model.StatusSuccess,
			wantOutput: "ok\n",
			wantError:  "DeprecationWarning: ancient API",
		},
		{
			name:       "nonzero exit reports stderr",
			out:        executor.Outcome{Stdout: "before crash", Stderr: "NameError: x", ExitCode: 1},
			timeoutSec: 30,
			wantStatus: model.StatusError,
			wantOutput: "before crash",
			wantError:  "NameError: x",
		},
		{
			name:       "silent crash gets a generic message",
			out:        executor.Outcome{ExitCode: 7},
			timeoutSec: 30,
			wantStatus: model.StatusError,
			wantOutput: "",
			wantError:  "Process exited with code 7",
		},
		{
			name:       "timeout discards partial output",
			out:        executor.Outcome{Stdout: "partial", ExitCode: executor.TimeoutExitCode, TimedOut: true},
			timeoutSec: 10,
			wantStatus: model.StatusTimeout,
			wantOutput: "",
			wantError:  "Code execution timed out after 10 seconds",
		},
		{
			// Exit code 124 is reserved for the wall clock even when the
			// TimedOut flag did not make it through.
			name:       "bare 124 still reads as timeout",
			out:        executor.Outcome{ExitCode: executor.TimeoutExitCode},
			timeoutSec: 15,
			wantStatus: model.StatusTimeout,
			wantOutput: "",
			wantError:  "Code execution timed out after 15 seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeOutcome(&tt.out, tt.timeoutSec)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", got.Output, tt.wantOutput)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestNormalizeRemote(t *testing.T) {
	known := model.ExecutionResult{Output: "x", Error: "y", Status: model.StatusTimeout}
	if got := normalizeRemote(known); got != known {
		t.Errorf("normalizeRemote(%+v) = %+v, want a known status passed through", known, got)
	}

	weird := model.ExecutionResult{Output: "x", Status: "exploded"}
	got := normalizeRemote(weird)
	if got.Status != model.StatusError {
		t.Errorf("Status = %q, want %q for an unknown remote status", got.Status, model.StatusError)
	}
	if got.Output != "x" {
		t.Errorf("Output = %q, want preserved", got.Output)
	}

	missing := model.ExecutionResult{}
	if got := normalizeRemote(missing); got.Status != model.StatusError {
		t.Errorf("Status = %q, want %q for a missing remote status", got.Status, model.StatusError)
	}
}

func TestRoundSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want float64
	}{
		{0, 0},
		{1500 * time.Millisecond, 1.5},
		{123456 * time.Microsecond, 0.123},
		{1234567 * time.Microsecond, 1.235},
	}

	for _, tt := range tests {
		if got := roundSeconds(tt.d); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("roundSeconds(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}
