package service

import (
	"fmt"
	"math"
	"time"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/model"
)

// normalizeOutcome maps a raw sandbox outcome onto the result contract.
//
// The mapping is deliberately simple and total:
//
//	forced termination  → "timeout", output discarded, canonical message
//	exit code 0         → "success", stderr passes through (warnings etc.)
//	anything else       → "error", stderr is the message
//
// Timeout discards partial output on purpose. A payload killed mid-write
// produces a truncated stream, and callers have historically treated any
// non-empty output as "the program worked". Better to be clearly dead.
func normalizeOutcome(out *executor.Outcome, timeoutSec int) model.ExecutionResult {
	switch {
	case out.TimedOut || out.ExitCode == executor.TimeoutExitCode:
		return model.ExecutionResult{
			Error:  timeoutMessage(timeoutSec),
			Status: model.StatusTimeout,
		}

	case out.ExitCode == 0:
		return model.ExecutionResult{
			Output: out.Stdout,
			Error:  out.Stderr,
			Status: model.StatusSuccess,
		}

	default:
		message := out.Stderr
		if message == "" {
			// A crash that wrote nothing still needs a story.
			message = fmt.Sprintf("Process exited with code %d", out.ExitCode)
		}
		return model.ExecutionResult{
			Output: out.Stdout,
			Error:  message,
			Status: model.StatusError,
		}
	}
}

// normalizeRemote sanity-checks a result produced by a remote executor
// service. Known statuses pass through untouched (the service owns its own
// wording); anything else is coerced to an error so the three-status
// contract holds no matter what a misbehaving service sends.
func normalizeRemote(result model.ExecutionResult) model.ExecutionResult {
	switch result.Status {
	case model.StatusSuccess, model.StatusError, model.StatusTimeout:
		return result
	default:
		return model.ExecutionResult{
			Output: result.Output,
			Error:  fmt.Sprintf("Executor service returned unknown status %q", result.Status),
			Status: model.StatusError,
		}
	}
}

func timeoutMessage(seconds int) string {
	return fmt.Sprintf("Code execution timed out after %d seconds", seconds)
}

// roundSeconds reports a duration in seconds at millisecond precision,
// the resolution the executionTime field has always carried.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
