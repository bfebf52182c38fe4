// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

// Execution status values. Callers switch on exactly these three strings, so
// they are part of the wire contract and must never grow silently.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// ExecutionRequest is one request to run a piece of untrusted code.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize/deserialize
// this struct to/from JSON. The field names are camelCase on the wire because the
// executor services and their callers already speak that dialect.
//
// Timeout is in seconds. Zero means "use the engine default"; values above the
// engine ceiling are clamped, never trusted.
type ExecutionRequest struct {
	Code      string `json:"code"`
	InputData string `json:"inputData,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
	Language  string `json:"language,omitempty"`
}

// ExecutionResult is the canonical result shape. Every path through the engine
// (local sandbox, remote executor service, pre-dispatch rejection) collapses to
// this — callers cannot tell which path served them.
//
// Status invariants:
//   - StatusSuccess: exit code was zero and no forced termination occurred
//   - StatusTimeout: the process was forcibly terminated at the deadline
//   - StatusError: everything else (compile failure, nonzero exit, infrastructure)
type ExecutionResult struct {
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"executionTime"`
	Status        string  `json:"status"`
}

// ValidationRequest asks for a syntax check without execution.
type ValidationRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// ValidationResult reports a syntax check. Errors and Warnings are always
// non-nil so they marshal as [] rather than null.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid returns a passing ValidationResult with empty (not nil) slices.
func Valid() ValidationResult {
	return ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}
}

// Invalid returns a failing ValidationResult carrying the given errors.
func Invalid(errs ...string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{IsValid: false, Errors: errs, Warnings: []string{}}
}
