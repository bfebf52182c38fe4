// Package service contains the business logic layer of the engine.
//
// THE THREE-LAYER ARCHITECTURE:
// Code is organised into three layers, each with one job:
//
//	Handler (HTTP layer)    → parses requests, writes responses
//	Service (Engine layer)  → validates, clamps limits, routes, normalizes
//	Executor (Sandbox layer) → provisions sandboxes and runs untrusted code
//
// WHY A SEPARATE ENGINE LAYER?
// Without it, handlers would do everything: parse HTTP, enforce ceilings,
// talk to Docker, format results. With it:
//
//  1. TESTING: Business rules (timeout clamping, size ceilings, dispatch)
//     are tested with plain Go function calls, no HTTP involved.
//
//  2. REUSE: The same Engine serves the HTTP handlers, the health monitor
//     and any future CLI or queue consumer.
//
//  3. ONE RESULT SHAPE: Every path through Execute, whether the code ran
//     in a local sandbox, on a remote executor service, or was rejected
//     before any sandbox existed, collapses to the same ExecutionResult.
//     Callers never learn which path served them, and Execute never
//     returns a Go error. Infrastructure failures become results too.
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  Provisioner → Engine → Handler
//	At runtime:       Handler calls Engine calls Provisioner/remote.Client
//
// The Engine takes executor.Provisioner (an interface), not a concrete
// Docker or process type. Tests inject a mock; main.go decides which
// backend to wire based on configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/profile"
	"github.com/sakif/execbox/internal/remote"
	"github.com/sakif/execbox/internal/validate"
)

// DefaultLanguage is assumed when a request does not name one.
const DefaultLanguage = "python"

// LocalEndpoint is the endpoint label reported for languages served by the
// in-process sandbox rather than a remote executor service.
const LocalEndpoint = "local"

// backendUnavailable is the user-facing error when no sandbox could be
// provisioned at all. The real cause goes to the log, never to the caller:
// infrastructure details (docker socket paths, permission errors) leak
// nothing useful to someone submitting code and plenty to an attacker.
const backendUnavailable = "Execution backend unavailable"

// Limits carries the engine-wide execution ceilings.
// Caller-supplied values are clamped against these before any sandbox is
// provisioned. They are deliberately NOT per-request configurable: the
// whole point of a ceiling is that the request cannot raise it.
type Limits struct {
	MaxExecutionTime int // seconds; requested timeouts are clamped here
	DefaultTimeout   int // seconds; applied when the request carries none
	MaxCodeSizeKB    int // source size ceiling, checked before dispatch
	MaxMemoryMB      int // sandbox memory ceiling; profile limits clamp to it
}

// Fallbacks applied by NewEngine when a Limits field is zero, so the Engine
// stays usable as a plain library without the config package.
const (
	FallbackMaxExecutionTime = 60
	FallbackDefaultTimeout   = 30
	FallbackMaxCodeSizeKB    = 50
	FallbackMaxMemoryMB      = 512
)

// Engine executes untrusted code and answers syntax, health and info
// queries about the languages it serves.
//
// STRUCT FIELDS:
//   - registry: the immutable language catalog (which languages exist,
//     how to compile and run them, where they execute)
//   - provisioner: the sandbox backend for locally-served languages
//   - remote: HTTP client for languages routed to executor services
//   - limits: engine-wide ceilings, see Limits
//   - logger: structured logging of dispatch decisions and failures
type Engine struct {
	registry    *profile.Registry
	provisioner executor.Provisioner
	remote      *remote.Client
	limits      Limits
	logger      *slog.Logger
}

// NewEngine creates an Engine. The caller decides which sandbox backend to
// inject; tests pass a mock, main.go passes Docker or the process backend.
func NewEngine(registry *profile.Registry, provisioner executor.Provisioner, client *remote.Client, limits Limits, logger *slog.Logger) *Engine {
	if limits.MaxExecutionTime <= 0 {
		limits.MaxExecutionTime = FallbackMaxExecutionTime
	}
	if limits.DefaultTimeout <= 0 {
		limits.DefaultTimeout = FallbackDefaultTimeout
	}
	if limits.DefaultTimeout > limits.MaxExecutionTime {
		limits.DefaultTimeout = limits.MaxExecutionTime
	}
	if limits.MaxCodeSizeKB <= 0 {
		limits.MaxCodeSizeKB = FallbackMaxCodeSizeKB
	}
	if limits.MaxMemoryMB <= 0 {
		limits.MaxMemoryMB = FallbackMaxMemoryMB
	}
	return &Engine{
		registry:    registry,
		provisioner: provisioner,
		remote:      client,
		limits:      limits,
		logger:      logger,
	}
}

// Registry exposes the language catalog for callers that list languages.
func (e *Engine) Registry() *profile.Registry {
	return e.registry
}

// Execute runs one piece of untrusted code and always produces a canonical
// result. Note the signature: it returns ExecutionResult, NOT (result, error).
//
// WHY NO ERROR RETURN?
// Every failure the caller can act on is already a result: bad requests
// become status "error" with a human-readable message, deadline hits become
// status "timeout". Returning a separate error would force every caller to
// merge two failure channels back into one. Infrastructure faults are
// logged with their real cause and surfaced as a generic error result.
//
// ExecutionTime is measured here, around the whole dispatch, so remote
// results report the time THIS caller waited rather than whatever the
// service measured for itself.
func (e *Engine) Execute(ctx context.Context, req model.ExecutionRequest) (result model.ExecutionResult) {
	start := time.Now()
	// A panic anywhere below this point must not escape to the caller. The
	// sandbox, if one exists, was already torn down by Supervise's own defer;
	// the caller gets the same generic result as any infrastructure failure.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during execution", slog.Any("panic", r))
			result = errorResult(backendUnavailable)
		}
		result.ExecutionTime = roundSeconds(time.Since(start))
	}()
	return e.execute(ctx, req)
}

func (e *Engine) execute(ctx context.Context, req model.ExecutionRequest) model.ExecutionResult {
	// === REQUEST VALIDATION ===
	// The handler already rejects empty code with a 400, but the Engine is
	// also a library entry point, so it enforces the rule itself.
	if strings.TrimSpace(req.Code) == "" {
		return errorResult("Code is required")
	}

	// The size ceiling is checked on raw bytes, before scaffolding: what the
	// user pays for is what the user sent.
	if sizeKB := float64(len(req.Code)) / 1024.0; sizeKB > float64(e.limits.MaxCodeSizeKB) {
		return errorResult(fmt.Sprintf("Code size (%.1fKB) exceeds maximum allowed size (%dKB)",
			sizeKB, e.limits.MaxCodeSizeKB))
	}

	// === LANGUAGE RESOLUTION ===
	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	p, err := e.registry.Resolve(language)
	if err != nil {
		// Resolve's message already names the offending language.
		return errorResult(err.Error())
	}

	// === TIMEOUT CLAMPING ===
	// Zero means "engine default". Anything above the ceiling is clamped,
	// not rejected: the caller asked for more time than allowed, and the
	// most useful answer is still to run the code with what they can have.
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.limits.DefaultTimeout
	}
	if timeout > e.limits.MaxExecutionTime {
		timeout = e.limits.MaxExecutionTime
	}

	// === DISPATCH ===
	if p.BackendURL != "" {
		return e.executeRemote(ctx, p, req, timeout)
	}
	return e.executeLocal(ctx, p, req, timeout)
}

// executeLocal scaffolds the code, builds a sandbox request from the
// language profile and hands it to the provisioner.
func (e *Engine) executeLocal(ctx context.Context, p profile.Profile, req model.ExecutionRequest, timeoutSec int) model.ExecutionResult {
	code := profile.Scaffold(p.ID, req.Code)

	compileCmd, runCmd, err := p.Commands()
	if err != nil {
		// Registry construction validates every template, so this indicates
		// a programming error, not a user error. Don't blame the code.
		e.logger.Error("command template expansion failed",
			slog.String("language", p.ID),
			slog.String("error", err.Error()))
		return errorResult(backendUnavailable)
	}

	out, err := executor.Supervise(ctx, e.provisioner, executor.Request{
		ArtifactName: p.ArtifactFile,
		Code:         code,
		Input:        req.InputData,
		CompileCmd:   compileCmd,
		RunCmd:       runCmd,
		Env:          p.Env,
		Image:        p.Image,
		Limits: executor.Limits{
			MemoryBytes: int64(e.sandboxMemoryMB(p)) << 20,
			CPU:         p.CPU,
			WallTime:    time.Duration(timeoutSec) * time.Second,
		},
	}, e.logger)
	if err != nil {
		e.logger.Error("sandbox execution failed",
			slog.String("language", p.ID),
			slog.String("error", err.Error()))
		return errorResult(backendUnavailable)
	}

	e.logger.Info("execution finished",
		slog.String("language", p.ID),
		slog.String("phase", out.Phase),
		slog.Int("exit_code", out.ExitCode),
		slog.Bool("timed_out", out.TimedOut),
		slog.Duration("duration", out.Duration))

	return normalizeOutcome(out, timeoutSec)
}

// sandboxMemoryMB picks the memory limit for one sandbox. Profiles choose
// their own working set (a JVM needs more than CPython), but never above the
// engine-wide ceiling, which also covers profiles that declare nothing.
func (e *Engine) sandboxMemoryMB(p profile.Profile) int {
	if p.MemoryMB <= 0 || p.MemoryMB > e.limits.MaxMemoryMB {
		return e.limits.MaxMemoryMB
	}
	return p.MemoryMB
}

// executeRemote forwards the request to the language's executor service.
// The clamped timeout travels with the request: the remote service owns the
// payload's wall clock, our HTTP client only adds a grace window on top.
func (e *Engine) executeRemote(ctx context.Context, p profile.Profile, req model.ExecutionRequest, timeoutSec int) model.ExecutionResult {
	result, err := e.remote.Execute(ctx, p.BackendURL, model.ExecutionRequest{
		Code:      req.Code,
		InputData: req.InputData,
		Timeout:   timeoutSec,
		Language:  p.ID,
	})
	if err != nil {
		return e.remoteFailure(p, err, timeoutSec)
	}
	return normalizeRemote(result)
}

// remoteFailure maps transport-level failures onto the result contract.
// Three cases, three different user-facing stories:
//   - the service answered with a non-2xx: its fault, quote it
//   - the grace window expired: the payload hit its wall clock, report a
//     timeout exactly like a local sandbox would
//   - anything else: we never reached the service at all
func (e *Engine) remoteFailure(p profile.Profile, err error, timeoutSec int) model.ExecutionResult {
	var statusErr *remote.StatusError
	switch {
	case errors.As(err, &statusErr):
		e.logger.Warn("executor service rejected request",
			slog.String("language", p.ID),
			slog.Int("status", statusErr.Code))
		return errorResult(fmt.Sprintf("Executor service error (HTTP %d): %s", statusErr.Code, statusErr.Body))

	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Warn("executor service timed out",
			slog.String("language", p.ID),
			slog.Int("timeout_seconds", timeoutSec))
		return model.ExecutionResult{
			Error:  timeoutMessage(timeoutSec),
			Status: model.StatusTimeout,
		}

	default:
		e.logger.Error("executor service unreachable",
			slog.String("language", p.ID),
			slog.String("endpoint", p.BackendURL),
			slog.String("error", err.Error()))
		return errorResult(fmt.Sprintf("Network error: %v", err))
	}
}

// ValidateSyntax checks code for syntax errors without executing it.
// Like Execute it never returns a Go error: a backend that cannot check is
// reported as valid-with-warning rather than blocking the caller, because
// a syntax check is advisory and execution remains the source of truth.
func (e *Engine) ValidateSyntax(ctx context.Context, req model.ValidationRequest) (result model.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during syntax check", slog.Any("panic", r))
			result = validate.Degraded()
		}
	}()

	if strings.TrimSpace(req.Code) == "" {
		return model.Invalid("Code is required")
	}

	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	p, err := e.registry.Resolve(language)
	if err != nil {
		return model.Invalid(err.Error())
	}

	if p.BackendURL != "" {
		res, err := e.remote.Validate(ctx, p.BackendURL, model.ValidationRequest{
			Code:     req.Code,
			Language: p.ID,
		})
		if err != nil {
			e.logger.Warn("remote syntax check unavailable",
				slog.String("language", p.ID),
				slog.String("error", err.Error()))
			return validate.Degraded()
		}
		return res
	}

	// The checker sandbox obeys the same memory ceiling as execution.
	p.MemoryMB = e.sandboxMemoryMB(p)
	return validate.Check(ctx, e.provisioner, p, req.Code, e.logger)
}

// Health probes every execution route concurrently and aggregates.
// Each distinct endpoint is probed exactly once: all locally-served
// languages share the sandbox backend, so one probe answers for all of
// them, while every remote service is asked individually.
func (e *Engine) Health(ctx context.Context) model.HealthReport {
	profiles := e.registry.Profiles()

	endpoints := make(map[string]struct{})
	for _, p := range profiles {
		endpoints[endpointOf(p)] = struct{}{}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		byRoute = make(map[string]model.RouteHealth, len(endpoints))
	)
	for endpoint := range endpoints {
		wg.Add(1)
		go func(ep string) {
			defer wg.Done()
			health := e.probeEndpoint(ctx, ep)
			mu.Lock()
			byRoute[ep] = health
			mu.Unlock()
		}(endpoint)
	}
	wg.Wait()

	report := model.HealthReport{
		Services: make(map[string]model.RouteHealth, len(profiles)),
	}
	for _, p := range profiles {
		health := byRoute[endpointOf(p)]
		report.Services[p.ID] = health
		report.TotalServices++
		if health.Status == model.HealthHealthy {
			report.HealthyServices++
		}
	}

	report.OverallStatus = model.OverallHealthy
	if report.HealthyServices < report.TotalServices {
		report.OverallStatus = model.OverallDegraded
	}
	return report
}

// HealthCheck probes the route serving a single language.
// Unknown languages return apperror.ErrNotSupported, because "we do not
// serve that language" is a caller mistake, not a health state.
func (e *Engine) HealthCheck(ctx context.Context, language string) (model.RouteHealth, error) {
	p, err := e.registry.Resolve(language)
	if err != nil {
		return model.RouteHealth{}, err
	}
	return e.probeEndpoint(ctx, endpointOf(p)), nil
}

func endpointOf(p profile.Profile) string {
	if p.BackendURL != "" {
		return p.BackendURL
	}
	return LocalEndpoint
}

// probeEndpoint distinguishes "answered badly" from "never answered":
// an HTTP error status is unhealthy, a transport failure is unreachable.
// The local sandbox has no transport, so any probe failure is unhealthy.
func (e *Engine) probeEndpoint(ctx context.Context, endpoint string) model.RouteHealth {
	if endpoint == LocalEndpoint {
		if err := e.provisioner.HealthCheck(ctx); err != nil {
			return model.RouteHealth{
				Status:   model.HealthUnhealthy,
				Endpoint: endpoint,
				Error:    err.Error(),
			}
		}
		return model.RouteHealth{Status: model.HealthHealthy, Endpoint: endpoint}
	}

	if err := e.remote.Health(ctx, endpoint); err != nil {
		status := model.HealthUnreachable
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) {
			status = model.HealthUnhealthy
		}
		return model.RouteHealth{Status: status, Endpoint: endpoint, Error: err.Error()}
	}
	return model.RouteHealth{Status: model.HealthHealthy, Endpoint: endpoint}
}

// Info describes the service configuration for one language: identity,
// ceilings and the libraries available inside its sandbox.
func (e *Engine) Info(ctx context.Context, language string) (model.ServiceInfo, error) {
	p, err := e.registry.Resolve(language)
	if err != nil {
		return model.ServiceInfo{}, err
	}

	if p.BackendURL != "" {
		info, rerr := e.remote.Info(ctx, p.BackendURL)
		if rerr == nil {
			// The catalog is the source of truth for the toolchain version;
			// deployed services have historically under-reported theirs.
			info.Version = p.Version
			return info, nil
		}
		e.logger.Warn("executor service info unavailable, serving catalog data",
			slog.String("language", p.ID),
			slog.String("error", rerr.Error()))
	}

	libraries := p.Libraries
	if libraries == nil {
		libraries = []string{}
	}
	return model.ServiceInfo{
		Service:            p.ID + "-executor",
		Language:           p.ID,
		Version:            p.Version,
		MaxExecutionTime:   e.limits.MaxExecutionTime,
		MaxMemoryMB:        e.sandboxMemoryMB(p),
		MaxCodeSizeKB:      e.limits.MaxCodeSizeKB,
		AvailableLibraries: libraries,
	}, nil
}

func errorResult(message string) model.ExecutionResult {
	return model.ExecutionResult{Error: message, Status: model.StatusError}
}
