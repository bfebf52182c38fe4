// Package main is the entry point for a per-language executor service.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main"
// package. The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, sandbox backend, engine)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, etc.). This separation makes the app testable and its
// components reusable.
//
// ONE SERVICE, ONE LANGUAGE:
// A deployment runs one of these processes per language, each listening on
// its own port (EXECBOX_EXECUTOR_LANGUAGE selects which). A gateway that
// serves several languages itself routes the rest here via backend_url
// overrides — the two roles share this binary, only the config differs.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/execbox/internal/config"
	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/executor/docker"
	"github.com/sakif/execbox/internal/executor/process"
	"github.com/sakif/execbox/internal/profile"
	"github.com/sakif/execbox/internal/remote"
	"github.com/sakif/execbox/internal/server"
	"github.com/sakif/execbox/internal/service"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs
	// human-readable logs to the terminal. LevelDebug enables all log levels;
	// in production you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// Defaults, then an optional config.yaml, then EXECBOX_* env vars.
	// EXECBOX_CONFIG pins an exact file; empty means the usual search paths.
	cfg, err := config.Load(os.Getenv("EXECBOX_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. BUILD THE LANGUAGE CATALOG ===
	// The registry is immutable after this point: a typo'd language name or a
	// malformed backend URL kills the process here, not on the first request.
	registry, err := profile.NewRegistry(profileOverrides(cfg))
	if err != nil {
		logger.Error("failed to build language registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	prof, err := registry.Resolve(cfg.Executor.Language)
	if err != nil {
		logger.Error("configured language has no profile",
			slog.String("language", cfg.Executor.Language),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	// A service must run its own language in its own sandbox. Routing it to a
	// backend URL would make this process a proxy to itself (or worse, a loop
	// of services forwarding to each other).
	if prof.BackendURL != "" {
		logger.Error("configured language is routed to a remote backend",
			slog.String("language", prof.ID),
			slog.String("backend_url", prof.BackendURL),
		)
		os.Exit(1)
	}

	// === 4. INITIALIZE THE SANDBOX BACKEND ===
	// Unlike an optional feature, the sandbox is this service's entire
	// purpose, so a backend that cannot even be constructed is a startup
	// error. (The Docker backend connects lazily — a daemon that is down
	// surfaces per-request and in /health, not here.)
	prov, err := newProvisioner(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sandbox backend",
			slog.String("backend", cfg.Engine.Backend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer func() {
		if err := prov.Close(); err != nil {
			logger.Warn("sandbox backend shutdown", slog.String("error", err.Error()))
		}
	}()

	// === 5. ASSEMBLE THE ENGINE ===
	engine := service.NewEngine(registry, prov, remote.NewClient(logger), service.Limits{
		MaxExecutionTime: cfg.Engine.MaxExecutionTime,
		DefaultTimeout:   cfg.Engine.DefaultTimeout,
		MaxCodeSizeKB:    cfg.Engine.MaxCodeSizeKB,
		MaxMemoryMB:      cfg.Engine.MaxMemoryMB,
	}, logger)

	// === 6. CREATE AND START THE SERVER ===
	srv := server.New(server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		Language:         prof.ID,
		MaxExecutionTime: cfg.Engine.MaxExecutionTime,
	}, engine, logger)

	logger.Info("starting executor service",
		slog.String("language", prof.ID),
		slog.String("backend", cfg.Engine.Backend),
	)

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// profileOverrides converts the config file's language table into registry
// overrides. The two types are kept separate so the profile package never
// imports viper-facing config structs.
func profileOverrides(cfg *config.Config) map[string]profile.Override {
	overrides := make(map[string]profile.Override, len(cfg.Languages))
	for id, ov := range cfg.Languages {
		overrides[id] = profile.Override{
			Disabled:   ov.Disabled,
			Image:      ov.Image,
			BackendURL: ov.BackendURL,
			MemoryMB:   ov.MemoryMB,
			CPU:        ov.CPU,
			CompileCmd: ov.CompileCmd,
			RunCmd:     ov.RunCmd,
		}
	}
	return overrides
}

// newProvisioner picks the sandbox backend. Docker is the production choice;
// the process backend exists for environments without a daemon (CI, dev
// laptops) and trades isolation strength for zero infrastructure.
func newProvisioner(cfg *config.Config, logger *slog.Logger) (executor.Provisioner, error) {
	switch cfg.Engine.Backend {
	case "process":
		return process.NewProvisioner(process.Config{WorkRoot: cfg.Engine.WorkDir}, logger)
	default:
		return docker.NewProvisioner(docker.Config{PoolSize: cfg.Docker.PoolSize}, logger)
	}
}
