// Package main is a health probe for execution routes.
//
// One-shot mode (the default) sweeps every route — or just one, with
// -language — prints the report as JSON on stdout and exits 0 only when
// everything probed is healthy. That makes it directly usable as a container
// HEALTHCHECK or a Kubernetes exec probe.
//
// With -watch it stays up instead and re-probes on a schedule, logging
// status transitions, which is the mode you run next to a deployment while
// debugging a flaky route.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sakif/execbox/internal/config"
	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/executor/docker"
	"github.com/sakif/execbox/internal/executor/process"
	"github.com/sakif/execbox/internal/model"
	"github.com/sakif/execbox/internal/profile"
	"github.com/sakif/execbox/internal/remote"
	"github.com/sakif/execbox/internal/service"
)

// Exit codes: 0 all probed routes healthy, 1 something is degraded,
// 2 the probe itself could not run (bad config, unknown language).
const (
	exitHealthy  = 0
	exitDegraded = 1
	exitError    = 2
)

func main() {
	configPath := flag.String("config", "", "config file (default: the usual search paths)")
	language := flag.String("language", "", "probe a single language instead of all routes")
	watch := flag.Bool("watch", false, "keep running and re-probe on an interval")
	interval := flag.Duration("interval", time.Minute, "sweep interval in watch mode")
	flag.Parse()

	// Logs go to stderr so stdout stays pure JSON for whatever parses it.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitError)
	}

	registry, err := profile.NewRegistry(profileOverrides(cfg))
	if err != nil {
		logger.Error("failed to build language registry", slog.String("error", err.Error()))
		os.Exit(exitError)
	}

	prov, err := newProvisioner(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sandbox backend", slog.String("error", err.Error()))
		os.Exit(exitError)
	}
	defer prov.Close()

	engine := service.NewEngine(registry, prov, remote.NewClient(logger), service.Limits{
		MaxExecutionTime: cfg.Engine.MaxExecutionTime,
		DefaultTimeout:   cfg.Engine.DefaultTimeout,
		MaxCodeSizeKB:    cfg.Engine.MaxCodeSizeKB,
		MaxMemoryMB:      cfg.Engine.MaxMemoryMB,
	}, logger)

	if *watch {
		os.Exit(runWatch(engine, *interval, logger))
	}
	os.Exit(runOnce(engine, *language, logger))
}

// runOnce performs a single sweep (or single-language probe) and reports
// the result on stdout.
func runOnce(engine *service.Engine, language string, logger *slog.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if language != "" {
		route, err := engine.HealthCheck(ctx, language)
		if err != nil {
			logger.Error("probe failed",
				slog.String("language", language),
				slog.String("error", err.Error()),
			)
			return exitError
		}
		printJSON(route)
		if route.Status != model.HealthHealthy {
			return exitDegraded
		}
		return exitHealthy
	}

	report := engine.Health(ctx)
	printJSON(report)
	if report.OverallStatus != model.OverallHealthy {
		return exitDegraded
	}
	return exitHealthy
}

// runWatch probes immediately, then keeps sweeping until interrupted.
// An interrupted watch is a clean exit — the sweeps already logged
// everything worth knowing.
func runWatch(engine *service.Engine, interval time.Duration, logger *slog.Logger) int {
	monitor := service.NewMonitor(engine, interval, logger)

	// The scheduled sweeps only log transitions; the immediate probe gives
	// the operator a full reading the moment the command starts.
	printJSON(monitor.Probe())

	if err := monitor.Start(); err != nil {
		logger.Error("failed to start monitor", slog.String("error", err.Error()))
		return exitError
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	monitor.Stop()
	return exitHealthy
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode report:", err)
		return
	}
	fmt.Println(string(out))
}

// profileOverrides converts the config file's language table into registry
// overrides. Duplicated in each cmd main on purpose: it is trivial wiring,
// and the profile package must not depend on config.
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

func newProvisioner(cfg *config.Config, logger *slog.Logger) (executor.Provisioner, error) {
	switch cfg.Engine.Backend {
	case "process":
		return process.NewProvisioner(process.Config{WorkRoot: cfg.Engine.WorkDir}, logger)
	default:
		return docker.NewProvisioner(docker.Config{PoolSize: cfg.Docker.PoolSize}, logger)
	}
}
