package docker_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"log/slog"
	"os"

	"github.com/sakif/execbox/internal/executor"
	"github.com/sakif/execbox/internal/executor/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pythonRequest(code string) executor.Request {
	return executor.Request{
		ArtifactName: "main.py",
		Code:         code,
		RunCmd:       []string{"python3", "main.py"},
		Image:        "python:3.12-alpine",
		Limits: executor.Limits{
			MemoryBytes: 128 * 1024 * 1024,
			CPU:         0.5,
			WallTime:    30 * time.Second,
		},
	}
}

func TestDockerProvisioner(t *testing.T) {
	// Skip in CI environments if docker is not available
	if os.Getenv("CI") != "" {
		t.Skip("Skipping docker test in CI environment")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	// reduce pool size for local test speed
	cfg.PoolSize = 1

	prov, err := docker.NewProvisioner(cfg, logger)
	require.NoError(t, err, "Should initialize docker provisioner without error")
	defer prov.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := prov.HealthCheck(pingCtx); err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}

	t.Run("successful execution", func(t *testing.T) {
		req := pythonRequest(`print("Hello from test sandbox!")`)

		out, err := executor.Supervise(context.Background(), prov, req, logger)
		assert.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Contains(t, out.Stdout, "Hello from test sandbox!")
		assert.Empty(t, out.Stderr)
		assert.Equal(t, executor.PhaseRun, out.Phase)
		assert.Greater(t, out.Duration, time.Duration(0))
	})

	t.Run("syntax error", func(t *testing.T) {
		req := pythonRequest(`print("Missing parenthesis"`)

		out, err := executor.Supervise(context.Background(), prov, req, logger)
		assert.NoError(t, err)
		assert.NotEqual(t, 0, out.ExitCode)
		assert.False(t, out.TimedOut)
		assert.Contains(t, out.Stderr, "SyntaxError")
		assert.Empty(t, out.Stdout)
	})

	t.Run("infinite loop timeout", func(t *testing.T) {
		req := pythonRequest(`while True: pass`)
		req.Limits.WallTime = 2 * time.Second

		out, err := executor.Supervise(context.Background(), prov, req, logger)
		assert.NoError(t, err)
		assert.True(t, out.TimedOut)
		assert.Equal(t, 124, out.ExitCode) // same convention as the unix timeout command
	})

	t.Run("stdin input", func(t *testing.T) {
		req := pythonRequest("import sys\nprint(sys.stdin.read().strip().upper())")
		req.Input = "hello\n"

		out, err := executor.Supervise(context.Background(), prov, req, logger)
		assert.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Contains(t, out.Stdout, "HELLO")
	})

	t.Run("multiline logic", func(t *testing.T) {
		req := pythonRequest(strings.Join([]string{
			"def fib(n):",
			"    if n <= 1: return n",
			"    return fib(n-1) + fib(n-2)",
			"print(fib(5))",
		}, "\n"))

		out, err := executor.Supervise(context.Background(), prov, req, logger)
		assert.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Contains(t, out.Stdout, "5")
	})

	t.Run("on-demand when warming disabled", func(t *testing.T) {
		cfg := docker.DefaultConfig()
		cfg.PoolSize = 0
		onDemand, err := docker.NewProvisioner(cfg, logger)
		require.NoError(t, err)
		defer onDemand.Close()

		out, err := executor.Supervise(context.Background(), onDemand, pythonRequest(`print("fresh container")`), logger)
		assert.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Contains(t, out.Stdout, "fresh container")
	})
}
