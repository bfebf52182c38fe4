package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Run from a scratch directory so a developer's local config.yaml
	// cannot leak into the test.
	restore := chdir(t, t.TempDir())
	defer restore()
	t.Setenv("PORT", "") // CI platforms set PORT; viper ignores empty values

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.Backend != "docker" {
		t.Errorf("default backend = %q, want docker", cfg.Engine.Backend)
	}
	if cfg.Engine.MaxExecutionTime != 60 {
		t.Errorf("default max_execution_time = %d, want 60", cfg.Engine.MaxExecutionTime)
	}
	if cfg.Engine.DefaultTimeout != 30 {
		t.Errorf("default default_timeout = %d, want 30", cfg.Engine.DefaultTimeout)
	}
	if cfg.Engine.MaxMemoryMB != 512 {
		t.Errorf("default max_memory_mb = %d, want 512", cfg.Engine.MaxMemoryMB)
	}
	if cfg.Engine.MaxCodeSizeKB != 50 {
		t.Errorf("default max_code_size_kb = %d, want 50", cfg.Engine.MaxCodeSizeKB)
	}
	if cfg.Executor.Language != "python" {
		t.Errorf("default executor language = %q, want python", cfg.Executor.Language)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: 9090
engine:
  backend: process
  default_timeout: 10
languages:
  go:
    backend_url: http://go-executor:8005
  rust:
    disabled: true
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", path, err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Engine.Backend != "process" {
		t.Errorf("backend = %q, want process", cfg.Engine.Backend)
	}
	if cfg.Engine.DefaultTimeout != 10 {
		t.Errorf("default_timeout = %d, want 10", cfg.Engine.DefaultTimeout)
	}
	// Untouched values keep their defaults
	if cfg.Engine.MaxExecutionTime != 60 {
		t.Errorf("max_execution_time = %d, want default 60", cfg.Engine.MaxExecutionTime)
	}

	goLang, ok := cfg.Languages["go"]
	if !ok {
		t.Fatalf("expected languages.go override to be present")
	}
	if goLang.BackendURL != "http://go-executor:8005" {
		t.Errorf("go backend_url = %q", goLang.BackendURL)
	}
	if !cfg.Languages["rust"].Disabled {
		t.Errorf("expected rust to be disabled")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown backend",
			content: "engine:\n  backend: chroot\n",
		},
		{
			name:    "negative timeout",
			content: "engine:\n  default_timeout: -5\n",
		},
		{
			name:    "default above ceiling",
			content: "engine:\n  max_execution_time: 10\n  default_timeout: 30\n",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: 123456\n",
		},
		{
			name:    "negative pool size",
			content: "docker:\n  pool_size: -1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	restore := chdir(t, t.TempDir())
	defer restore()

	t.Setenv("EXECBOX_ENGINE_BACKEND", "process")
	t.Setenv("PORT", "3000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Backend != "process" {
		t.Errorf("backend = %q, want process from env", cfg.Engine.Backend)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000 from PORT env", cfg.Server.Port)
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() { _ = os.Chdir(old) }
}
