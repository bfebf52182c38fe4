// Package config loads the engine configuration.
//
// Configuration comes from three layers, lowest precedence first:
//  1. Built-in defaults (viper.SetDefault below)
//  2. An optional config.yaml (searched in ., ./config and $HOME/.execbox)
//  3. Environment variables prefixed EXECBOX_ (dots become underscores,
//     e.g. EXECBOX_ENGINE_BACKEND=process). The bare PORT variable is also
//     honoured because every deployment platform sets it.
//
// A missing config file is fine — the defaults describe a working local
// setup. A present-but-broken file is a startup error.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    Server                      `mapstructure:"server"`
	Engine    Engine                      `mapstructure:"engine"`
	Docker    Docker                      `mapstructure:"docker"`
	Executor  Executor                    `mapstructure:"executor"`
	Languages map[string]LanguageOverride `mapstructure:"languages"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Engine holds the execution ceilings and the sandbox backend selection.
// The ceilings are engine-wide: caller-supplied values are clamped against
// them before any sandbox is provisioned.
type Engine struct {
	Backend          string `mapstructure:"backend"`            // "docker" or "process"
	MaxExecutionTime int    `mapstructure:"max_execution_time"` // ceiling, seconds
	DefaultTimeout   int    `mapstructure:"default_timeout"`    // applied when a request carries none
	MaxMemoryMB      int    `mapstructure:"max_memory_mb"`      // ceiling; profile limits are clamped to it
	MaxCodeSizeKB    int    `mapstructure:"max_code_size_kb"`
	WorkDir          string `mapstructure:"work_dir"` // process backend working areas; empty = os.TempDir
}

// Docker holds settings for the container backend.
type Docker struct {
	PoolSize int `mapstructure:"pool_size"` // warm containers kept per language image
}

// Executor configures the per-language executor service (cmd/executor).
type Executor struct {
	Language string `mapstructure:"language"`
}

// LanguageOverride adjusts one built-in language profile. Zero fields leave
// the built-in value untouched. Setting BackendURL routes the language to a
// remote executor service instead of the local sandbox.
type LanguageOverride struct {
	Disabled    bool    `mapstructure:"disabled"`
	Image       string  `mapstructure:"image"`
	BackendURL  string  `mapstructure:"backend_url"`
	MemoryMB    int     `mapstructure:"memory_mb"`
	CPU         float64 `mapstructure:"cpu"`
	CompileCmd  string  `mapstructure:"compile_cmd"`
	RunCmd      string  `mapstructure:"run_cmd"`
}

// Load reads and validates the configuration. path may be empty, in which
// case the usual search paths are consulted; a non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.execbox")
	}

	v.SetEnvPrefix("EXECBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Platforms inject the listen port as plain PORT; accept both spellings.
	_ = v.BindEnv("server.port", "EXECBOX_SERVER_PORT", "PORT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, continue with defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("engine.backend", "docker")
	v.SetDefault("engine.max_execution_time", 60)
	v.SetDefault("engine.default_timeout", 30)
	v.SetDefault("engine.max_memory_mb", 512)
	v.SetDefault("engine.max_code_size_kb", 50)
	v.SetDefault("engine.work_dir", "")

	v.SetDefault("docker.pool_size", 2)

	v.SetDefault("executor.language", "python")
}

// validate ensures the configuration is usable before anything is wired up.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if c.Engine.Backend != "docker" && c.Engine.Backend != "process" {
		return fmt.Errorf("unsupported engine.backend: %s, must be 'docker' or 'process'", c.Engine.Backend)
	}

	if c.Engine.MaxExecutionTime <= 0 {
		return fmt.Errorf("engine.max_execution_time must be positive, got: %d", c.Engine.MaxExecutionTime)
	}
	if c.Engine.DefaultTimeout <= 0 {
		return fmt.Errorf("engine.default_timeout must be positive, got: %d", c.Engine.DefaultTimeout)
	}
	if c.Engine.DefaultTimeout > c.Engine.MaxExecutionTime {
		return fmt.Errorf("engine.default_timeout (%d) exceeds engine.max_execution_time (%d)",
			c.Engine.DefaultTimeout, c.Engine.MaxExecutionTime)
	}
	if c.Engine.MaxMemoryMB <= 0 {
		return fmt.Errorf("engine.max_memory_mb must be positive, got: %d", c.Engine.MaxMemoryMB)
	}
	if c.Engine.MaxCodeSizeKB <= 0 {
		return fmt.Errorf("engine.max_code_size_kb must be positive, got: %d", c.Engine.MaxCodeSizeKB)
	}

	if c.Docker.PoolSize < 0 {
		return fmt.Errorf("docker.pool_size must not be negative, got: %d", c.Docker.PoolSize)
	}

	return nil
}
