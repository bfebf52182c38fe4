package docker

import (
	"time"
)

// Config holds the tunables for the container backend.
type Config struct {
	// PoolSize is the number of pre-warmed containers kept per language
	// profile. Zero disables warming and creates containers on demand.
	PoolSize int
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize: 2,
	}
}

// workDir is the writable working area inside every sandbox container. The
// rest of the filesystem is read-only.
const workDir = "/work"

const (
	pullTimeout   = 2 * time.Minute
	createTimeout = 10 * time.Second
	removeTimeout = 5 * time.Second
)
