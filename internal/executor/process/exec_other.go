//go:build !linux

package process

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sakif/execbox/internal/executor"
)

func platformSupported() error {
	return fmt.Errorf("process backend requires linux, running on %s", runtime.GOOS)
}

func (s *sandbox) exec(ctx context.Context, phase string, argv []string, input string, deadline time.Time) (*executor.Outcome, error) {
	return nil, platformSupported()
}
