// Package docker implements the executor contracts on the Docker Engine
// API. Containers come from per-profile warm pools and are removed after a
// single run, timeout or not.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/execbox/internal/executor"
)

// Provisioner implements executor.Provisioner on the Docker Engine API.
type Provisioner struct {
	cli    *client.Client
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	images map[string]*imageState
	pools  map[string]*Pool
}

// imageState tracks the one-time warm-up of a single image. Pulls serialize
// on mu so concurrent first requests share one download; once ready flips,
// every later request passes on a single atomic load.
type imageState struct {
	mu    sync.Mutex
	ready atomic.Bool
}

// NewProvisioner creates the backend and initializes the daemon connection.
// Images are pulled and pools warmed lazily, on the first request that needs
// them, so startup does not depend on registry availability.
func NewProvisioner(cfg Config, logger *slog.Logger) (*Provisioner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if cfg.PoolSize < 0 {
		cfg.PoolSize = 0
	}
	return &Provisioner{
		cli:    cli,
		cfg:    cfg,
		logger: logger,
		images: make(map[string]*imageState),
		pools:  make(map[string]*Pool),
	}, nil
}

// Provision acquires a pre-warmed container for the request's profile and
// copies the code artifact into its working area.
func (p *Provisioner) Provision(ctx context.Context, req executor.Request) (executor.Sandbox, error) {
	switch {
	case len(req.RunCmd) == 0:
		return nil, fmt.Errorf("run command is required")
	case req.ArtifactName == "":
		return nil, fmt.Errorf("artifact name is required")
	case req.Limits.WallTime <= 0:
		return nil, fmt.Errorf("wall time limit is required")
	case req.Image == "":
		return nil, fmt.Errorf("container image is required")
	}

	if err := p.ensureImage(ctx, req.Image); err != nil {
		return nil, err
	}

	containerID, err := p.poolFor(req).GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire container: %w", err)
	}

	box := &sandbox{cli: p.cli, containerID: containerID, req: req, logger: p.logger}
	if err := box.copyArtifact(ctx); err != nil {
		// The container must not leak when provisioning fails halfway.
		if cerr := box.Close(); cerr != nil {
			p.logger.Warn("remove container after failed provision", "error", cerr)
		}
		return nil, err
	}
	return box, nil
}

// HealthCheck pings the daemon.
func (p *Provisioner) HealthCheck(ctx context.Context) error {
	_, err := p.cli.Ping(ctx)
	return err
}

// Close stops every pool and closes the client.
func (p *Provisioner) Close() error {
	p.mu.Lock()
	pools := make([]*Pool, 0, len(p.pools))
	for _, pool := range p.pools {
		pools = append(pools, pool)
	}
	p.pools = make(map[string]*Pool)
	p.mu.Unlock()

	for _, pool := range pools {
		pool.Stop()
	}
	return p.cli.Close()
}

// ensureImage pulls the image once per process lifetime. Failures are not
// cached, so the next request retries; a registry failure is forgiven when
// the image is already present locally.
func (p *Provisioner) ensureImage(ctx context.Context, img string) error {
	st := p.stateFor(img)
	if st.ready.Load() {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ready.Load() {
		// Another request finished the pull while this one waited.
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	p.logger.Info("ensuring docker image is available", slog.String("image", img))
	reader, err := p.cli.ImagePull(pullCtx, img, image.PullOptions{})
	if err != nil {
		if _, ierr := p.cli.ImageInspect(ctx, img); ierr == nil {
			st.ready.Store(true)
			return nil
		}
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	p.logger.Info("docker image is ready", slog.String("image", img))

	st.ready.Store(true)
	return nil
}

func (p *Provisioner) stateFor(img string) *imageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.images[img]
	if !ok {
		st = &imageState{}
		p.images[img] = st
	}
	return st
}

func (p *Provisioner) poolFor(req executor.Request) *Pool {
	spec := poolSpec{
		image:    req.Image,
		memory:   req.Limits.MemoryBytes,
		nanoCPUs: int64(req.Limits.CPU * 1e9),
	}
	key := fmt.Sprintf("%s|%d|%d", spec.image, spec.memory, spec.nanoCPUs)

	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[key]
	if !ok {
		pool = NewPool(p.cli, spec, p.cfg.PoolSize, p.logger)
		pool.Start()
		p.pools[key] = pool
	}
	return pool
}

type sandbox struct {
	cli         *client.Client
	containerID string
	req         executor.Request
	logger      *slog.Logger
}

// copyArtifact streams the code into the container working area as a tar
// archive, the only write path the Engine API offers.
func (s *sandbox) copyArtifact(ctx context.Context) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: s.req.ArtifactName,
		Mode: 0o644,
		Size: int64(len(s.req.Code)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write([]byte(s.req.Code)); err != nil {
		return fmt.Errorf("write tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	if err := s.cli.CopyToContainer(ctx, s.containerID, workDir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy artifact into container: %w", err)
	}
	return nil
}

// Run executes the compile phase when present, then the run phase, as
// separate execs in the same container. Both phases share one wall clock
// budget; a compile that exhausts it or exits nonzero short-circuits the
// run.
func (s *sandbox) Run(ctx context.Context) (*executor.Outcome, error) {
	deadline := time.Now().Add(s.req.Limits.WallTime)

	if len(s.req.CompileCmd) > 0 {
		out, err := s.execPhase(ctx, executor.PhaseCompile, s.req.CompileCmd, "", deadline)
		if err != nil || out.ExitCode != 0 || out.TimedOut {
			return out, err
		}
	}
	return s.execPhase(ctx, executor.PhaseRun, s.req.RunCmd, s.req.Input, deadline)
}

// Close force-removes the container. This is also what tears down a payload
// that is still running after a timeout.
func (s *sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container %s: %w", s.containerID, err)
	}
	return nil
}

func (s *sandbox) execPhase(ctx context.Context, phase string, argv []string, input string, deadline time.Time) (*executor.Outcome, error) {
	budget := time.Until(deadline)
	if budget <= 0 {
		return &executor.Outcome{ExitCode: executor.TimeoutExitCode, TimedOut: true, Phase: phase}, nil
	}

	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	execResp, err := s.cli.ContainerExecCreate(execCtx, s.containerID, container.ExecOptions{
		AttachStdin:  input != "",
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   workDir,
		Env:          executor.ExpandEnv(s.req.Env, workDir),
		Cmd:          argv,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := s.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach to exec: %w", err)
	}
	defer attachResp.Close()

	if input != "" {
		go func() {
			_, _ = io.Copy(attachResp.Conn, strings.NewReader(input))
			_ = attachResp.CloseWrite()
		}()
	}

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// Use stdcopy to demultiplex stdout from stderr
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	select {
	case <-done:
	case <-execCtx.Done():
		// The copy goroutine may still be writing, so the buffers stay
		// untouched; the caller supplies the canonical timeout message.
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return &executor.Outcome{
				ExitCode: executor.TimeoutExitCode,
				TimedOut: true,
				Phase:    phase,
				Duration: time.Since(start),
			}, nil
		}
		return nil, execCtx.Err()
	}

	inspectResp, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	return &executor.Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspectResp.ExitCode,
		Phase:    phase,
		Duration: time.Since(start),
	}, nil
}
