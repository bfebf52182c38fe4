package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
)

// poolSpec pins the container parameters one pool warms. Profiles sharing
// an image but differing in limits get separate pools.
type poolSpec struct {
	image    string
	memory   int64
	nanoCPUs int64
}

// Pool manages pre-warmed containers for one language profile so execution
// never waits on a container boot.
type Pool struct {
	cli        *client.Client
	spec       poolSpec
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startDone  sync.Once
}

// NewPool initializes a new container pool wrapper.
func NewPool(cli *client.Client, spec poolSpec, size int, logger *slog.Logger) *Pool {
	return &Pool{
		cli:        cli,
		spec:       spec,
		logger:     logger,
		containers: make(chan string, size),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool with fresh containers in the background.
// A zero-capacity pool never warms; GetContainer then creates per request.
func (p *Pool) Start() {
	if cap(p.containers) == 0 {
		return
	}
	p.startDone.Do(func() {
		p.logger.Info("starting container pool",
			slog.String("image", p.spec.image),
			slog.Int("poolSize", cap(p.containers)))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and cleans up all pre-warmed containers.
func (p *Pool) Stop() {
	p.logger.Info("shutting down container pool", slog.String("image", p.spec.image))
	close(p.done)
	p.wg.Wait()

	// Drain channel and remove surviving containers
	for {
		select {
		case id := <-p.containers:
			p.removeContainer(id)
		default:
			return
		}
	}
}

// GetContainer returns a ready-to-use container ID, pre-warmed when the pool
// has capacity, freshly created otherwise. It blocks until one is available
// or the context is canceled.
func (p *Pool) GetContainer(ctx context.Context) (string, error) {
	if cap(p.containers) == 0 {
		return p.createContainer()
	}
	select {
	case id := <-p.containers:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manager continuously ensures the pool is at capacity.
func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
			// Ensure we only try to create a container if there's room in the channel
			if len(p.containers) < cap(p.containers) {
				id, err := p.createContainer()
				if err != nil {
					p.logger.Error("failed to create pre-warmed container",
						slog.String("image", p.spec.image),
						slog.String("error", err.Error()))
					time.Sleep(1 * time.Second) // backoff on failure
					continue
				}

				// Try to push to channel, or delete if shutting down
				select {
				case p.containers <- id:
					// Successfully added to pool
				case <-p.done:
					// Shutting down while trying to push
					p.removeContainer(id)
					return
				}
			} else {
				// Pool is full, wait a bit
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

// createContainer starts a container parked on `sleep infinity`. The root
// filesystem is read-only; the working area and /tmp are small tmpfs mounts
// so compiled artifacts have somewhere to land.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	pidsLimit := int64(128)
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    p.spec.memory,
			NanoCPUs:  p.spec.nanoCPUs,
			PidsLimit: &pidsLimit,
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
		CapDrop:        strslice.StrSlice{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		Tmpfs: map[string]string{
			workDir: "rw,exec,nosuid,size=256m",
			"/tmp":  "rw,noexec,nosuid,size=16m",
		},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:        p.spec.image,
		Cmd:          []string{"sleep", "infinity"},
		WorkingDir:   workDir,
		Tty:          false,
		AttachStdout: false,
		AttachStderr: false,
		User:         "nobody",
	}, hostConfig, nil, nil, "")

	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeContainer(resp.ID) // Cleanup
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// removeContainer force removes a container by ID.
func (p *Pool) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	_ = p.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force: true,
	})
}
