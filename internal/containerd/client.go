// Package containerd inspects the local container runtime on behalf of
// the Discovery loop (C7): for a compose project, list its containers and
// normalize each into a models.ContainerState. Deliberately trimmed
// relative to the full docker/docker SDK surface — no stats, images,
// networks, volumes, or log demuxing, since Discovery only ever needs
// "what services exist and are they running".
package containerd

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/scottyhq/scotty/internal/models"
)

// composeProjectLabel and composeServiceLabel are the labels `docker
// compose` attaches to every container it creates.
const (
	composeProjectLabel = "com.docker.compose.project"
	composeServiceLabel = "com.docker.compose.service"
)

// Client is the trimmed container-runtime surface Discovery needs.
type Client interface {
	// ListProjectContainers returns one ContainerState per container
	// belonging to the named compose project.
	ListProjectContainers(ctx context.Context, project string) ([]models.ContainerState, error)
	Close() error
}

// sdkClient implements Client against a real Docker Engine API endpoint.
type sdkClient struct {
	cli *client.Client
}

// NewClient connects to the Docker Engine using the standard
// DOCKER_HOST/DOCKER_CERT_PATH environment, matching spec §6's "local
// docker API (socket / tcp, per connection option)".
func NewClient() (Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to container runtime: %w", err)
	}
	return &sdkClient{cli: cli}, nil
}

func (c *sdkClient) Close() error {
	return c.cli.Close()
}

func (c *sdkClient) ListProjectContainers(ctx context.Context, project string) ([]models.ContainerState, error) {
	f := filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+project))
	summaries, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("list containers for project %q: %w", project, err)
	}

	states := make([]models.ContainerState, 0, len(summaries))
	for _, s := range summaries {
		detail, err := c.cli.ContainerInspect(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("inspect container %q: %w", s.ID, err)
		}

		var startedAt *time.Time
		if detail.State != nil && detail.State.StartedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, detail.State.StartedAt); err == nil && !t.IsZero() {
				startedAt = &t
			}
		}

		image := s.Image
		if detail.Config != nil && detail.Config.Image != "" {
			image = detail.Config.Image
		}

		states = append(states, models.ContainerState{
			Service:   s.Labels[composeServiceLabel],
			Image:     image,
			Status:    models.NormalizeDockerState(s.State),
			StartedAt: startedAt,
			Ports:     toContainerPorts(s.Ports),
		})
	}
	return states, nil
}

func toContainerPorts(ports []container.Port) []models.ContainerPort {
	out := make([]models.ContainerPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, models.ContainerPort{
			HostPort:      p.PublicPort,
			ContainerPort: p.PrivatePort,
			Protocol:      p.Type,
		})
	}
	return out
}
