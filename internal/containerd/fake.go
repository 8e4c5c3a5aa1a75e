package containerd

import (
	"context"

	"github.com/scottyhq/scotty/internal/models"
)

// FakeClient is an in-memory Client for Discovery tests, keyed by compose
// project name.
type FakeClient struct {
	Projects map[string][]models.ContainerState
}

// NewFakeClient creates an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Projects: make(map[string][]models.ContainerState)}
}

func (f *FakeClient) ListProjectContainers(ctx context.Context, project string) ([]models.ContainerState, error) {
	return f.Projects[project], nil
}

func (f *FakeClient) Close() error { return nil }
