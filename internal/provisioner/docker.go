// Where: internal/provisioner/docker.go
// What: Docker client construction for local port discovery.
// Why: Keep the SDK options in one place and expose only ContainerList.
package provisioner

import (
	"fmt"

	"github.com/docker/docker/client"
)

// NewDockerClient connects to the Docker daemon described by the environment.
func NewDockerClient() (ContainerLister, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return dockerClient, nil
}
