package container

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"

	"ignition/pkg/runtime"
)

// DockerEngine implements the Engine interface against the Docker daemon.
// A single instance is shared by all requests; the underlying client is
// safe for concurrent use.
type DockerEngine struct {
	client *client.Client
}

// NewDockerEngine creates a Docker engine backend. An empty socketPath
// defers to the client's environment defaults (DOCKER_HOST et al).
func NewDockerEngine(socketPath string) (*DockerEngine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if socketPath != "" {
		opts = append(opts, client.WithHost(socketPath))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &DockerEngine{client: cli}, nil
}

// ListContainers returns the daemon's container set. Name lists are passed
// through verbatim, leading slash included; matching is the caller's job.
func (d *DockerEngine) ListContainers(ctx context.Context, all bool) ([]runtime.Container, error) {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, err
	}

	result := make([]runtime.Container, 0, len(containers))
	for _, c := range containers {
		result = append(result, runtime.Container{
			ID:    c.ID,
			Names: c.Names,
		})
	}

	return result, nil
}

// CreateContainer translates the desired state into engine create options
// and creates the container. No retries, one round trip.
func (d *DockerEngine) CreateContainer(ctx context.Context, conf runtime.ContainerConfig) (string, error) {
	resp, err := d.client.ContainerCreate(ctx, buildConfig(conf), buildHostConfig(conf), nil, nil, conf.Name)
	if err != nil {
		return "", err
	}

	log.Info().Str("id", resp.ID).Str("name", conf.Name).Str("image", conf.Image).Msg("Container created")
	return resp.ID, nil
}

// StartContainer starts a container with default start options.
func (d *DockerEngine) StartContainer(ctx context.Context, containerID string) error {
	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return err
	}

	log.Info().Str("id", containerID).Msg("Container started")
	return nil
}

// Ping checks daemon connectivity.
func (d *DockerEngine) Ping(ctx context.Context) error {
	_, err := d.client.Ping(ctx)
	return err
}

// Close releases the client connection.
func (d *DockerEngine) Close() error {
	return d.client.Close()
}

// buildConfig maps desired state onto the engine container config.
// Environment entries are flattened to KEY=VALUE strings, order not
// significant. Hostname and domain pass through verbatim.
func buildConfig(conf runtime.ContainerConfig) *container.Config {
	var env []string
	for k, v := range conf.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	var exposedPorts nat.PortSet
	if len(conf.Ports) > 0 {
		exposedPorts = make(nat.PortSet)
		for _, port := range conf.Ports {
			exposedPorts[nat.Port(fmt.Sprintf("%d/tcp", port))] = struct{}{}
		}
	}

	return &container.Config{
		Image:        conf.Image,
		Env:          env,
		Hostname:     conf.Hostname,
		Domainname:   conf.Domain,
		ExposedPorts: exposedPorts,
	}
}

// buildHostConfig maps storage mounts and ports onto the engine host
// config. Each mount's host and local paths are concatenated into one
// bind source string, with a :ro suffix when the mount is read-only.
// Ports are published 1:1, host port N to container port N.
func buildHostConfig(conf runtime.ContainerConfig) *container.HostConfig {
	var binds []string
	for _, vol := range conf.Storage {
		bind := vol.Host + vol.Local
		if vol.RO {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	var portBindings nat.PortMap
	if len(conf.Ports) > 0 {
		portBindings = make(nat.PortMap)
		for _, port := range conf.Ports {
			containerPort := nat.Port(fmt.Sprintf("%d/tcp", port))
			portBindings[containerPort] = []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", port)},
			}
		}
	}

	return &container.HostConfig{
		Binds:        binds,
		PortBindings: portBindings,
	}
}
