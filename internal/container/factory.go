package container

import (
	"fmt"

	"ignition/internal/config"
	"ignition/pkg/runtime"
)

// Platform identifies a container engine backend.
type Platform string

const (
	PlatformDocker Platform = "docker"
)

// CreateEngine selects the engine backend from configuration. Docker is
// the only implemented platform; anything else is a startup configuration
// error, not a crash at request time.
func CreateEngine(cfg *config.Config) (runtime.Engine, error) {
	switch Platform(cfg.Server.Platform) {
	case PlatformDocker:
		return NewDockerEngine(cfg.Server.SocketPath)
	default:
		return nil, fmt.Errorf("unsupported container platform: %q", cfg.Server.Platform)
	}
}
