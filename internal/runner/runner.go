package runner

import (
	"context"

	"github.com/rs/zerolog/log"

	"ignition/pkg/runtime"
)

// Runner drives the engine toward a desired container configuration: find
// by name, create if absent, start. It holds no state of its own; the only
// shared mutable state lives inside the daemon. Two concurrent runs for
// the same name can race between find and create, in which case the second
// create fails and is surfaced as a typed error.
type Runner struct {
	engine runtime.Engine
}

// New creates a runner on top of an engine backend.
func New(engine runtime.Engine) *Runner {
	return &Runner{engine: engine}
}

// RunContainer reconciles one configuration: an existing container with
// the same name is started as-is, otherwise one is created first. Any
// engine failure short-circuits the sequence and comes back as *RunError.
func (r *Runner) RunContainer(ctx context.Context, conf runtime.ContainerConfig) error {
	containerID, found, err := r.findContainer(ctx, conf)
	if err != nil {
		return Classify(err)
	}

	if !found {
		containerID, err = r.engine.CreateContainer(ctx, conf)
		if err != nil {
			return Classify(err)
		}
	} else {
		// TODO decide what to do when the name matches but the container
		// runs a different image, or is already running.
		log.Debug().Str("name", conf.Name).Str("id", containerID).Msg("Container already exists, skipping create")
	}

	if err := r.engine.StartContainer(ctx, containerID); err != nil {
		return Classify(err)
	}

	log.Info().Str("name", conf.Name).Str("id", containerID).Msg("Container running")
	return nil
}

// findContainer looks up the engine-qualified name (leading slash, the
// engine's own convention) in the full container set, stopped ones
// included.
func (r *Runner) findContainer(ctx context.Context, conf runtime.ContainerConfig) (string, bool, error) {
	containers, err := r.engine.ListContainers(ctx, true)
	if err != nil {
		return "", false, err
	}

	engineName := "/" + conf.Name
	for _, c := range containers {
		for _, name := range c.Names {
			if name == engineName {
				return c.ID, true, nil
			}
		}
	}

	return "", false, nil
}
