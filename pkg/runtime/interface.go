package runtime

import (
	"context"
)

// ContainerConfig is the desired state for a single container as received
// over the wire. Name is the sole identity used for reconciliation: an
// existing container with the same engine name is never re-created.
type ContainerConfig struct {
	Image       string            `json:"image"`
	Name        string            `json:"name"`
	Hostname    string            `json:"hostname,omitempty"`
	Domain      string            `json:"domain,omitempty"`
	Ports       []int             `json:"ports,omitempty"`
	Storage     []StorageMount    `json:"storage,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// StorageMount describes one bind mount. Host and Local are concatenated
// into the bind source string the engine receives.
type StorageMount struct {
	Host  string `json:"host"`
	Local string `json:"local"`
	RO    bool   `json:"ro"`
}

// Container is the engine-side view of a container returned by list calls.
// Names carries the engine's own name list verbatim, leading slash included.
type Container struct {
	ID    string
	Names []string
}

// Engine is the contract a container backend must implement. Exactly the
// operations the runner needs: list, create, start, plus connectivity
// checks for startup and health probing.
type Engine interface {
	ListContainers(ctx context.Context, all bool) ([]Container, error)
	CreateContainer(ctx context.Context, conf ContainerConfig) (string, error)
	StartContainer(ctx context.Context, containerID string) error

	Ping(ctx context.Context) error
	Close() error
}
