package runner

import (
	"errors"
	"fmt"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
)

// StartFailureReason is the closed set of reasons a container run can fail.
type StartFailureReason string

const (
	StoragePathDoesNotExist StartFailureReason = "storage_path_does_not_exist"
	ImageDoesNotExist       StartFailureReason = "image_does_not_exist"
	PortBindFailure         StartFailureReason = "port_bind_failure"
	PermissionDenied        StartFailureReason = "permission_denied"
	Other                   StartFailureReason = "other"
)

// RunError is the typed result of a failed reconciliation. Message carries
// the engine-provided diagnostic where one is available.
type RunError struct {
	Reason  StartFailureReason `json:"reason"`
	Message string             `json:"message"`
}

func (e *RunError) Error() string {
	if e.Reason == PermissionDenied {
		return fmt.Sprintf("permission denied communicating with the container engine: %s", e.Message)
	}
	return fmt.Sprintf("container run failed (%s): %s", e.Reason, e.Message)
}

// Classify maps an engine error into the failure taxonomy. The permission
// rule matches on the root cause's rendered text, case-insensitively, and
// wins over everything else. The remaining rules key on the daemon's
// structured error categories and message markers; whatever matches no
// rule falls back to Other with the original text preserved.
func Classify(err error) *RunError {
	cause := rootCause(err)
	text := cause.Error()
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "permission denied"),
		cerrdefs.IsPermissionDenied(err):
		return &RunError{Reason: PermissionDenied, Message: text}
	case strings.Contains(lower, "no such image"),
		cerrdefs.IsNotFound(err) && strings.Contains(lower, "image"):
		return &RunError{Reason: ImageDoesNotExist, Message: text}
	case strings.Contains(lower, "bind source path does not exist"):
		return &RunError{Reason: StoragePathDoesNotExist, Message: text}
	case strings.Contains(lower, "port is already allocated"),
		strings.Contains(lower, "address already in use"):
		return &RunError{Reason: PortBindFailure, Message: text}
	default:
		return &RunError{Reason: Other, Message: text}
	}
}

// rootCause walks the wrap chain to the innermost error. An unwrapped
// error is its own root cause.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
