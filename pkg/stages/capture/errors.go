package capture

import (
	"errors"
	"fmt"

	"github.com/user/camlab/pkg/ports"
)

var (
	// ErrPermissionDenied is matched by every NoAccessError.
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrNoDevice is returned when no camera of any fallback type is available.
	ErrNoDevice = errors.New("capture: no capture device available")

	// ErrNotConfigured is returned by operations that need a committed session.
	ErrNotConfigured = errors.New("capture: session not configured")

	// ErrConfigurationInProgress is returned by BeginConfiguration inside an open bracket.
	ErrConfigurationInProgress = errors.New("capture: configuration already in progress")

	// ErrInvalidConfiguration is returned by CommitConfiguration for unusable settings.
	ErrInvalidConfiguration = errors.New("capture: invalid configuration")
)

// NoAccessError reports that access to a capture medium was not granted.
type NoAccessError struct {
	Media ports.MediaType
	Err   error // Authorizer failure, nil for a plain denial
}

func (e *NoAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: no %s access: %v", e.Media, e.Err)
	}
	return fmt.Sprintf("capture: no %s access", e.Media)
}

// Unwrap lets errors.Is match ErrPermissionDenied and the authorizer error.
func (e *NoAccessError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPermissionDenied, e.Err}
	}
	return []error{ErrPermissionDenied}
}
