package camera

import (
	"context"
	"errors"

	"github.com/okume/camassist/pkg/types"
)

// Facing selects which physical camera a session binds to.
type Facing string

const (
	FacingUser        Facing = "user"        // Front camera
	FacingEnvironment Facing = "environment" // Back camera
)

// Opposite returns the other facing mode.
func (f Facing) Opposite() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Valid reports whether f names a known facing mode.
func (f Facing) Valid() bool {
	return f == FacingUser || f == FacingEnvironment
}

var (
	// ErrPermissionDenied means the device refused access to the camera.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceUnavailable means the camera device could not be reached.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNoFrame means no frame has arrived since the session started.
	ErrNoFrame = errors.New("no frame available yet")
	// ErrNotActive means the controller has no bound stream.
	ErrNotActive = errors.New("camera not active")
	// ErrAlreadyActive means a stream is already bound.
	ErrAlreadyActive = errors.New("camera already active")
)

// Source delivers JPEG frames from one camera device. The returned channel
// closes when ctx is canceled or the device stops delivering.
type Source interface {
	Frames(ctx context.Context) (<-chan types.Frame, error)
}

// SourceFactory opens a Source for a facing mode at an ideal resolution.
// The controller goes through a factory so tests can substitute devices.
type SourceFactory func(facing Facing, idealWidth, idealHeight int) (Source, error)
