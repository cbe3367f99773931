package capture

import (
	"context"

	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// Device acquires live camera streams.
type Device interface {
	// Open returns an active stream or an error wrapping ErrDeviceUnavailable.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera stream. Stop releases the hardware and must be
// safe to call more than once.
type Stream interface {
	// Frame returns the current frame encoded as an image.
	Frame(ctx context.Context) (scans.CapturedImage, error)
	Stop()
	Active() bool
}
