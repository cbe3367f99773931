package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	domain "github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// Controller drives one camera through Idle -> Capturing -> Captured.
// It holds at most one stream, and every transition out of Capturing stops
// that stream exactly once. Close must be called when the owner goes away.
type Controller struct {
	device      domain.Device
	constraints domain.Constraints
	log         logrus.FieldLogger

	mu     sync.Mutex
	state  domain.State
	stream domain.Stream
	image  *scans.CapturedImage
}

// NewController returns an idle controller preferring the environment-facing camera.
func NewController(device domain.Device, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{
		device:      device,
		constraints: domain.Constraints{Facing: domain.FacingEnvironment},
		log:         log,
	}
}

// State returns the current state.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires a stream. From Captured the held image is discarded.
// A device failure leaves the controller Idle and wraps domain.ErrDeviceUnavailable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.StateCapturing {
		return domain.ErrAlreadyCapturing
	}
	c.image = nil
	c.state = domain.StateIdle

	stream, err := c.device.Open(ctx, c.constraints)
	if err != nil {
		c.log.WithError(err).Warn("camera unavailable")
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	c.stream = stream
	c.state = domain.StateCapturing
	c.log.Debug("camera stream started")
	return nil
}

// Preview returns the live frame while Capturing.
func (c *Controller) Preview(ctx context.Context) (scans.CapturedImage, error) {
	c.mu.Lock()
	stream := c.stream
	state := c.state
	c.mu.Unlock()

	if state != domain.StateCapturing || stream == nil {
		return scans.CapturedImage{}, fmt.Errorf("%w: preview in state %s", domain.ErrInvalidState, state)
	}
	return stream.Frame(ctx)
}

// Capture takes one still frame, releases the stream and moves to Captured.
// If the frame cannot be read the stream stays active so the caller may retry or Stop.
// The frame is read without holding the lock, so Close and State stay responsive;
// a capture overtaken by Stop or Close returns domain.ErrInvalidState.
func (c *Controller) Capture(ctx context.Context) (scans.CapturedImage, error) {
	c.mu.Lock()
	if c.state != domain.StateCapturing || c.stream == nil {
		state := c.state
		c.mu.Unlock()
		return scans.CapturedImage{}, fmt.Errorf("%w: capture in state %s", domain.ErrInvalidState, state)
	}
	stream := c.stream
	c.mu.Unlock()

	img, err := stream.Frame(ctx)
	if err == nil {
		err = img.Validate()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateCapturing || c.stream != stream {
		return scans.CapturedImage{}, fmt.Errorf("%w: capture interrupted, now %s", domain.ErrInvalidState, c.state)
	}
	if err != nil {
		return scans.CapturedImage{}, fmt.Errorf("reading frame: %w", err)
	}
	c.release()
	c.image = &img
	c.state = domain.StateCaptured
	return img, nil
}

// Image returns the held capture while Captured.
func (c *Controller) Image() (scans.CapturedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image == nil {
		return scans.CapturedImage{}, false
	}
	return *c.image, true
}

// Retake discards the held capture and returns to Idle.
func (c *Controller) Retake() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.StateCaptured {
		return fmt.Errorf("%w: retake in state %s", domain.ErrInvalidState, c.state)
	}
	c.image = nil
	c.state = domain.StateIdle
	return nil
}

// Stop cancels an active capture and returns to Idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.StateCapturing {
		return fmt.Errorf("%w: stop in state %s", domain.ErrInvalidState, c.state)
	}
	c.release()
	c.state = domain.StateIdle
	return nil
}

// Close is the teardown hook. It releases a live stream if there is one and
// is safe to call in any state, any number of times.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.StateCapturing {
		c.release()
		c.state = domain.StateIdle
	}
	return nil
}

// release must be called with mu held.
func (c *Controller) release() {
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream = nil
	c.log.Debug("camera stream released")
}
