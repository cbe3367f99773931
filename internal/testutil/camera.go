package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// FakeDevice hands out FakeStreams and counts how many are live.
type FakeDevice struct {
	mu sync.Mutex
	// OpenErr, when set, fails Open.
	OpenErr error
	// Frame is what every stream returns.
	Frame scans.CapturedImage
	// FrameErr, when set, fails Frame.
	FrameErr error
	// FrameGate, when set, holds every Frame call until it is closed.
	// FrameStarted receives one value per call that reached the gate.
	FrameGate    chan struct{}
	FrameStarted chan struct{}

	Opened  []*FakeStream
	LastReq capture.Constraints
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{Frame: PNGImage()}
}

func (d *FakeDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastReq = c
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &FakeStream{dev: d, active: true}
	d.Opened = append(d.Opened, s)
	return s, nil
}

// SetFrameErr changes FrameErr while streams may be reading.
func (d *FakeDevice) SetFrameErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FrameErr = err
}

// ActiveStreams returns how many opened streams have not been stopped.
func (d *FakeDevice) ActiveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.Opened {
		if s.Active() {
			n++
		}
	}
	return n
}

// FakeStream counts Stop calls.
type FakeStream struct {
	dev *FakeDevice

	mu     sync.Mutex
	active bool
	Stops  int
}

func (s *FakeStream) Frame(ctx context.Context) (scans.CapturedImage, error) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return scans.CapturedImage{}, errors.New("stream stopped")
	}

	s.dev.mu.Lock()
	gate, started := s.dev.FrameGate, s.dev.FrameStarted
	s.dev.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return scans.CapturedImage{}, ctx.Err()
		}
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.dev.FrameErr != nil {
		return scans.CapturedImage{}, s.dev.FrameErr
	}
	return s.dev.Frame, nil
}

func (s *FakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stops++
	s.active = false
}

func (s *FakeStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StopCount returns how many times Stop was called.
func (s *FakeStream) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Stops
}
