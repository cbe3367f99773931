// Package httpcam drives network cameras that serve a still JPEG per GET.
package httpcam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	domain "github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

const maxFrameBytes = 10 << 20

// Device picks a snapshot endpoint by facing.
type Device struct {
	snapshots map[domain.Facing]string
	client    *http.Client
}

// NewDevice builds a device from facing → snapshot URL.
func NewDevice(snapshots map[string]string, timeout time.Duration) *Device {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := make(map[domain.Facing]string, len(snapshots))
	for facing, u := range snapshots {
		if strings.TrimSpace(u) != "" {
			m[domain.Facing(strings.ToLower(facing))] = u
		}
	}
	return &Device{snapshots: m, client: &http.Client{Timeout: timeout}}
}

// Open tries the requested facing first, then any other configured camera.
// The first endpoint that answers a probe wins.
func (d *Device) Open(ctx context.Context, c domain.Constraints) (domain.Stream, error) {
	order := d.preference(c.Facing)
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: no camera configured", domain.ErrDeviceUnavailable)
	}

	var lastErr error
	for _, facing := range order {
		s := &stream{url: d.snapshots[facing], facing: facing, client: d.client}
		s.active.Store(true)
		if _, err := s.Frame(ctx); err != nil {
			lastErr = err
			continue
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, lastErr)
}

func (d *Device) preference(want domain.Facing) []domain.Facing {
	var order []domain.Facing
	if _, ok := d.snapshots[want]; ok {
		order = append(order, want)
	}
	rest := make([]domain.Facing, 0, len(d.snapshots))
	for f := range d.snapshots {
		if f != want {
			rest = append(rest, f)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(order, rest...)
}

type stream struct {
	url    string
	facing domain.Facing
	client *http.Client
	active atomic.Bool
}

func (s *stream) Frame(ctx context.Context) (scans.CapturedImage, error) {
	if !s.active.Load() {
		return scans.CapturedImage{}, fmt.Errorf("camera %s: stream stopped", s.facing)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return scans.CapturedImage{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return scans.CapturedImage{}, fmt.Errorf("camera %s: %w", s.facing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return scans.CapturedImage{}, fmt.Errorf("camera %s: snapshot returned %d", s.facing, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return scans.CapturedImage{}, fmt.Errorf("camera %s: %w", s.facing, err)
	}
	if len(data) > maxFrameBytes {
		return scans.CapturedImage{}, fmt.Errorf("camera %s: frame larger than %d bytes", s.facing, maxFrameBytes)
	}

	// content type comes from the bytes, not the header
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return scans.CapturedImage{}, fmt.Errorf("camera %s: %w (detected %s)", s.facing, domain.ErrNotAnImage, mt.String())
	}
	return scans.CapturedImage{Data: data, ContentType: mt.String()}, nil
}

func (s *stream) Stop()        { s.active.Store(false) }
func (s *stream) Active() bool { return s.active.Load() }
