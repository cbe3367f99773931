package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	domain "github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// MaxImageBytes caps a selected file.
const MaxImageBytes = 10 << 20

// Preview is a selected file plus a local, renderable copy of it.
type Preview struct {
	Path  string
	Image scans.CapturedImage
}

// FileSource produces images from user-selected files. Only the latest
// selection keeps a preview on disk.
type FileSource struct {
	dir string

	mu      sync.Mutex
	current *Preview
}

// NewFileSource writes previews under dir; an empty dir means os.TempDir().
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Select reads and validates a file, writes its preview and drops the previous one.
func (f *FileSource) Select(name string, r io.Reader) (*Preview, error) {
	img, err := ReadImage(name, r)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(f.dir, "preview-*."+img.Extension())
	if err != nil {
		return nil, fmt.Errorf("creating preview: %w", err)
	}
	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing preview: %w", err)
	}

	p := &Preview{Path: tmp.Name(), Image: img}

	f.mu.Lock()
	prev := f.current
	f.current = p
	f.mu.Unlock()

	if prev != nil {
		os.Remove(prev.Path)
	}
	return p, nil
}

// Current returns the latest selection.
func (f *FileSource) Current() (*Preview, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.current != nil
}

// Close removes the last preview.
func (f *FileSource) Close() error {
	f.mu.Lock()
	p := f.current
	f.current = nil
	f.mu.Unlock()

	if p == nil {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadImage reads at most MaxImageBytes and sniffs the content type from the bytes.
func ReadImage(name string, r io.Reader) (scans.CapturedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return scans.CapturedImage{}, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxImageBytes {
		return scans.CapturedImage{}, fmt.Errorf("%s is larger than %d bytes", name, MaxImageBytes)
	}
	ct, err := ValidateImage(data)
	if err != nil {
		return scans.CapturedImage{}, fmt.Errorf("%s: %w", name, err)
	}
	return scans.CapturedImage{Data: data, ContentType: ct, Filename: filepath.Base(name)}, nil
}

// ValidateImage returns the detected image content type or domain.ErrNotAnImage.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrNotAnImage
	}
	m := mimetype.Detect(data)
	if !strings.HasPrefix(m.String(), "image/") {
		return "", fmt.Errorf("%w (detected %s)", domain.ErrNotAnImage, m.String())
	}
	return m.String(), nil
}
