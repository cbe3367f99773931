package scans

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// CapturedImage is an encoded still image handed to the pipeline.
// It is never mutated after creation.
type CapturedImage struct {
	Data        []byte
	ContentType string
	// Filename is the original name for file selections; empty for camera captures.
	Filename string
}

// Validate checks the image carries bytes and an image content type.
func (c CapturedImage) Validate() error {
	if len(c.Data) == 0 {
		return errors.New("image is empty")
	}
	if !strings.HasPrefix(strings.ToLower(c.ContentType), "image/") {
		return errors.New("content type is not an image: " + c.ContentType)
	}
	return nil
}

// Extension returns the object extension without the dot. It is derived from
// the content type; the original filename is only consulted when the type is
// unknown.
func (c CapturedImage) Extension() string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(c.ContentType, ";", 2)[0]))
	if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Filename)), "."); safeExt(ext) {
		return ext
	}
	return "bin"
}

func safeExt(ext string) bool {
	if ext == "" || len(ext) > 5 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
