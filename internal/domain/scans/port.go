package scans

import (
	"context"
	"io"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Insert(ctx context.Context, r *ScanRecord) error
	// Get returns ErrNotFound when the identity owns no such record.
	Get(ctx context.Context, identity Identity, id ScanID) (*ScanRecord, error)
	// ListByIdentity returns records newest first.
	ListByIdentity(ctx context.Context, identity Identity, opts ListOptions) ([]*ScanRecord, error)
	Delete(ctx context.Context, identity Identity, id ScanID) error
	Summary(ctx context.Context, identity Identity, since time.Time) (Summary, error)
}

// ObjectStore port (interface untuk penyimpanan gambar)
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// PublicURL is pure: it never talks to the backend.
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// Analyzer port for the remote analysis function
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (AnalysisResult, error)
}
