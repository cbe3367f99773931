package scanerrors

import (
	"context"
)

// Repository defines persistence for pipeline failures
type Repository interface {
	Save(ctx context.Context, f *ScanFailure) error
	ListByIdentity(ctx context.Context, identity string, limit int) ([]*ScanFailure, error)
}
