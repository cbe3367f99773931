package storage

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/plantscan/internal/config"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// Backend is an object store that can report its own health.
type Backend interface {
	scans.ObjectStore
	Check(ctx context.Context) error
}

// NewFromConfig creates a Backend based on cfg.Type.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "minio":
		return NewMinio(ctx, cfg.Endpoint, cfg.Region, cfg.BucketName, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL, cfg.PublicBaseURL)
	case "s3":
		return NewS3(ctx, cfg.Endpoint, cfg.Region, cfg.BucketName, cfg.AccessKey, cfg.SecretKey, cfg.PublicBaseURL)
	case "azure":
		// AccessKey is the storage account name, SecretKey the account key.
		return NewAzure(cfg.AccessKey, cfg.SecretKey, cfg.BucketName, cfg.Endpoint, cfg.PublicBaseURL)
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

var (
	_ Backend = (*MinioStore)(nil)
	_ Backend = (*S3Store)(nil)
	_ Backend = (*AzureStore)(nil)
	_ Backend = (*MemoryStore)(nil)
)
