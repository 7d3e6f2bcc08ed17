package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "linkreview/internal/infra/blob/fs"
	memorystore "linkreview/internal/infra/blob/memory"
	s3store "linkreview/internal/infra/blob/s3"
)

// Environment configuration for the blob layer.
const (
	EnvBlobDriver = "LINKREVIEW_BLOB_DRIVER"
	EnvBlobFSRoot = "LINKREVIEW_BLOB_FS_ROOT"
)

// Open selects a blob Store implementation using environment variables.
//
//	LINKREVIEW_BLOB_DRIVER: fs|s3|memory (default fs)
//	LINKREVIEW_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3-specific variables documented in the s3 driver package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv(EnvBlobDriver)
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvBlobFSRoot))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at the given path.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// S3Config re-exports the S3 driver configuration.
type S3Config = s3store.Config

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}
