// Package storage is the blob backend used for product images.
//
// Two drivers are available:
//   - "local": local filesystem served under STORAGE_URL
//   - "s3":    S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
// Blob storage is optional. Open("none") returns a nil Disk and callers are
// expected to degrade (placeholder image URLs) rather than fail.
//
//	disk, err := storage.Open(ctx, config.StorageDefault())
//	err = disk.Put(ctx, "product-images/1700000000000_lamp.jpg", r, size, "image/jpeg")
//	url := disk.URL("product-images/1700000000000_lamp.jpg")
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/shashiranjanraj/campusmart/config"
)

// Disk is the blob driver interface.
type Disk interface {
	// Put uploads size bytes from r to path.
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error

	// Delete removes path. Returns nil if it did not exist.
	Delete(ctx context.Context, path string) error

	// URL returns the public download URL for path.
	URL(path string) string
}

// Open returns the disk named by driver: "local", "s3", or "none" (nil disk).
func Open(ctx context.Context, driver string) (Disk, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "local":
		d, err := NewLocal(config.StorageLocalRoot(), config.StorageURL())
		if err != nil {
			return nil, err
		}
		return d, nil
	case "s3":
		d, err := NewS3(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
