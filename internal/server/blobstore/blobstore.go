// Package blobstore issues short-lived URLs for the encrypted blobs and
// deletes them. Backends: S3 (aws-sdk-go-v2) and MinIO (minio-go).
package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
)

// Store is the object-storage surface the engine depends on.
type Store interface {
	PutURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	GetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, key string) error

	IsReady(ctx context.Context) error
	Name() string
}

func storageErr(op, key string, err error) error {
	return fmt.Errorf("%s %q: %w: %w", op, key, common.ErrStorage, err)
}
