// Package objectstore stores whole objects by key in S3, on a filesystem or in bolt.
package objectstore

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// Bucket reads and replaces whole objects.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
