package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// FSBucket keeps objects as files in an afero filesystem.
type FSBucket struct {
	fs afero.Fs
}

// NewFSBucket wraps an existing filesystem.
func NewFSBucket(fsys afero.Fs) *FSBucket {
	return &FSBucket{fs: fsys}
}

// NewDirBucket stores objects under dir on the OS filesystem, creating it if needed.
func NewDirBucket(dir string) (*FSBucket, error) {
	if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir %s: %w", dir, err)
	}
	return NewFSBucket(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemBucket keeps objects in memory.
func NewMemBucket() *FSBucket {
	return NewFSBucket(afero.NewMemMapFs())
}

func (b *FSBucket) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (b *FSBucket) Put(_ context.Context, key string, data []byte) error {
	if dir := path.Dir(key); dir != "." && dir != "/" {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create object dir %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(b.fs, key, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	return nil
}
