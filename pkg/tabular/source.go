package tabular

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source is a restartable tabular resource. Each Open starts a new pass.
type Source interface {
	// Name identifies the resource in logs and errors
	Name() string

	// Open returns a reader positioned at the start of the data
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a delimited file from disk.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (f FileSource) Name() string {
	return f.Path
}

// Open opens the file for reading.
func (f FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	return file, nil
}

// Size reports the size of the file in bytes.
func (f FileSource) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
