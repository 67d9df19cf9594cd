package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stages files that already live on this machine, typically written
// by the upload handler before a job starts.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Fetch(ctx context.Context, reference string, destDir string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	src, err := os.Open(reference)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return "", 0, &TransferError{Reference: reference, Err: err}
	}
	defer src.Close()

	localPath := filepath.Join(destDir, filepath.Base(reference))
	size, err := copyToFile(localPath, src)
	if err != nil {
		return "", 0, &TransferError{Reference: reference, Err: err}
	}
	return localPath, size, nil
}

// copyToFile writes the reader to path and returns the byte count. On
// error the partial file is removed.
func copyToFile(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return size, nil
}
