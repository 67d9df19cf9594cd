package filestore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports that the referenced audio does not exist at the
// source, as opposed to a transfer that started and broke.
var ErrNotFound = errors.New("filestore: reference not found")

// TransferError wraps a failure that occurred while moving bytes from the
// source into the staging directory.
type TransferError struct {
	Reference string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("filestore: transfer failed for %s: %v", e.Reference, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// FileStore resolves an audio reference into a local file staged under
// destDir. Callers own destDir and delete it when the job finishes.
type FileStore interface {
	Fetch(ctx context.Context, reference string, destDir string) (localPath string, sizeBytes int64, err error)
}
