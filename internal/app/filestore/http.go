package filestore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"
)

// HTTP downloads http(s) references into the staging directory. Chat
// platforms hand out short-lived file URLs, so every fetch is a fresh GET.
type HTTP struct {
	client *http.Client
}

func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) Fetch(ctx context.Context, reference string, destDir string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return "", 0, &TransferError{Reference: reference, Err: err}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", 0, &TransferError{Reference: reference, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", 0, fmt.Errorf("%w: %s", ErrNotFound, reference)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, &TransferError{Reference: reference, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	localPath := filepath.Join(destDir, fileNameFromURL(reference))
	size, err := copyToFile(localPath, resp.Body)
	if err != nil {
		return "", 0, &TransferError{Reference: reference, Err: err}
	}
	return localPath, size, nil
}

// fileNameFromURL keeps the remote file name when the URL has one so the
// transcription API sees a sensible extension.
func fileNameFromURL(reference string) string {
	u, err := url.Parse(reference)
	if err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return "audio.bin"
}
