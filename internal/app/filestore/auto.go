package filestore

import (
	"context"
	"strings"
	"time"
)

// Auto dispatches on the reference: http(s) URLs are downloaded,
// anything else is treated as a local path.
type Auto struct {
	local *Local
	http  *HTTP
}

func NewAuto(httpTimeout time.Duration) *Auto {
	return &Auto{
		local: NewLocal(),
		http:  NewHTTP(httpTimeout),
	}
}

func (a *Auto) Fetch(ctx context.Context, reference, destDir string) (string, int64, error) {
	if strings.HasPrefix(reference, "http://") || strings.HasPrefix(reference, "https://") {
		return a.http.Fetch(ctx, reference, destDir)
	}
	return a.local.Fetch(ctx, reference, destDir)
}
