package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Archiver mirrors successful transcripts into long-term storage. The
// pipeline treats it as best-effort: a failed upload is logged and the
// job outcome stands.
type Archiver interface {
	Store(ctx context.Context, userID, jobID int64, text string) error
}

// Nop is used when no archive endpoint is configured.
type Nop struct{}

func (Nop) Store(context.Context, int64, int64, string) error { return nil }

// MinIO stores transcripts in an S3-compatible bucket, one object per
// job under <userID>/<jobID>.txt.
type MinIO struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

var _ Archiver = (*MinIO)(nil)

func NewMinIO(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to minio at %s: %w", endpoint, err)
	}
	return &MinIO{client: client, bucket: bucket, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist. Called once at
// startup so Store never has to care.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("created archive bucket", zap.String("bucket", m.bucket))
	return nil
}

func (m *MinIO) Store(ctx context.Context, userID, jobID int64, text string) error {
	object := objectName(userID, jobID)
	reader := strings.NewReader(text)
	_, err := m.client.PutObject(ctx, m.bucket, object, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("archive transcript %s: %w", object, err)
	}
	return nil
}

func objectName(userID, jobID int64) string {
	return fmt.Sprintf("%d/%d.txt", userID, jobID)
}
