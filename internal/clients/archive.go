package clients

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// ArchiveClient keeps raw event payloads in object storage for audit and
// replay. Writes are best-effort from the consumer's point of view.
type ArchiveClient struct {
	raw    *minio.Client
	bucket string
	prefix string
}

func NewArchiveClient(cfg ArchiveConfig) (*ArchiveClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &ArchiveClient{
		raw:    client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store writes one record body under a date-partitioned key and returns it.
func (c *ArchiveClient) Store(ctx context.Context, receivedAt time.Time, body []byte) (string, error) {
	if c.raw == nil {
		return "", fmt.Errorf("archive client is nil")
	}

	key := fmt.Sprintf("%s%s/%s.json", c.prefix, receivedAt.UTC().Format("2006/01/02"), uuid.NewString())

	_, err := c.raw.PutObject(ctx, c.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}

	return key, nil
}
