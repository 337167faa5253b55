package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluecarbon-mrv/portal/config"
)

// Open connects to bucket on the backend selected in cfg and makes sure the
// bucket exists with the requested visibility.
func Open(ctx context.Context, cfg config.Config, bucket Bucket) (*Storage, error) {
	var backend Backend
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "minio":
		client, err := NewMinioClient(cfg.Minio, bucket.Name)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS, bucket.Name)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if err := backend.EnsureBucket(ctx, bucket.Public); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket.Name, err)
	}
	return New(backend, bucket.Public), nil
}
