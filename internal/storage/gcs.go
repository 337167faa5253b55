package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"github.com/bluecarbon-mrv/portal/config"
	"google.golang.org/api/option"
)

const (
	gcsPublicBaseURL = "https://storage.googleapis.com"
	gcsObjectViewer  = iam.RoleName("roles/storage.objectViewer")
)

// GCSClient is a bucket on Google Cloud Storage.
type GCSClient struct {
	client    *storage.Client
	bucket    string
	projectID string
}

// NewGCSClient constructs a GCS client for one bucket from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig, bucket string) (*GCSClient, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:    client,
		bucket:    bucket,
		projectID: cfg.ProjectID,
	}, nil
}

func (g *GCSClient) EnsureBucket(ctx context.Context, public bool) error {
	handle := g.client.Bucket(g.bucket)
	_, err := handle.Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrBucketNotExist):
		if strings.TrimSpace(g.projectID) == "" {
			return errors.New("gcs project id is required to create bucket")
		}
		attrs := &storage.BucketAttrs{
			UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
		}
		if err := handle.Create(ctx, g.projectID, attrs); err != nil {
			return err
		}
	case err != nil:
		return err
	}
	if !public {
		return nil
	}

	policy, err := handle.IAM().Policy(ctx)
	if err != nil {
		return fmt.Errorf("read bucket policy: %w", err)
	}
	if policy.HasRole(iam.AllUsers, gcsObjectViewer) {
		return nil
	}
	policy.Add(iam.AllUsers, gcsObjectViewer)
	if err := handle.IAM().SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("grant public read: %w", err)
	}
	return nil
}

func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.TrimSpace(contentType) != "" {
		writer.ContentType = contentType
	}
	if size > 0 && size < int64(writer.ChunkSize) {
		writer.ChunkSize = 0
	}
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

// ObjectURL returns the storage.googleapis.com URL of the object.
func (g *GCSClient) ObjectURL(key string) string {
	return joinURL(gcsPublicBaseURL, g.bucket, key)
}

func (g *GCSClient) Bucket() string {
	return g.bucket
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}
