package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrInvalidKey is returned for object keys that are empty, absolute or
// climb out of their prefix.
var ErrInvalidKey = errors.New("invalid object key")

// Backend is a single bucket on an object store.
type Backend interface {
	// EnsureBucket creates the bucket when missing and, for public buckets,
	// grants anonymous read access to its objects.
	EnsureBucket(ctx context.Context, public bool) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// SignedURL returns a time-limited GET link to a private object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// ObjectURL is the unauthenticated URL of the object.
	ObjectURL(key string) string
	Bucket() string
	Close() error
}

// Bucket describes one bucket the portal writes to.
type Bucket struct {
	Name string

	// Public buckets serve their objects without authentication.
	Public bool
}

// Storage guards a Backend bucket: keys are validated and only public
// buckets hand out unauthenticated URLs.
type Storage struct {
	backend Backend
	public  bool
}

// New wraps backend. public must match how the bucket was ensured.
func New(backend Backend, public bool) *Storage {
	return &Storage{backend: backend, public: public}
}

// Put uploads an object.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("put %s/%s: %w", s.backend.Bucket(), key, err)
	}
	return nil
}

// PublicURL returns the object URL for public buckets and "" otherwise.
func (s *Storage) PublicURL(key string) string {
	if !s.public || validateKey(key) != nil {
		return ""
	}
	return s.backend.ObjectURL(key)
}

// SignedURL returns a link to the object that expires after ttl.
func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("signed url ttl must be positive")
	}
	return s.backend.SignedURL(ctx, key, ttl)
}

// Bucket returns the bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend client.
func (s *Storage) Close() error {
	return s.backend.Close()
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

func joinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}
