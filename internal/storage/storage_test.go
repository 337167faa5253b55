package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	puts   map[string]string
	putErr error
	closed bool
}

func (f *fakeBackend) EnsureBucket(context.Context, bool) error { return nil }

func (f *fakeBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.puts[key] = string(data)
	return nil
}

func (f *fakeBackend) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.test/" + key + "?exp=" + ttl.String(), nil
}

func (f *fakeBackend) ObjectURL(key string) string { return "https://files.test/docs/" + key }
func (f *fakeBackend) Bucket() string              { return "docs" }
func (f *fakeBackend) Close() error                { f.closed = true; return nil }

func TestValidateKey(t *testing.T) {
	assert.NoError(t, validateKey("fw-1/registration/1700000000000-abc.pdf"))

	for _, key := range []string{"", " ", "/abs/key", "a//b", "a/../b", "./a", "a/"} {
		assert.ErrorIs(t, validateKey(key), ErrInvalidKey, key)
	}
}

func TestStorage_Put(t *testing.T) {
	backend := &fakeBackend{puts: map[string]string{}}
	s := New(backend, false)

	require.NoError(t, s.Put(context.Background(), "u/fcra/1.pdf", strings.NewReader("pdf"), 3, "application/pdf"))
	assert.Equal(t, "pdf", backend.puts["u/fcra/1.pdf"])

	assert.ErrorIs(t, s.Put(context.Background(), "../escape", strings.NewReader("x"), 1, ""), ErrInvalidKey)

	backend.putErr = errors.New("connection refused")
	err := s.Put(context.Background(), "u/fcra/2.pdf", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, backend.putErr)
	assert.ErrorContains(t, err, "put docs/u/fcra/2.pdf")
}

func TestStorage_PublicURLOnlyForPublicBuckets(t *testing.T) {
	backend := &fakeBackend{puts: map[string]string{}}

	assert.Empty(t, New(backend, false).PublicURL("u/sites/1.png"))
	assert.Equal(t, "https://files.test/docs/u/sites/1.png", New(backend, true).PublicURL("u/sites/1.png"))
	assert.Empty(t, New(backend, true).PublicURL("/u/sites/1.png"))
}

func TestStorage_SignedURL(t *testing.T) {
	s := New(&fakeBackend{}, false)

	url, err := s.SignedURL(context.Background(), "u/registration/1.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.test/u/registration/1.pdf?exp=5m0s", url)

	_, err = s.SignedURL(context.Background(), "u/registration/1.pdf", 0)
	assert.Error(t, err)

	_, err = s.SignedURL(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.org/site-images/a/b.png", joinURL("https://cdn.example.org/", "site-images", "/a/b.png"))
	assert.Equal(t, "http://localhost:9000/ngo-uploads/k", joinURL("http://localhost:9000", "ngo-uploads", "k"))
}

func TestNewMinioClient_ObjectURL(t *testing.T) {
	cfg := config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}

	client, err := NewMinioClient(cfg, "site-images")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/site-images/u/sites/1.png", client.ObjectURL("u/sites/1.png"))

	cfg.PublicBaseURL = "https://files.example.org"
	client, err = NewMinioClient(cfg, "site-images")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.org/site-images/u/sites/1.png", client.ObjectURL("u/sites/1.png"))
}

func TestNewMinioClient_RequiresSettings(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"}, "b")
	assert.Error(t, err)

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, " ")
	assert.Error(t, err)
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Effect   string   `json:"Effect"`
			Action   []string `json:"Action"`
			Resource []string `json:"Resource"`
		} `json:"Statement"`
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("site-images")), &policy))

	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "Allow", policy.Statement[0].Effect)
	assert.Equal(t, []string{"s3:GetObject"}, policy.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::site-images/*"}, policy.Statement[0].Resource)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Backend: "s3-compatible-ish"}}
	_, err := Open(context.Background(), cfg, Bucket{Name: "b"})
	assert.ErrorContains(t, err, "unknown storage backend")
}
