package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps blobs in a Backblaze B2 bucket.
type B2Store struct {
	bucket     *b2.Bucket
	bucketName string
	publicHost string
}

// NewB2Store authorises the account and resolves the bucket.
func NewB2Store(ctx context.Context, accountID, appKey, bucketName, publicHost string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("get b2 bucket: %w", err)
	}
	host := strings.TrimRight(publicHost, "/")
	if host == "" {
		host = strings.TrimRight(bucket.BaseURL(), "/")
	}
	return &B2Store{bucket: bucket, bucketName: bucket.Name(), publicHost: host}, nil
}

// Put uploads r under key.
func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	w := s.bucket.Object(key).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write b2 object: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close b2 writer: %w", err)
	}
	return &Object{Key: key, Name: path.Base(key), URL: s.URL(key), Size: size, Type: contentType}, nil
}

// Open streams key from B2.
func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat b2 object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

// Delete removes key from B2.
func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete b2 object: %w", err)
	}
	return nil
}

// URL returns the friendly download URL of key on the public host, or on the bucket's
// download host when none is configured.
func (s *B2Store) URL(key string) string {
	return fmt.Sprintf("%s/file/%s/%s", s.publicHost, s.bucketName, key)
}
