package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored blob. Name, URL, Size and Type form the descriptor returned to clients.
type Object struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Store persists blobs under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
