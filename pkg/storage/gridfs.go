package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket, using the key as the GridFS filename.
type GridFSStore struct {
	client  *mongo.Client
	bucket  *gridfs.Bucket
	baseURL string
}

type gridfsMetadata struct {
	ContentType string `bson:"content_type"`
	Key         string `bson:"key"`
}

// NewGridFSStore connects to MongoDB and opens the named bucket.
func NewGridFSStore(ctx context.Context, uri, database, bucketName, baseURL string) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}

	return &GridFSStore{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put uploads r under key. Earlier revisions of the same key are removed afterwards.
func (s *GridFSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	previous, err := s.fileIDs(ctx, key)
	if err != nil {
		return nil, err
	}

	opts := options.GridFSUpload().SetMetadata(gridfsMetadata{ContentType: contentType, Key: key})
	stream, err := s.bucket.OpenUploadStream(key, opts)
	if err != nil {
		return nil, fmt.Errorf("gridfs open upload: %w", err)
	}

	size, err := io.Copy(stream, r)
	if err != nil {
		_ = stream.Abort()
		return nil, fmt.Errorf("gridfs copy: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("gridfs close upload: %w", err)
	}

	for _, id := range previous {
		if err := s.bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("gridfs delete revision: %w", err)
		}
	}

	return &Object{Key: key, Name: path.Base(key), URL: s.URL(key), Size: size, Type: contentType}, nil
}

// Open streams the latest revision of key.
func (s *GridFSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(key)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("gridfs open download: %w", err)
	}
	return stream, nil
}

// Delete removes every revision of key.
func (s *GridFSStore) Delete(ctx context.Context, key string) error {
	ids, err := s.fileIDs(ctx, key)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("gridfs delete: %w", err)
		}
	}
	return nil
}

// URL returns the public address of key.
func (s *GridFSStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Close disconnects the Mongo client.
func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *GridFSStore) fileIDs(ctx context.Context, key string) ([]interface{}, error) {
	cursor, err := s.bucket.FindContext(ctx, bson.M{"filename": key})
	if err != nil {
		return nil, fmt.Errorf("gridfs find: %w", err)
	}
	var files []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("gridfs decode files: %w", err)
	}
	ids := make([]interface{}, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids, nil
}
