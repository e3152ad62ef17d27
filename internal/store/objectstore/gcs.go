package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// gcsBackend stores blobs in a Google Cloud Storage bucket, with the
// metadata map attached as object metadata.
type gcsBackend struct {
	bucket *storage.BucketHandle
}

// NewGCSBackend connects to the given bucket. credentialsFile may be empty,
// in which case ambient application-default credentials are used.
func NewGCSBackend(ctx context.Context, bucket, credentialsFile string) (Backend, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &gcsBackend{bucket: client.Bucket(bucket)}, nil
}

func (b *gcsBackend) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	w.Metadata = metadata
	if ct, ok := metadata["contentType"]; ok {
		w.ContentType = ct
	} else {
		w.ContentType = "application/octet-stream"
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

func (b *gcsBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, true, nil
}

func (b *gcsBackend) Stat(ctx context.Context, key string) (map[string]string, bool, error) {
	attrs, err := b.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	meta := attrs.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return meta, true, nil
}

func (b *gcsBackend) Delete(ctx context.Context, key string) error {
	err := b.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *gcsBackend) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return keys, nil
}
