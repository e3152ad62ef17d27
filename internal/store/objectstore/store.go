// Package objectstore stores file blobs by key with a flat string metadata
// map attached to each object. Backends: GCS for deployments, an afero
// filesystem for local runs and tests.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("object store unavailable")

	// ErrMissingObject is returned by metadata updates against a key whose
	// blob no longer exists.
	ErrMissingObject = errors.New("object does not exist")

	// ErrEncoding marks blob content that is not valid UTF-8 when read as text.
	ErrEncoding = errors.New("object is not valid utf-8")
)

// Backend is the raw blob store. A missing key reports found=false, not an
// error. Delete of an absent key succeeds.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Stat(ctx context.Context, key string) (map[string]string, bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}

type Store struct {
	backend Backend
	prefix  string
	log     *slog.Logger
}

// New wraps a backend. prefix, when set, namespaces every key this instance
// touches.
func New(backend Backend, prefix string) *Store {
	return &Store{backend: backend, prefix: prefix, log: slog.Default()}
}

// key composes the instance prefix with the caller's key, collapsing any run
// of path separators to one.
func (s *Store) key(name string) string {
	var segs []string
	for _, part := range []string{s.prefix, name} {
		for _, seg := range strings.Split(part, "/") {
			if seg != "" {
				segs = append(segs, seg)
			}
		}
	}
	return strings.Join(segs, "/")
}

func (s *Store) fail(op, key string, err error) error {
	s.log.Error("object store operation failed", "op", op, "key", key, "error", err)
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
}

// StoreFile writes the blob and its metadata map, returning the key used.
func (s *Store) StoreFile(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error) {
	k := s.key(name)
	if err := s.backend.Put(ctx, k, data, metadata); err != nil {
		return "", s.fail("put", k, err)
	}
	return k, nil
}

// GetFile returns the raw blob bytes, or found=false when absent.
func (s *Store) GetFile(ctx context.Context, name string) ([]byte, bool, error) {
	k := s.key(name)
	data, found, err := s.backend.Get(ctx, k)
	if err != nil {
		return nil, false, s.fail("get", k, err)
	}
	return data, found, nil
}

// GetFileAsText decodes the blob as UTF-8 text.
func (s *Store) GetFileAsText(ctx context.Context, name string) (string, bool, error) {
	data, found, err := s.GetFile(ctx, name)
	if err != nil || !found {
		return "", found, err
	}
	if !utf8.Valid(data) {
		return "", false, fmt.Errorf("%w: %s", ErrEncoding, s.key(name))
	}
	return string(data), true, nil
}

// DeleteFile removes the blob. Deleting an absent key succeeds.
func (s *Store) DeleteFile(ctx context.Context, name string) error {
	k := s.key(name)
	if err := s.backend.Delete(ctx, k); err != nil {
		return s.fail("delete", k, err)
	}
	return nil
}

// ListFiles returns up to limit keys under prefix with the composed prefix
// stripped.
func (s *Store) ListFiles(ctx context.Context, prefix string, limit int) ([]string, error) {
	k := s.key(prefix)
	keys, err := s.backend.List(ctx, k, limit)
	if err != nil {
		return nil, s.fail("list", k, err)
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimPrefix(key, k)
		out = append(out, strings.TrimPrefix(key, "/"))
	}
	return out, nil
}

// GetFileMetadata returns the attached metadata map via an existence probe;
// the blob body is never fetched.
func (s *Store) GetFileMetadata(ctx context.Context, name string) (map[string]string, bool, error) {
	k := s.key(name)
	meta, found, err := s.backend.Stat(ctx, k)
	if err != nil {
		return nil, false, s.fail("stat", k, err)
	}
	return meta, found, nil
}

// UpdateFileMetadata rewrites the blob with the replacement metadata map.
// The old map is discarded entirely; callers pass the complete desired set.
func (s *Store) UpdateFileMetadata(ctx context.Context, name string, metadata map[string]string) error {
	k := s.key(name)
	data, found, err := s.backend.Get(ctx, k)
	if err != nil {
		return s.fail("get", k, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrMissingObject, k)
	}
	if err := s.backend.Put(ctx, k, data, metadata); err != nil {
		return s.fail("put", k, err)
	}
	return nil
}

// FileExists is a cheap existence probe. Any lookup failure reports false.
func (s *Store) FileExists(ctx context.Context, name string) bool {
	_, found, err := s.backend.Stat(ctx, s.key(name))
	if err != nil {
		return false
	}
	return found
}
