package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// metaSuffix is the sidecar holding an object's metadata map, mirroring how
// hosted object stores attach custom metadata out of band.
const metaSuffix = ".meta.json"

// fsBackend stores blobs on an afero filesystem, one file per key plus a
// JSON metadata sidecar.
type fsBackend struct {
	fs   afero.Fs
	root string
}

// NewFSBackend stores objects under root on the host filesystem.
func NewFSBackend(root string) Backend {
	return &fsBackend{fs: afero.NewOsFs(), root: root}
}

// NewMemoryBackend stores objects in memory; used by tests.
func NewMemoryBackend() Backend {
	return &fsBackend{fs: afero.NewMemMapFs(), root: "/objects"}
}

func (b *fsBackend) dataPath(key string) string { return path.Join(b.root, key) }
func (b *fsBackend) metaPath(key string) string { return path.Join(b.root, key) + metaSuffix }

func (b *fsBackend) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := b.dataPath(key)
	if err := b.fs.MkdirAll(path.Dir(p), 0o750); err != nil {
		return err
	}
	if err := afero.WriteFile(b.fs, p, data, 0o640); err != nil {
		return err
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", key, err)
	}
	return afero.WriteFile(b.fs, b.metaPath(key), raw, 0o640)
}

func (b *fsBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := afero.ReadFile(b.fs, b.dataPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *fsBackend) Stat(ctx context.Context, key string) (map[string]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, err := b.fs.Stat(b.dataPath(key)); os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	raw, err := afero.ReadFile(b.fs, b.metaPath(key))
	if os.IsNotExist(err) {
		return map[string]string{}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("unmarshal metadata for %s: %w", key, err)
	}
	return meta, true, nil
}

func (b *fsBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.fs.Remove(b.dataPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := b.fs.Remove(b.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *fsBackend) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := afero.Walk(b.fs, b.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}
