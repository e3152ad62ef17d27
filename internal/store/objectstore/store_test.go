package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, prefix string) *Store {
	t.Helper()
	return New(NewMemoryBackend(), prefix)
}

func TestStoreFileRoundTrip(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	key, err := s.StoreFile(ctx, "docs/readme.md", []byte("# hello"), map[string]string{"contentType": "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, "docs/readme.md", key)

	data, found, err := s.GetFile(ctx, "docs/readme.md")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("# hello"), data)

	meta, found, err := s.GetFileMetadata(ctx, "docs/readme.md")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "text/markdown", meta["contentType"])
}

func TestKeyComposition(t *testing.T) {
	s := newTestStore(t, "proj/")
	ctx := context.Background()

	// Runs of separators collapse; the instance prefix applies everywhere.
	key, err := s.StoreFile(ctx, "//a//b.txt", []byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "proj/a/b.txt", key)

	_, found, err := s.GetFile(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetAbsentFile(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, found, err := s.GetFile(ctx, "missing.bin")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.GetFileMetadata(ctx, "missing.bin")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetFileAsText(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, err := s.StoreFile(ctx, "note.txt", []byte("plain text"), nil)
	require.NoError(t, err)
	text, found, err := s.GetFileAsText(ctx, "note.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "plain text", text)

	_, err = s.StoreFile(ctx, "bad.bin", []byte{0xff, 0xfe, 0xfd}, nil)
	require.NoError(t, err)
	_, _, err = s.GetFileAsText(ctx, "bad.bin")
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestUpdateFileMetadataReplacesWholeMap(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, err := s.StoreFile(ctx, "f.txt", []byte("body"), map[string]string{"old": "1", "keep?": "no"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateFileMetadata(ctx, "f.txt", map[string]string{"new": "2"}))

	meta, found, err := s.GetFileMetadata(ctx, "f.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]string{"new": "2"}, meta)

	// Body untouched by a metadata rewrite.
	data, _, err := s.GetFile(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), data)

	err = s.UpdateFileMetadata(ctx, "absent.txt", map[string]string{"x": "1"})
	assert.ErrorIs(t, err, ErrMissingObject)
}

func TestDeleteFileIdempotent(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, err := s.StoreFile(ctx, "f.txt", []byte("x"), nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteFile(ctx, "f.txt"))
	require.NoError(t, s.DeleteFile(ctx, "f.txt"))
	assert.False(t, s.FileExists(ctx, "f.txt"))
}

func TestListFilesStripsComposedPrefix(t *testing.T) {
	s := newTestStore(t, "chats")
	ctx := context.Background()

	for _, name := range []string{"1/a.txt", "1/b.txt", "2/c.txt"} {
		_, err := s.StoreFile(ctx, name, []byte("x"), nil)
		require.NoError(t, err)
	}

	keys, err := s.ListFiles(ctx, "1", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, keys)

	keys, err = s.ListFiles(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

type brokenBackend struct{}

func (brokenBackend) Put(context.Context, string, []byte, map[string]string) error {
	return errors.New("down")
}
func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenBackend) Stat(context.Context, string) (map[string]string, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenBackend) Delete(context.Context, string) error { return errors.New("down") }
func (brokenBackend) List(context.Context, string, int) ([]string, error) {
	return nil, errors.New("down")
}

func TestBrokenBackend(t *testing.T) {
	s := New(brokenBackend{}, "")
	ctx := context.Background()

	_, err := s.StoreFile(ctx, "f", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = s.GetFile(ctx, "f")
	assert.ErrorIs(t, err, ErrUnavailable)

	// Existence probes swallow failures and report absent.
	assert.False(t, s.FileExists(ctx, "f"))
}
