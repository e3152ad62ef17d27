// Package files composes the object store and the files table. Every stored
// file is simultaneously a blob and a metadata row under the same id; the
// two-step write order keeps "every row implies a blob" true even under
// partial failure.
package files

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/events"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

var (
	// ErrMissingPath rejects stores without a logical filename.
	ErrMissingPath = errors.New("file path is required")

	// ErrMissingFileID rejects operations without a file id.
	ErrMissingFileID = errors.New("file id is required")
)

type Manager struct {
	objects *objectstore.Store
	repo    *chat.Repo
	pub     *events.Publisher // nil when reconciliation events are disabled
	log     *slog.Logger
}

// NewManager composes the two stores. pub may be nil.
func NewManager(objects *objectstore.Store, repo *chat.Repo, pub *events.Publisher) *Manager {
	return &Manager{objects: objects, repo: repo, pub: pub, log: slog.Default()}
}

// StoreFileInput describes one file write. Data is the raw content; callers
// with text encode it as UTF-8 bytes, so Size is always the byte length.
type StoreFileInput struct {
	Data        []byte
	Path        string
	ChatID      string
	ContentType string
	Metadata    map[string]string
}

// StoreFile writes the blob first, then inserts the metadata row under the
// same freshly minted id. A blob-write failure inserts no row; a row-insert
// failure leaves an orphan blob for the sweeper and propagates the error.
func (m *Manager) StoreFile(ctx context.Context, in StoreFileInput) (*chat.FileMetadata, error) {
	if in.Path == "" {
		return nil, ErrMissingPath
	}

	id := ulid.Make().String()

	objMeta := make(map[string]string, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		objMeta[k] = v
	}
	objMeta["path"] = in.Path
	if in.ContentType != "" {
		objMeta["contentType"] = in.ContentType
	}
	if in.ChatID != "" {
		objMeta["chatId"] = in.ChatID
	}

	key, err := m.objects.StoreFile(ctx, id, in.Data, objMeta)
	if err != nil {
		return nil, err
	}

	row := &chat.FileMetadata{
		ID:        id,
		Path:      in.Path,
		Size:      int64(len(in.Data)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata:  in.Metadata,
	}
	if in.ChatID != "" {
		row.ChatID = &in.ChatID
	}
	if in.ContentType != "" {
		row.ContentType = &in.ContentType
	}

	if err := m.repo.InsertFile(ctx, row); err != nil {
		m.reportOrphan(ctx, events.OrphanBlob{FileID: id, Key: key, Path: in.Path})
		return nil, err
	}
	return row, nil
}

// reportOrphan is best-effort; it must never mask the insert error.
func (m *Manager) reportOrphan(ctx context.Context, o events.OrphanBlob) {
	m.log.Error("file row insert failed, blob orphaned", "id", o.FileID, "key", o.Key)
	if m.pub == nil {
		return
	}
	if err := m.pub.PublishOrphan(ctx, o); err != nil {
		m.log.Error("orphan event publish failed", "id", o.FileID, "error", err)
	}
}

// DeleteFile removes the blob first, then the metadata row. If the blob
// delete fails the row stays, deliberately favoring an orphaned row over
// metadata loss for a blob that might still exist. Deleting an absent id
// succeeds.
func (m *Manager) DeleteFile(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingFileID
	}
	if err := m.objects.DeleteFile(ctx, id); err != nil {
		return err
	}
	return m.repo.DeleteFileRow(ctx, id)
}

// GetFile returns the raw blob bytes.
func (m *Manager) GetFile(ctx context.Context, id string) ([]byte, bool, error) {
	if id == "" {
		return nil, false, ErrMissingFileID
	}
	return m.objects.GetFile(ctx, id)
}

// GetFileAsText returns the blob decoded as UTF-8.
func (m *Manager) GetFileAsText(ctx context.Context, id string) (string, bool, error) {
	if id == "" {
		return "", false, ErrMissingFileID
	}
	return m.objects.GetFileAsText(ctx, id)
}

// GetFileMetadata reads the metadata row. Absence is a nil result.
func (m *Manager) GetFileMetadata(ctx context.Context, id string) (*chat.FileMetadata, error) {
	if id == "" {
		return nil, ErrMissingFileID
	}
	return m.repo.GetFile(ctx, id)
}

func (m *Manager) ListFilesForChat(ctx context.Context, chatID string) ([]chat.FileMetadata, error) {
	return m.repo.ListFilesForChat(ctx, chatID)
}

func (m *Manager) SearchFilesByPath(ctx context.Context, pattern string) ([]chat.FileMetadata, error) {
	return m.repo.SearchFilesByPath(ctx, pattern)
}
