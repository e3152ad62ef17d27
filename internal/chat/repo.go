package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, log: slog.Default()}
}

// Migrate creates the schema if absent. Safe to run more than once.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&Chat{}, &Snapshot{}, &FileMetadata{},
		&User{}, &UserSession{}, &APIKey{},
	)
}

func (r *Repo) fail(op, key string, err error) error {
	r.log.Error("chat store operation failed", "op", op, "key", key, "error", err)
	return err
}

// NextChatID returns max(existing ids)+1 as a decimal string, "1" when the
// table is empty. Chat ids are only ever minted here; a non-numeric id in the
// table means something else wrote to it and allocation fails loudly.
func (r *Repo) NextChatID(ctx context.Context) (string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&Chat{}).Pluck("id", &ids).Error; err != nil {
		return "", r.fail("nextChatID", "", err)
	}
	var max int64
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return "", r.fail("nextChatID", id, fmt.Errorf("non-numeric chat id %q", id))
		}
		if n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10), nil
}

// ResolveURLID returns candidate if no chat already uses it as a urlId,
// otherwise the first candidate-2, candidate-3, ... that is free.
func (r *Repo) ResolveURLID(ctx context.Context, candidate string) (string, error) {
	var taken []string
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("url_id IS NOT NULL").
		Pluck("url_id", &taken).Error; err != nil {
		return "", r.fail("resolveURLID", candidate, err)
	}
	used := make(map[string]struct{}, len(taken))
	for _, u := range taken {
		used[u] = struct{}{}
	}
	if _, ok := used[candidate]; !ok {
		return candidate, nil
	}
	for i := 2; ; i++ {
		next := fmt.Sprintf("%s-%d", candidate, i)
		if _, ok := used[next]; !ok {
			return next, nil
		}
	}
}

// SetMessagesParams are the optional fields of an upsert. Nil pointers leave
// the stored value untouched on conflict; an empty Timestamp means "now".
type SetMessagesParams struct {
	URLID       *string
	Description *string
	Timestamp   string
	Metadata    *ChatMetadata
}

// SetMessages inserts or updates a chat by primary key. Messages and
// timestamp are replaced unconditionally; urlId, description and metadata
// only when the caller supplies them (COALESCE with the existing row).
func (r *Repo) SetMessages(ctx context.Context, id string, messages MessageList, p SetMessagesParams) error {
	if id == "" {
		return ErrMissingChatID
	}
	ts := p.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, p.Timestamp)
	}

	row := &Chat{
		ID:          id,
		URLID:       p.URLID,
		Messages:    messages,
		Description: p.Description,
		Timestamp:   ts,
		Metadata:    p.Metadata,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"messages":    messages,
			"timestamp":   ts,
			"url_id":      gorm.Expr("COALESCE(?, url_id)", p.URLID),
			"description": gorm.Expr("COALESCE(?, description)", p.Description),
			"metadata":    gorm.Expr("COALESCE(?, metadata)", p.Metadata),
		}),
	}).Create(row).Error
	if err != nil {
		return r.fail("setMessages", id, err)
	}
	return nil
}

// GetMessages resolves a chat by primary id, falling back to urlId so the
// same public identifier serves either role. Absence is a nil result.
func (r *Repo) GetMessages(ctx context.Context, idOrURL string) (*Chat, error) {
	var c Chat
	err := r.db.WithContext(ctx).Where("id = ?", idOrURL).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, r.fail("getMessages", idOrURL, err)
	}
	err = r.db.WithContext(ctx).Where("url_id = ?", idOrURL).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, r.fail("getMessages", idOrURL, err)
}

func (r *Repo) GetAllChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := r.db.WithContext(ctx).Order("timestamp DESC").Find(&chats).Error; err != nil {
		return nil, r.fail("getAllChats", "", err)
	}
	return chats, nil
}

// CreateChatFromMessages mints a fresh id plus a disambiguated urlId and
// writes the record. Returns the stored chat.
func (r *Repo) CreateChatFromMessages(ctx context.Context, description string, messages MessageList, metadata *ChatMetadata) (*Chat, error) {
	id, err := r.NextChatID(ctx)
	if err != nil {
		return nil, err
	}
	urlID, err := r.ResolveURLID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := SetMessagesParams{URLID: &urlID, Metadata: metadata}
	if description != "" {
		p.Description = &description
	}
	if err := r.SetMessages(ctx, id, messages, p); err != nil {
		return nil, err
	}
	return r.GetMessages(ctx, id)
}

func (r *Repo) UpdateChatDescription(ctx context.Context, idOrURL, description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	c, err := r.GetMessages(ctx, idOrURL)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrChatNotFound
	}
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", c.ID).
		Update("description", description).Error; err != nil {
		return r.fail("updateChatDescription", c.ID, err)
	}
	return nil
}

func (r *Repo) UpdateChatMetadata(ctx context.Context, idOrURL string, metadata *ChatMetadata) error {
	c, err := r.GetMessages(ctx, idOrURL)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrChatNotFound
	}
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", c.ID).
		Update("metadata", metadata).Error; err != nil {
		return r.fail("updateChatMetadata", c.ID, err)
	}
	return nil
}

// DeleteChat removes a chat; the snapshot and file rows go with it through
// the schema's cascade. Deleting an absent chat is a no-op.
func (r *Repo) DeleteChat(ctx context.Context, idOrURL string) error {
	c, err := r.GetMessages(ctx, idOrURL)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Delete(&Chat{}, "id = ?", c.ID).Error; err != nil {
		return r.fail("deleteChat", c.ID, err)
	}
	return nil
}

// ForkChat copies messages up to and including messageID into a new chat.
func (r *Repo) ForkChat(ctx context.Context, chatID, messageID string) (*Chat, error) {
	c, err := r.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChatNotFound
	}
	idx := -1
	for i, m := range c.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMessageNotFound
	}

	msgs := append(MessageList(nil), c.Messages[:idx+1]...)
	desc := "Forked chat"
	if c.Description != nil && *c.Description != "" {
		desc = *c.Description + " (fork)"
	}
	return r.createCopy(ctx, desc, msgs, c.Metadata)
}

// DuplicateChat copies the full transcript and metadata into a new chat.
func (r *Repo) DuplicateChat(ctx context.Context, idOrURL string) (*Chat, error) {
	c, err := r.GetMessages(ctx, idOrURL)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChatNotFound
	}
	base := "Chat"
	if c.Description != nil && *c.Description != "" {
		base = *c.Description
	}
	msgs := append(MessageList(nil), c.Messages...)
	return r.createCopy(ctx, base+" (copy)", msgs, c.Metadata)
}

func (r *Repo) createCopy(ctx context.Context, description string, messages MessageList, metadata *ChatMetadata) (*Chat, error) {
	id, err := r.NextChatID(ctx)
	if err != nil {
		return nil, err
	}
	urlID, err := r.ResolveURLID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := SetMessagesParams{URLID: &urlID, Description: &description, Metadata: metadata}
	if err := r.SetMessages(ctx, id, messages, p); err != nil {
		return nil, err
	}
	return r.GetMessages(ctx, id)
}

// Snapshots

func (r *Repo) GetSnapshot(ctx context.Context, chatID string) (*Snapshot, error) {
	var s Snapshot
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&s).Error
	if err == nil {
		return &s, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, r.fail("getSnapshot", chatID, err)
}

// SetSnapshot replaces the snapshot for a chat wholesale.
func (r *Repo) SetSnapshot(ctx context.Context, chatID, data string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		UpdateAll: true,
	}).Create(&Snapshot{ChatID: chatID, Data: data}).Error
	if err != nil {
		return r.fail("setSnapshot", chatID, err)
	}
	return nil
}

func (r *Repo) DeleteSnapshot(ctx context.Context, chatID string) error {
	if err := r.db.WithContext(ctx).Delete(&Snapshot{}, "chat_id = ?", chatID).Error; err != nil {
		return r.fail("deleteSnapshot", chatID, err)
	}
	return nil
}

// File rows

func (r *Repo) InsertFile(ctx context.Context, f *FileMetadata) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return r.fail("insertFile", f.ID, err)
	}
	return nil
}

func (r *Repo) GetFile(ctx context.Context, id string) (*FileMetadata, error) {
	var f FileMetadata
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err == nil {
		return &f, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, r.fail("getFile", id, err)
}

func (r *Repo) DeleteFileRow(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&FileMetadata{}, "id = ?", id).Error; err != nil {
		return r.fail("deleteFileRow", id, err)
	}
	return nil
}

// ListFilesForChat returns the chat's file rows, newest first.
func (r *Repo) ListFilesForChat(ctx context.Context, chatID string) ([]FileMetadata, error) {
	var files []FileMetadata
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp DESC").
		Find(&files).Error; err != nil {
		return nil, r.fail("listFilesForChat", chatID, err)
	}
	return files, nil
}

// SearchFilesByPath matches pattern as a substring of path, newest first.
// Case sensitivity is whatever the backend's LIKE does.
func (r *Repo) SearchFilesByPath(ctx context.Context, pattern string) ([]FileMetadata, error) {
	var files []FileMetadata
	if err := r.db.WithContext(ctx).
		Where("path LIKE ?", "%"+pattern+"%").
		Order("timestamp DESC").
		Find(&files).Error; err != nil {
		return nil, r.fail("searchFilesByPath", pattern, err)
	}
	return files, nil
}
