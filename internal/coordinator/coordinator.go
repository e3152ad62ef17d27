// Package coordinator is the single entry point over the three stores. It
// owns one instance of each, runs schema setup exactly once per process, and
// delegates every operation to the owning store with no business logic of its
// own.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/files"
	"github.com/veltrane/chatvault/internal/store/kvstore"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

type Coordinator struct {
	repo    *chat.Repo
	kv      *kvstore.Store
	objects *objectstore.Store
	files   *files.Manager

	mu          sync.Mutex
	initialized bool
}

// New wires the store handles together. Construction is explicit; callers
// own the handles' lifecycles and pass the coordinator to every consumer.
func New(repo *chat.Repo, kv *kvstore.Store, objects *objectstore.Store, fm *files.Manager) *Coordinator {
	return &Coordinator{repo: repo, kv: kv, objects: objects, files: fm}
}

// Initialize runs schema setup. Idempotent; callers must let it complete
// before issuing any other operation. A racing double run is harmless
// because migration is create-if-absent.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.repo.Migrate(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Chats

func (c *Coordinator) GetAllChats(ctx context.Context) ([]chat.Chat, error) {
	return c.repo.GetAllChats(ctx)
}

func (c *Coordinator) GetChat(ctx context.Context, idOrURL string) (*chat.Chat, error) {
	return c.repo.GetMessages(ctx, idOrURL)
}

func (c *Coordinator) SetMessages(ctx context.Context, id string, messages chat.MessageList, p chat.SetMessagesParams) error {
	return c.repo.SetMessages(ctx, id, messages, p)
}

func (c *Coordinator) CreateChatFromMessages(ctx context.Context, description string, messages chat.MessageList, metadata *chat.ChatMetadata) (*chat.Chat, error) {
	return c.repo.CreateChatFromMessages(ctx, description, messages, metadata)
}

func (c *Coordinator) DeleteChat(ctx context.Context, idOrURL string) error {
	return c.repo.DeleteChat(ctx, idOrURL)
}

func (c *Coordinator) ForkChat(ctx context.Context, chatID, messageID string) (*chat.Chat, error) {
	return c.repo.ForkChat(ctx, chatID, messageID)
}

func (c *Coordinator) DuplicateChat(ctx context.Context, idOrURL string) (*chat.Chat, error) {
	return c.repo.DuplicateChat(ctx, idOrURL)
}

func (c *Coordinator) UpdateChatDescription(ctx context.Context, idOrURL, description string) error {
	return c.repo.UpdateChatDescription(ctx, idOrURL, description)
}

func (c *Coordinator) UpdateChatMetadata(ctx context.Context, idOrURL string, metadata *chat.ChatMetadata) error {
	return c.repo.UpdateChatMetadata(ctx, idOrURL, metadata)
}

// Snapshots

func (c *Coordinator) GetSnapshot(ctx context.Context, chatID string) (*chat.Snapshot, error) {
	return c.repo.GetSnapshot(ctx, chatID)
}

func (c *Coordinator) SetSnapshot(ctx context.Context, chatID, data string) error {
	return c.repo.SetSnapshot(ctx, chatID, data)
}

func (c *Coordinator) DeleteSnapshot(ctx context.Context, chatID string) error {
	return c.repo.DeleteSnapshot(ctx, chatID)
}

// Files

func (c *Coordinator) StoreFile(ctx context.Context, in files.StoreFileInput) (*chat.FileMetadata, error) {
	return c.files.StoreFile(ctx, in)
}

func (c *Coordinator) GetFile(ctx context.Context, id string) ([]byte, bool, error) {
	return c.files.GetFile(ctx, id)
}

func (c *Coordinator) GetFileAsText(ctx context.Context, id string) (string, bool, error) {
	return c.files.GetFileAsText(ctx, id)
}

func (c *Coordinator) DeleteFile(ctx context.Context, id string) error {
	return c.files.DeleteFile(ctx, id)
}

func (c *Coordinator) GetFileMetadata(ctx context.Context, id string) (*chat.FileMetadata, error) {
	return c.files.GetFileMetadata(ctx, id)
}

func (c *Coordinator) ListFilesForChat(ctx context.Context, chatID string) ([]chat.FileMetadata, error) {
	return c.files.ListFilesForChat(ctx, chatID)
}

func (c *Coordinator) SearchFilesByPath(ctx context.Context, pattern string) ([]chat.FileMetadata, error) {
	return c.files.SearchFilesByPath(ctx, pattern)
}

// Raw object access, bypassing the files table. Used for blobs that have no
// metadata row, like exports written by tooling.

func (c *Coordinator) FileExists(ctx context.Context, key string) bool {
	return c.objects.FileExists(ctx, key)
}

func (c *Coordinator) UpdateObjectMetadata(ctx context.Context, key string, metadata map[string]string) error {
	return c.objects.UpdateFileMetadata(ctx, key, metadata)
}

func (c *Coordinator) ListObjects(ctx context.Context, prefix string, limit int) ([]string, error) {
	return c.objects.ListFiles(ctx, prefix, limit)
}

// Sessions

func (c *Coordinator) SetSession(ctx context.Context, id string, data any, ttl time.Duration) error {
	return c.kv.SetSession(ctx, id, data, ttl)
}

func (c *Coordinator) GetSession(ctx context.Context, id string, out any) (bool, error) {
	return c.kv.GetSession(ctx, id, out)
}

func (c *Coordinator) DeleteSession(ctx context.Context, id string) error {
	return c.kv.DeleteSession(ctx, id)
}

func (c *Coordinator) ListSessions(ctx context.Context, limit int) ([]string, error) {
	return c.kv.ListSessions(ctx, limit)
}

// Cache

func (c *Coordinator) CacheSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.kv.CacheSet(ctx, key, value, ttl)
}

func (c *Coordinator) CacheGet(ctx context.Context, key string, out any) (bool, error) {
	return c.kv.CacheGet(ctx, key, out)
}

func (c *Coordinator) CacheDelete(ctx context.Context, key string) error {
	return c.kv.CacheDelete(ctx, key)
}

// Credentials

func (c *Coordinator) SetAPIKey(ctx context.Context, userID, provider, secret string) error {
	return c.kv.SetAPIKey(ctx, userID, provider, secret)
}

func (c *Coordinator) GetAPIKeys(ctx context.Context, userID string) (map[string]string, bool, error) {
	return c.kv.GetAPIKeys(ctx, userID)
}

func (c *Coordinator) DeleteAPIKeys(ctx context.Context, userID string) error {
	return c.kv.DeleteAPIKeys(ctx, userID)
}

// MaskedAPIKey is one provider entry with the secret masked for display.
type MaskedAPIKey struct {
	Provider string `json:"provider"`
	Masked   string `json:"masked"`
}

// ListAPIKeyProviders is advisory: with no KV store wired it reports an empty
// list, but a failure after the store answered is still propagated.
func (c *Coordinator) ListAPIKeyProviders(ctx context.Context, userID string) ([]MaskedAPIKey, error) {
	if c.kv == nil {
		return nil, nil
	}
	keys, found, err := c.kv.GetAPIKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	out := make([]MaskedAPIKey, 0, len(keys))
	for provider, secret := range keys {
		out = append(out, MaskedAPIKey{Provider: provider, Masked: maskSecret(secret)})
	}
	return out, nil
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "…"
	}
	return secret[:4] + "…"
}
