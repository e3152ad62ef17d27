package coordinator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/files"
	"github.com/veltrane/chatvault/internal/store/kvstore"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := chat.NewRepo(db)

	kvBackend, err := kvstore.NewBadgerInMemory()
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	kv := kvstore.New(kvBackend)
	t.Cleanup(func() { _ = kv.Close() })

	objects := objectstore.New(objectstore.NewMemoryBackend(), "files")
	fm := files.NewManager(objects, repo, nil)

	return New(repo, kv, objects, fm)
}

func TestInitializeIsIdempotent(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}

	// Schema is usable after init.
	if _, err := c.CreateChatFromMessages(ctx, "probe", chat.MessageList{}, nil); err != nil {
		t.Fatalf("create after init: %v", err)
	}
}

// Walks a whole conversation lifecycle through the single entry point.
func TestConversationLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	created, err := c.CreateChatFromMessages(ctx, "planning", chat.MessageList{
		{ID: "m1", Role: "user", Content: "what's the plan?"},
		{ID: "m2", Role: "assistant", Content: "ship it"},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := c.SetSnapshot(ctx, created.ID, `{"files":{}}`); err != nil {
		t.Fatalf("set snapshot: %v", err)
	}

	stored, err := c.StoreFile(ctx, files.StoreFileInput{
		Data:        []byte("milestones"),
		Path:        "plan.md",
		ChatID:      created.ID,
		ContentType: "text/markdown",
	})
	if err != nil {
		t.Fatalf("store file: %v", err)
	}

	if !c.FileExists(ctx, stored.ID) {
		t.Fatalf("blob should exist after store")
	}
	keys, err := c.ListObjects(ctx, "", 10)
	if err != nil {
		t.Fatalf("list objects: %v", err)
	}
	if len(keys) != 1 || keys[0] != stored.ID {
		t.Fatalf("unexpected object listing: %v", keys)
	}

	forked, err := c.ForkChat(ctx, created.ID, "m1")
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if len(forked.Messages) != 1 {
		t.Fatalf("fork at m1 should keep one message, got %d", len(forked.Messages))
	}

	rows, err := c.ListFilesForChat(ctx, created.ID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != stored.ID {
		t.Fatalf("unexpected file listing: %+v", rows)
	}

	if err := c.DeleteChat(ctx, created.ID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	snap, err := c.GetSnapshot(ctx, created.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("snapshot should cascade with the chat")
	}

	// The fork is untouched by deleting the original.
	got, err := c.GetChat(ctx, forked.ID)
	if err != nil || got == nil {
		t.Fatalf("fork should survive: %v %v", got, err)
	}
}

func TestSessionsThroughCoordinator(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	type profile struct {
		Name string `json:"name"`
	}
	if err := c.SetSession(ctx, "s1", profile{Name: "rivka"}, 0); err != nil {
		t.Fatalf("set session: %v", err)
	}
	var out profile
	found, err := c.GetSession(ctx, "s1", &out)
	if err != nil || !found {
		t.Fatalf("get session: found=%v err=%v", found, err)
	}
	if out.Name != "rivka" {
		t.Fatalf("unexpected session body: %+v", out)
	}

	ids, err := c.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("unexpected session ids: %v", ids)
	}
}

func TestListAPIKeyProvidersMasks(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.SetAPIKey(ctx, "u1", "openai", "sk-1234567890"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	if err := c.SetAPIKey(ctx, "u1", "groq", "abc"); err != nil {
		t.Fatalf("set api key: %v", err)
	}

	entries, err := c.ListAPIKeyProviders(ctx, "u1")
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	byProvider := make(map[string]string, len(entries))
	for _, e := range entries {
		byProvider[e.Provider] = e.Masked
	}
	if byProvider["openai"] != "sk-1…" {
		t.Fatalf("long secret should show first four characters, got %q", byProvider["openai"])
	}
	if byProvider["groq"] != "…" {
		t.Fatalf("short secret should be fully masked, got %q", byProvider["groq"])
	}

	entries, err = c.ListAPIKeyProviders(ctx, "nobody")
	if err != nil {
		t.Fatalf("list for unknown user: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("unknown user should list nothing, got %+v", entries)
	}
}
