package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/coordinator"
	"github.com/veltrane/chatvault/internal/files"
	"github.com/veltrane/chatvault/internal/store/kvstore"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	coord := coordinator.New(repo, kv, objects, files.NewManager(objects, repo, nil))
	if err := coord.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return NewRouter(coord)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w, env
}

func TestPing(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodGet, "/ping", nil)
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("unexpected ping response: %d %+v", w.Code, env)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestChatEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPost, "/chats", gin.H{
		"description": "api chat",
		"messages":    []gin.H{{"id": "m1", "role": "user", "content": "hi"}},
	})
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("create failed: %d %+v", w.Code, env)
	}
	var created chat.Chat
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created chat: %v", err)
	}
	if created.ID != "1" {
		t.Fatalf("expected id 1, got %q", created.ID)
	}

	w, env = do(t, r, http.MethodGet, "/chats/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get chat: %d %+v", w.Code, env)
	}

	w, env = do(t, r, http.MethodGet, "/chats/404", nil)
	if w.Code != http.StatusNotFound || env.Code != 40401 {
		t.Fatalf("absent chat should be 404/40401, got %d/%d", w.Code, env.Code)
	}

	// Forking at an unknown message maps to its own code.
	w, env = do(t, r, http.MethodPost, "/chats/1/fork", gin.H{"message_id": "nope"})
	if w.Code != http.StatusNotFound || env.Code != 40402 {
		t.Fatalf("unknown message should be 404/40402, got %d/%d", w.Code, env.Code)
	}

	w, env = do(t, r, http.MethodPatch, "/chats/1/description", gin.H{"description": "  "})
	if w.Code != http.StatusBadRequest || env.Code != 40001 {
		t.Fatalf("blank description should be 400/40001, got %d/%d", w.Code, env.Code)
	}

	w, env = do(t, r, http.MethodDelete, "/chats/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d %+v", w.Code, env)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	r := newTestRouter(t)

	if _, env := do(t, r, http.MethodPost, "/chats", gin.H{"messages": []gin.H{}}); env.Code != 0 {
		t.Fatalf("seed chat: %+v", env)
	}

	w, env := do(t, r, http.MethodPut, "/chats/1/snapshot", gin.H{"data": `{"tree":{}}`})
	if w.Code != http.StatusOK {
		t.Fatalf("set snapshot: %d %+v", w.Code, env)
	}

	w, env = do(t, r, http.MethodGet, "/chats/1/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get snapshot: %d %+v", w.Code, env)
	}

	w, env = do(t, r, http.MethodGet, "/chats/2/snapshot", nil)
	if w.Code != http.StatusNotFound || env.Code != 40404 {
		t.Fatalf("absent snapshot should be 404/40404, got %d/%d", w.Code, env.Code)
	}
}

func TestSessionAndCacheEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodPut, "/sessions/s1", gin.H{
		"data": gin.H{"userId": "u1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set session: %d %+v", w.Code, env)
	}

	w, env = do(t, r, http.MethodGet, "/sessions/s1", nil)
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("get session: %d %+v", w.Code, env)
	}

	w, env = do(t, r, http.MethodGet, "/sessions/absent", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("absent session should be 404, got %d %+v", w.Code, env)
	}

	w, _ = do(t, r, http.MethodPut, "/cache/recent", gin.H{"value": []string{"1", "2"}})
	if w.Code != http.StatusOK {
		t.Fatalf("cache set: %d", w.Code)
	}
	w, env = do(t, r, http.MethodGet, "/cache/recent", nil)
	if w.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("cache get: %d %+v", w.Code, env)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	r := newTestRouter(t)

	w, env := do(t, r, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound || env.Code != 40400 {
		t.Fatalf("unknown route should be 404/40400, got %d/%d", w.Code, env.Code)
	}
}
