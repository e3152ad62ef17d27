// Package kvstore is the namespaced key-value store behind sessions, cache
// entries and per-user credential sets. Values are JSON; TTL expiry is
// enforced by the backend.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("kv store unavailable")

	// ErrEncoding wraps JSON serialization failures.
	ErrEncoding = errors.New("kv encoding error")

	// ErrMissingUserID rejects credential operations without a user id.
	ErrMissingUserID = errors.New("user id is required")

	// ErrMissingProvider rejects credential writes without a provider name.
	ErrMissingProvider = errors.New("provider name is required")
)

// Namespace prefixes keep the three record types from colliding even with
// adversarial key names.
const (
	sessionPrefix = "session:"
	cachePrefix   = "cache:"
	apiKeysPrefix = "apikeys:"
)

const (
	DefaultSessionTTL = time.Hour
	DefaultCacheTTL   = 5 * time.Minute
)

// Backend is the raw byte-level store. Implementations must treat a missing
// key as (nil, false, nil), not an error.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, limit int) ([]string, error)
	Close() error
}

type Store struct {
	backend Backend
	log     *slog.Logger
}

func New(backend Backend) *Store {
	return &Store{backend: backend, log: slog.Default()}
}

func (s *Store) Close() error { return s.backend.Close() }

// Set serializes value as JSON and writes it, overwriting any prior value.
// ttl <= 0 means no expiry.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrEncoding, key, err)
	}
	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		s.log.Error("kv set failed", "op", "set", "key", key, "error", err)
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Get deserializes into out. A missing key reports (false, nil).
func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Error("kv get failed", "op", "get", "key", key, "error", err)
		return false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: key %s: %v", ErrEncoding, key, err)
	}
	return true, nil
}

// Delete removes a key. Deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Error("kv delete failed", "op", "delete", "key", key, "error", err)
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// ListKeys returns up to limit keys under prefix, prefix stripped. Order is
// whatever the backend yields.
func (s *Store) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	keys, err := s.backend.List(ctx, prefix, limit)
	if err != nil {
		s.log.Error("kv list failed", "op", "list", "key", prefix, "error", err)
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, prefix, err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

// Sessions

func (s *Store) SetSession(ctx context.Context, id string, data any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return s.Set(ctx, sessionPrefix+id, data, ttl)
}

func (s *Store) GetSession(ctx context.Context, id string, out any) (bool, error) {
	return s.Get(ctx, sessionPrefix+id, out)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.Delete(ctx, sessionPrefix+id)
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]string, error) {
	return s.ListKeys(ctx, sessionPrefix, limit)
}

// Cache

func (s *Store) CacheSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return s.Set(ctx, cachePrefix+key, value, ttl)
}

func (s *Store) CacheGet(ctx context.Context, key string, out any) (bool, error) {
	return s.Get(ctx, cachePrefix+key, out)
}

func (s *Store) CacheDelete(ctx context.Context, key string) error {
	return s.Delete(ctx, cachePrefix+key)
}

// Credentials. One JSON blob per user mapping provider name to secret; no TTL.

func (s *Store) GetAPIKeys(ctx context.Context, userID string) (map[string]string, bool, error) {
	if userID == "" {
		return nil, false, ErrMissingUserID
	}
	var keys map[string]string
	found, err := s.Get(ctx, apiKeysPrefix+userID, &keys)
	if err != nil || !found {
		return nil, found, err
	}
	return keys, true, nil
}

func (s *Store) SetAPIKeys(ctx context.Context, userID string, keys map[string]string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	return s.Set(ctx, apiKeysPrefix+userID, keys, 0)
}

// SetAPIKey upserts one provider's secret inside the user's credential set.
func (s *Store) SetAPIKey(ctx context.Context, userID, provider, secret string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if provider == "" {
		return ErrMissingProvider
	}
	keys, _, err := s.GetAPIKeys(ctx, userID)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = make(map[string]string, 1)
	}
	keys[provider] = secret
	return s.SetAPIKeys(ctx, userID, keys)
}

func (s *Store) DeleteAPIKeys(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	return s.Delete(ctx, apiKeysPrefix+userID)
}
