package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) RoleKey(email string) string {
	return "role:" + strings.ToLower(email)
}

func newTestCache(store *mockStore) *RoleCache {
	return &RoleCache{store: store, keyer: store, ttl: time.Minute}
}

func TestRoleCachePutGetInvalidate(t *testing.T) {
	store := newMockStore()
	cache := newTestCache(store)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "tenant@example.com"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss before put, got %v", err)
	}

	if err := cache.Put(ctx, "tenant@example.com", enums.RoleMember); err != nil {
		t.Fatalf("put: %v", err)
	}
	if store.ttls["role:tenant@example.com"] != time.Minute {
		t.Fatalf("expected ttl to be applied")
	}

	role, err := cache.Get(ctx, "Tenant@Example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if role != enums.RoleMember {
		t.Fatalf("expected member got %s", role)
	}

	if err := cache.Invalidate(ctx, "tenant@example.com"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.Get(ctx, "tenant@example.com"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
}

func TestRoleCacheCorruptEntryIsMiss(t *testing.T) {
	store := newMockStore()
	store.data["role:x@example.com"] = "owner"
	cache := newTestCache(store)

	if _, err := cache.Get(context.Background(), "x@example.com"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected corrupt entry to read as miss, got %v", err)
	}
}

func TestRoleCacheSurfacesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")
	cache := newTestCache(store)

	_, err := cache.Get(context.Background(), "x@example.com")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected raw store error, got %v", err)
	}
}

func TestRoleCacheRejectsInvalidInput(t *testing.T) {
	cache := newTestCache(newMockStore())
	if err := cache.Put(context.Background(), "x@example.com", "owner"); err == nil {
		t.Fatalf("expected invalid role error")
	}
	if err := cache.Invalidate(context.Background(), " "); err == nil {
		t.Fatalf("expected email required error")
	}
}
