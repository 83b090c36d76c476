package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	redisclient "github.com/angelmondragon/residency-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when no role is cached for the email.
var ErrMiss = errors.New("role not cached")

type roleStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type roleKeyer interface {
	RoleKey(email string) string
}

// RoleCache holds the resolved role per identity. It is populated on first
// resolution and invalidated whenever a role-changing mutation commits.
type RoleCache struct {
	store roleStore
	keyer roleKeyer
	ttl   time.Duration
}

// NewRoleCache constructs a role cache backed by Redis.
func NewRoleCache(client *redisclient.Client, ttl time.Duration) (*RoleCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("role cache ttl must be positive")
	}
	return &RoleCache{store: client, keyer: client, ttl: ttl}, nil
}

func (c *RoleCache) Get(ctx context.Context, email string) (enums.Role, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	raw, err := c.store.Get(ctx, c.keyer.RoleKey(email))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	role, err := enums.ParseRole(raw)
	if err != nil {
		// a corrupt entry behaves like a miss and is overwritten on the next Put
		return "", ErrMiss
	}
	return role, nil
}

func (c *RoleCache) Put(ctx context.Context, email string, role enums.Role) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return c.store.Set(ctx, c.keyer.RoleKey(email), role.String(), c.ttl)
}

// Invalidate drops the cached role so the next request re-reads the store.
func (c *RoleCache) Invalidate(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	return c.store.Del(ctx, c.keyer.RoleKey(email))
}
