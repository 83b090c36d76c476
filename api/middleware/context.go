package middleware

import (
	"context"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/angelmondragon/residency-backend/pkg/identity"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxRole     contextKey = "actor_role"
)

// IdentityFromContext returns the verified caller, or nil on anonymous requests.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*identity.Identity); ok {
		return v
	}
	return nil
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// WithIdentity injects the verified caller into the context.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}

// WithRole injects the resolved role into the context for downstream handlers.
func WithRole(ctx context.Context, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
