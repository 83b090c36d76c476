package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

type roleResolver interface {
	ResolveRole(ctx context.Context, email string) (enums.Role, error)
}

// Identity verifies the bearer token and seeds the request context with the
// caller. Requests without a token are rejected.
func Identity(verifier identity.Verifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, true, logg)
}

// OptionalIdentity verifies a bearer token when one is sent and lets
// anonymous requests through. A token that fails verification is still
// rejected.
func OptionalIdentity(verifier identity.Verifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, false, logg)
}

func authenticate(verifier identity.Verifier, required bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity verifier unavailable"))
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if id == nil || id.Email == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no email"))
				return
			}

			ctx := WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithEmail(ctx, id.Email)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolveRole looks up the caller's role once per request and stores it in
// the context. Anonymous requests pass through untouched.
func ResolveRole(resolver roleResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil || resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			role, err := resolver.ResolveRole(r.Context(), id.Email)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithRole(r.Context(), role)
			if logg != nil {
				ctx = logg.WithRole(ctx, string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
