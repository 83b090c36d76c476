package middleware

import (
	"net/http"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/internal/gate"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// RequireRoute applies the gate's allow-lists to an API route group. It must
// run after Identity and ResolveRole.
func RequireRoute(route gate.Route, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			decision := gate.Authorize(id != nil, RoleFromContext(r.Context()), route)

			switch decision.Outcome {
			case gate.OutcomeAllow:
				next.ServeHTTP(w, r)
			case gate.OutcomeLogin:
				err := pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required").
					WithDetails(map[string]any{"return_to": decision.ReturnTo})
				responses.WriteError(r.Context(), logg, w, err)
			case gate.OutcomePending:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "role not resolved"))
			default:
				err := pkgerrors.New(pkgerrors.CodeForbidden, "your role cannot access this page").
					WithDetails(map[string]any{"route": route})
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}
