package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/residency-backend/api/middleware"
	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// GateChecker decides whether an identity may open a route.
type GateChecker interface {
	Check(ctx context.Context, id *identity.Identity, route gate.Route) (gate.Decision, enums.Role, error)
}

type gateResponse struct {
	Route    gate.Route    `json:"route"`
	Decision gate.Decision `json:"decision"`
	Role     enums.Role    `json:"role,omitempty"`
}

// GateDecision answers the SPA's route guard. It always returns 200 with the
// decision; anonymous callers receive a login decision carrying the route.
func GateDecision(checker GateChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, err := gate.ParseRoute(r.URL.Query().Get("route"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown route"))
			return
		}

		decision, role, err := checker.Check(r.Context(), middleware.IdentityFromContext(r.Context()), route)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, gateResponse{Route: route, Decision: decision, Role: role})
	}
}
