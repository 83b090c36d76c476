package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/residency-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
)

func callerIdentity(r *http.Request) (*identity.Identity, error) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil || id.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return id, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
