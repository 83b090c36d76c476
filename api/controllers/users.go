package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/residency-backend/api/middleware"
	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/api/validators"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/internal/users"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// UsersService is the slice of the users service the HTTP layer needs.
type UsersService interface {
	Register(ctx context.Context, id identity.Identity, photoURL *string) (*models.User, error)
	Profile(ctx context.Context, email string) (*models.User, error)
	ChangeRole(ctx context.Context, actorEmail, email string, role enums.Role) (*models.User, error)
	RemoveMember(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, actorEmail, email string) error
	ListMembers(ctx context.Context) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type registerRequest struct {
	PhotoURL *string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

type profileResponse struct {
	User   *users.UserDTO `json:"user"`
	Role   enums.Role     `json:"role"`
	Routes []gate.Route   `json:"routes"`
}

// UserRegister records the caller on first sign-in with the user role. It is
// safe to call on every sign-in.
func UserRegister(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload registerRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		user, err := svc.Register(r.Context(), *id, payload.PhotoURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, users.FromModel(user))
	}
}

// UserProfile returns the caller's record with the routes their role reaches.
func UserProfile(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Profile(r.Context(), id.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role == "" {
			role = user.Role
		}
		responses.WriteSuccess(w, profileResponse{
			User:   users.FromModel(user),
			Role:   role,
			Routes: gate.AllowList(role),
		})
	}
}

func AdminMembersList(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMembers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

// AdminMemberRemove demotes a member back to user.
func AdminMemberRemove(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.RemoveMember(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

func SuperAdminUsersList(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListUsers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModels(list))
	}
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func SuperAdminChangeRole(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changeRoleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseRole(payload.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		user, err := svc.ChangeRole(r.Context(), actor.Email, email, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

func SuperAdminDeleteUser(svc UsersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteUser(r.Context(), actor.Email, email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func emailParam(r *http.Request) (string, error) {
	email := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "email")))
	if email == "" || !strings.Contains(email, "@") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}
	return email, nil
}
