package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/auth/session"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const (
	resolveMaxRetries = 3
	resolveBackoff    = 50 * time.Millisecond
)

type usersRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, email string, role enums.Role) (int64, error)
	TransitionRole(ctx context.Context, email string, from, to enums.Role) (int64, error)
	Delete(ctx context.Context, email string) (int64, error)
	List(ctx context.Context, role *enums.Role) ([]models.User, error)
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)
}

type roleCache interface {
	Get(ctx context.Context, email string) (enums.Role, error)
	Put(ctx context.Context, email string, role enums.Role) error
	Invalidate(ctx context.Context, email string) error
}

// Service owns the email to role mapping.
type Service interface {
	Register(ctx context.Context, id identity.Identity, photoURL *string) (*models.User, error)
	Profile(ctx context.Context, email string) (*models.User, error)
	ResolveRole(ctx context.Context, email string) (enums.Role, error)
	InvalidateRole(ctx context.Context, email string)
	ChangeRole(ctx context.Context, actorEmail, email string, role enums.Role) (*models.User, error)
	RemoveMember(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, actorEmail, email string) error
	ListMembers(ctx context.Context) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)
}

type service struct {
	repo    usersRepository
	cache   roleCache
	logg    *logger.Logger
	backoff func() retry.Backoff
}

// NewService builds the users service. cache may be nil, in which case every
// resolution reads the store.
func NewService(repo usersRepository, cache roleCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{
		repo:  repo,
		cache: cache,
		logg:  logg,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(resolveMaxRetries, retry.NewConstant(resolveBackoff))
		},
	}, nil
}

func (s *service) Register(ctx context.Context, id identity.Identity, photoURL *string) (*models.User, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	name := strings.TrimSpace(id.DisplayName)
	if name == "" {
		name = email
	}
	user := &models.User{Email: email, Name: name, PhotoURL: photoURL, Role: enums.RoleUser}
	if err := s.repo.Create(ctx, user); err != nil {
		// a concurrent first sign-in may have inserted the row already
		if again, findErr := s.repo.FindByEmail(ctx, email); findErr == nil {
			return again, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) Profile(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// ResolveRole returns the stored role for email. A missing record resolves to
// user rather than failing the request.
func (s *service) ResolveRole(ctx context.Context, email string) (enums.Role, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}

	if s.cache != nil {
		role, err := s.cache.Get(ctx, email)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, session.ErrMiss) && s.logg != nil {
			s.logg.Warn(s.logg.WithEmail(ctx, email), fmt.Sprintf("role cache read failed: %v", err))
		}
	}

	role := enums.RoleUser
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		user, err := s.repo.FindByEmail(ctx, email)
		if err == nil {
			role = user.Role
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = enums.RoleUser
			return nil
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve role")
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, email, role); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithEmail(ctx, email), fmt.Sprintf("role cache write failed: %v", err))
		}
	}
	return role, nil
}

// InvalidateRole drops the cached role. Failures are logged; the entry expires
// on its own TTL.
func (s *service) InvalidateRole(ctx context.Context, email string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, normalizeEmail(email)); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithEmail(ctx, email), "role cache invalidation failed", err)
	}
}

func (s *service) ChangeRole(ctx context.Context, actorEmail, email string, role enums.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if normalizeEmail(actorEmail) == normalizeEmail(email) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change your own role")
	}

	rows, err := s.repo.UpdateRole(ctx, email, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	s.InvalidateRole(ctx, email)
	return s.Profile(ctx, email)
}

// RemoveMember demotes a member back to user.
func (s *service) RemoveMember(ctx context.Context, email string) (*models.User, error) {
	rows, err := s.repo.TransitionRole(ctx, email, enums.RoleMember, enums.RoleUser)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote member")
	}
	if rows == 0 {
		user, err := s.Profile(ctx, email)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user is not a member").
			WithDetails(map[string]any{"role": user.Role})
	}
	s.InvalidateRole(ctx, email)
	return s.Profile(ctx, email)
}

func (s *service) DeleteUser(ctx context.Context, actorEmail, email string) error {
	if normalizeEmail(actorEmail) == normalizeEmail(email) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete your own account")
	}
	rows, err := s.repo.Delete(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	s.InvalidateRole(ctx, email)
	return nil
}

func (s *service) ListMembers(ctx context.Context) ([]models.User, error) {
	role := enums.RoleMember
	list, err := s.repo.List(ctx, &role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return list, nil
}

func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	list, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return list, nil
}

func (s *service) CountByRole(ctx context.Context) (map[enums.Role]int64, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	return counts, nil
}
