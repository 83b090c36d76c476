package users

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)
	return r.DB(ctx).Create(user).Error
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateRole overwrites the role and returns the number of affected rows.
func (r *Repository) UpdateRole(ctx context.Context, email string, role enums.Role) (int64, error) {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		Update("role", role)
	return res.RowsAffected, res.Error
}

// TransitionRole moves the role from one value to another only when the
// stored role still equals from.
func (r *Repository) TransitionRole(ctx context.Context, email string, from, to enums.Role) (int64, error) {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("email = ? AND role = ?", normalizeEmail(email), from).
		Update("role", to)
	return res.RowsAffected, res.Error
}

// PromoteToMember upgrades a user-role record to member, creating the record
// as member when the tenant never registered. Records already above user are
// left untouched and reported as not promoted.
func (r *Repository) PromoteToMember(ctx context.Context, email, name string) (bool, error) {
	rows, err := r.TransitionRole(ctx, email, enums.RoleUser, enums.RoleMember)
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	if _, err := r.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := r.Create(ctx, &models.User{Email: email, Name: name, Role: enums.RoleMember}); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the user and returns the number of affected rows.
func (r *Repository) Delete(ctx context.Context, email string) (int64, error) {
	res := r.DB(ctx).Where("email = ?", normalizeEmail(email)).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// List returns users ordered by email, optionally filtered by role.
func (r *Repository) List(ctx context.Context, role *enums.Role) ([]models.User, error) {
	var out []models.User
	query := r.DB(ctx).Order("email ASC")
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountByRole returns the number of users per role.
func (r *Repository) CountByRole(ctx context.Context) (map[enums.Role]int64, error) {
	var rows []struct {
		Role  enums.Role
		Count int64
	}
	if err := r.DB(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Promoter runs PromoteToMember inside a transaction owned by another workflow.
type Promoter struct {
	repo *Repository
}

func NewPromoter(repo *Repository) *Promoter {
	return &Promoter{repo: repo}
}

func (p *Promoter) PromoteToMember(ctx context.Context, tx *gorm.DB, email, name string) (bool, error) {
	return p.repo.WithTx(tx).PromoteToMember(ctx, email, name)
}
