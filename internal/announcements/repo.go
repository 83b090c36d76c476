package announcements

import (
	"context"

	"github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == uuid.Nil {
		announcement.ID = uuid.New()
	}
	return r.DB(ctx).Create(announcement).Error
}

// List returns one page of announcements, newest first.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Announcement, int64, error) {
	var total int64
	if err := r.DB(ctx).Model(&models.Announcement{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	params = params.Normalize()
	var out []models.Announcement
	if err := r.DB(ctx).
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
