package announcements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
	"github.com/google/uuid"
)

const maxTitleLength = 200

type announcementsRepository interface {
	Create(ctx context.Context, announcement *models.Announcement) error
	List(ctx context.Context, params pagination.Params) ([]models.Announcement, int64, error)
}

type AnnouncementDTO struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListResult struct {
	Items []AnnouncementDTO `json:"items"`
	Page  pagination.Page   `json:"page"`
}

type Service interface {
	Create(ctx context.Context, authorEmail, title, description string) (*AnnouncementDTO, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo announcementsRepository
}

func NewService(repo announcementsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("announcements repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, authorEmail, title, description string) (*AnnouncementDTO, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and description are required")
	}
	if len(title) > maxTitleLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is too long")
	}

	announcement := &models.Announcement{
		Title:       title,
		Description: description,
		AuthorEmail: strings.ToLower(strings.TrimSpace(authorEmail)),
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create announcement")
	}
	return fromModel(announcement), nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	params = params.Normalize()
	list, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list announcements")
	}
	items := make([]AnnouncementDTO, 0, len(list))
	for i := range list {
		items = append(items, *fromModel(&list[i]))
	}
	return &ListResult{Items: items, Page: pagination.NewPage(params, total)}, nil
}

func fromModel(m *models.Announcement) *AnnouncementDTO {
	return &AnnouncementDTO{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		AuthorEmail: m.AuthorEmail,
		CreatedAt:   m.CreatedAt,
	}
}
