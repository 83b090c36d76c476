package models

import (
	"time"

	"github.com/google/uuid"
)

type Announcement struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null"`
	AuthorEmail string    `gorm:"column:author_email;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
