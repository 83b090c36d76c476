package models

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
)

// User maps an identity email to its role.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string     `gorm:"type:text;not null;uniqueIndex"`
	Name      string     `gorm:"column:name;not null"`
	PhotoURL  *string    `gorm:"column:photo_url"`
	Role      enums.Role `gorm:"column:role;type:user_role;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
