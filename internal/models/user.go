package models

import (
	"time"

	"slippers/internal/domain"

	"gorm.io/gorm"
)

// User is the order owner. Credentials and sessions live with the auth provider.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:128" json:"name"`
	Role      string         `gorm:"size:20;not null;default:'CUSTOMER';index" json:"role"` // CUSTOMER | ADMIN
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }

func (User) TableName() string {
	return "users"
}
