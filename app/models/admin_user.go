package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is an operator account for the admin API surface.
type AdminUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"username" validate:"required,min=3,max=64"`
	PasswordHash string    `gorm:"type:varchar(100);not null" json:"-"`
	Disabled     bool      `gorm:"default:false" json:"disabled"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (u *AdminUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
