package models

import "time"

// User represents the user model in the database
type User struct {
	Base
	Email               string       `gorm:"uniqueIndex;not null" json:"email"`
	Password            string       `gorm:"not null" json:"-"`
	DisplayName         string       `json:"display_name"`
	PhotoURL            string       `json:"photo_url,omitempty"`
	IsActive            bool         `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string       `gorm:"size:64" json:"-"`
	FailedLoginAttempts int          `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time   `json:"-"`
	LastLoginAt         *time.Time   `json:"last_login_at,omitempty"`
	Books               []BudgetBook `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"books,omitempty"`
}
