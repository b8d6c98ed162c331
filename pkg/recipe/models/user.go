package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the system. Email is the login
// identifier and is stored lower-cased.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `json:"name"`
	IsStaff      bool           `gorm:"default:false" json:"is_staff"`     // Grants access to the admin API
	IsSuperuser  bool           `gorm:"default:false" json:"is_superuser"` // Staff plus the right to manage other staff

	// Relationships
	Tags        []Tag        `gorm:"foreignKey:UserID" json:"tags,omitempty"`
	Ingredients []Ingredient `gorm:"foreignKey:UserID" json:"ingredients,omitempty"`
	Recipes     []Recipe     `gorm:"foreignKey:UserID" json:"recipes,omitempty"`
	APIKeys     []APIKey     `gorm:"foreignKey:UserID" json:"api_keys,omitempty"`
}
