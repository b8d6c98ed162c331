package models

import "time"

// Ingredient represents an ingredient a user tracks across their
// recipes. Like tags, names are unique per user and rows are deleted
// for real so the name can be reused afterwards.
type Ingredient struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_ingredient_user_name" json:"user_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_ingredient_user_name" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Recipes []Recipe `gorm:"many2many:recipe_ingredients;" json:"recipes,omitempty"`
}
