package models

import "time"

// Tag represents a label a user applies to their recipes, e.g. "vegan"
// or "dessert". Names are unique per user, not globally, so two users
// can each have their own "breakfast" tag.
//
// Tags are deleted for real rather than soft-deleted: a soft-deleted
// row would keep occupying the per-user name slot and block the user
// from recreating a tag with the same name.
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_tag_user_name" json:"user_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_tag_user_name" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Recipes []Recipe `gorm:"many2many:recipe_tags;" json:"recipes,omitempty"`
}
