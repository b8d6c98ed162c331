package models

import "time"

// Recipe is the central model: a dish owned by a user, carrying its
// preparation time, price, an optional source link and an optional
// uploaded image. Tags and ingredients attach through join tables and
// must belong to the same user as the recipe.
type Recipe struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_recipe_user_title" json:"user_id"`
	Title       string    `gorm:"not null;uniqueIndex:idx_recipe_user_title" json:"title"`
	TimeMinutes int       `gorm:"not null" json:"time_minutes"`
	Price       float64   `gorm:"not null" json:"price"`
	Link        string    `json:"link"`
	Image       string    `json:"-"` // Stored filename; exposed as a /media URL by the handlers

	// Relationships
	User        User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tags        []Tag        `gorm:"many2many:recipe_tags;" json:"tags,omitempty"`
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients;" json:"ingredients,omitempty"`
}
