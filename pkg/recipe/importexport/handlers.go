// Package importexport moves recipes in and out of the API as a
// portable JSON format. Tags and ingredients travel by name, so an
// export can be imported under a different account and the names are
// re-created or matched there.
package importexport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/validation"
)

// Handler handles import/export requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// PortableRecipe represents a recipe in the exchange format
type PortableRecipe struct {
	Title       string   `json:"title"`
	TimeMinutes int      `json:"time_minutes"`
	Price       float64  `json:"price"`
	Link        string   `json:"link,omitempty"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Recipes []PortableRecipe `json:"recipes" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// getOrCreateTags matches the given names against the user's tags,
// creating any that do not exist yet.
func (h *Handler) getOrCreateTags(userID uint, names []string) []models.Tag {
	var tags []models.Tag
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var tag models.Tag
		if err := h.db.Where("user_id = ? AND name = ?", userID, name).First(&tag).Error; err != nil {
			tag = models.Tag{UserID: userID, Name: name}
			if err := h.db.Create(&tag).Error; err != nil {
				continue
			}
		}
		tags = append(tags, tag)
	}
	return tags
}

func (h *Handler) getOrCreateIngredients(userID uint, names []string) []models.Ingredient {
	var ingredients []models.Ingredient
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var ingredient models.Ingredient
		if err := h.db.Where("user_id = ? AND name = ?", userID, name).First(&ingredient).Error; err != nil {
			ingredient = models.Ingredient{UserID: userID, Name: name}
			if err := h.db.Create(&ingredient).Error; err != nil {
				continue
			}
		}
		ingredients = append(ingredients, ingredient)
	}
	return ingredients
}

// Import creates recipes from the portable format
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBinding(err)})
		return
	}

	result := ImportResult{
		Errors: []string{},
	}

	for i, portable := range req.Recipes {
		title := strings.TrimSpace(portable.Title)
		if title == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("recipe %d: title is required", i))
			result.Skipped++
			continue
		}
		if portable.TimeMinutes <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("recipe %d: time_minutes must be greater than 0", i))
			result.Skipped++
			continue
		}
		if portable.Price < 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("recipe %d: price must be 0 or more", i))
			result.Skipped++
			continue
		}

		// A title the user already has is skipped, which makes
		// re-importing an old export safe
		var count int64
		h.db.Model(&models.Recipe{}).Where("user_id = ? AND title = ?", userID, title).Count(&count)
		if count > 0 {
			result.Skipped++
			continue
		}

		recipe := models.Recipe{
			UserID:      userID,
			Title:       title,
			TimeMinutes: portable.TimeMinutes,
			Price:       portable.Price,
			Link:        strings.TrimSpace(portable.Link),
			Tags:        h.getOrCreateTags(userID, portable.Tags),
			Ingredients: h.getOrCreateIngredients(userID, portable.Ingredients),
		}

		if err := h.db.Create(&recipe).Error; err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("recipe %d: %v", i, err))
			result.Skipped++
			continue
		}

		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

// Export returns the user's recipes in the portable format
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var recipes []models.Recipe
	if err := h.db.Preload("Tags").Preload("Ingredients").
		Where("user_id = ?", userID).Order("id").Find(&recipes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipes"})
		return
	}

	portables := make([]PortableRecipe, len(recipes))
	for i, recipe := range recipes {
		tagNames := make([]string, len(recipe.Tags))
		for j, tag := range recipe.Tags {
			tagNames[j] = tag.Name
		}
		ingredientNames := make([]string, len(recipe.Ingredients))
		for j, ingredient := range recipe.Ingredients {
			ingredientNames[j] = ingredient.Name
		}

		portables[i] = PortableRecipe{
			Title:       recipe.Title,
			TimeMinutes: recipe.TimeMinutes,
			Price:       recipe.Price,
			Link:        recipe.Link,
			Tags:        tagNames,
			Ingredients: ingredientNames,
		}
	}

	// Set content disposition for download
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=recipes-export.json")
	}

	c.JSON(http.StatusOK, portables)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
