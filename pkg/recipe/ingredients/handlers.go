package ingredients

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/validation"
	"gorm.io/gorm"
)

// Handler handles ingredient-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new ingredients handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// IngredientResponse represents an ingredient in API responses
type IngredientResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CreateIngredientRequest represents the request to create or fully
// update an ingredient
type CreateIngredientRequest struct {
	Name string `json:"name" binding:"required"`
}

// PatchIngredientRequest represents a partial ingredient update
type PatchIngredientRequest struct {
	Name *string `json:"name"`
}

func ingredientToResponse(ingredient models.Ingredient) IngredientResponse {
	return IngredientResponse{ID: ingredient.ID, Name: ingredient.Name}
}

// nameTaken checks per-user name uniqueness, excluding the ingredient
// being updated so resubmitting the current name is not a conflict
func (h *Handler) nameTaken(userID uint, name string, excludeID uint) bool {
	var existing models.Ingredient
	query := h.db.Where("user_id = ? AND name = ?", userID, name)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	return query.First(&existing).Error == nil
}

func isTruthy(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

// List returns the user's ingredients, name descending
// @Summary List ingredients
// @Description Get the authenticated user's ingredients, ordered by name descending
// @Tags ingredients
// @Produce json
// @Param assigned_only query string false "Only ingredients used by at least one recipe (1 or true)"
// @Param name query string false "Substring filter on name"
// @Success 200 {array} IngredientResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /ingredients [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Where("ingredients.user_id = ?", userID).Order("ingredients.name DESC")

	if name := c.Query("name"); name != "" {
		query = query.Where("ingredients.name LIKE ?", "%"+name+"%")
	}

	if isTruthy(c.Query("assigned_only")) {
		query = query.
			Joins("INNER JOIN recipe_ingredients ON recipe_ingredients.ingredient_id = ingredients.id").
			Group("ingredients.id")
	}

	var items []models.Ingredient
	if err := query.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ingredients"})
		return
	}

	responses := make([]IngredientResponse, len(items))
	for i, ingredient := range items {
		responses[i] = ingredientToResponse(ingredient)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new ingredient
// @Summary Create an ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param request body CreateIngredientRequest true "Ingredient details"
// @Success 201 {object} IngredientResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /ingredients [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateIngredientRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	name := strings.TrimSpace(req.Name)
	if len(errs["name"]) == 0 {
		if name == "" {
			errs.Add("name", "this field is required")
		} else if h.nameTaken(userID, name, 0) {
			errs.Add("name", "you already have an ingredient with this name")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	ingredient := models.Ingredient{UserID: userID, Name: name}
	if err := h.db.Create(&ingredient).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ingredient"})
		return
	}

	c.JSON(http.StatusCreated, ingredientToResponse(ingredient))
}

// Get returns a single ingredient
// @Summary Get an ingredient
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} IngredientResponse
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /ingredients/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ingredientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient ID"})
		return
	}

	var ingredient models.Ingredient
	if err := h.db.Where("id = ? AND user_id = ?", ingredientID, userID).First(&ingredient).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
		return
	}

	c.JSON(http.StatusOK, ingredientToResponse(ingredient))
}

// Update fully updates an ingredient
// @Summary Update an ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param id path int true "Ingredient ID"
// @Param request body CreateIngredientRequest true "Ingredient details"
// @Success 200 {object} IngredientResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /ingredients/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ingredientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient ID"})
		return
	}

	var ingredient models.Ingredient
	if err := h.db.Where("id = ? AND user_id = ?", ingredientID, userID).First(&ingredient).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
		return
	}

	var req CreateIngredientRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	name := strings.TrimSpace(req.Name)
	if len(errs["name"]) == 0 {
		if name == "" {
			errs.Add("name", "this field is required")
		} else if h.nameTaken(userID, name, ingredient.ID) {
			errs.Add("name", "you already have an ingredient with this name")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	ingredient.Name = name
	if err := h.db.Save(&ingredient).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ingredient"})
		return
	}

	c.JSON(http.StatusOK, ingredientToResponse(ingredient))
}

// Patch partially updates an ingredient
// @Summary Partially update an ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param id path int true "Ingredient ID"
// @Param request body PatchIngredientRequest true "Fields to update"
// @Success 200 {object} IngredientResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /ingredients/{id} [patch]
func (h *Handler) Patch(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ingredientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient ID"})
		return
	}

	var ingredient models.Ingredient
	if err := h.db.Where("id = ? AND user_id = ?", ingredientID, userID).First(&ingredient).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
		return
	}

	var req PatchIngredientRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	if req.Name != nil && len(errs["name"]) == 0 {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			errs.Add("name", "must not be blank")
		} else if h.nameTaken(userID, name, ingredient.ID) {
			errs.Add("name", "you already have an ingredient with this name")
		} else {
			ingredient.Name = name
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	if err := h.db.Save(&ingredient).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ingredient"})
		return
	}

	c.JSON(http.StatusOK, ingredientToResponse(ingredient))
}

// Delete deletes an ingredient
// @Summary Delete an ingredient
// @Tags ingredients
// @Param id path int true "Ingredient ID"
// @Success 204 "Ingredient deleted"
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /ingredients/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ingredientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient ID"})
		return
	}

	var ingredient models.Ingredient
	if err := h.db.Where("id = ? AND user_id = ?", ingredientID, userID).First(&ingredient).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ingredient).Association("Recipes").Clear(); err != nil {
			return err
		}
		return tx.Delete(&ingredient).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete ingredient"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers ingredient routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ingredients", h.List)
	rg.POST("/ingredients", h.Create)
	rg.GET("/ingredients/:id", h.Get)
	rg.PUT("/ingredients/:id", h.Update)
	rg.PATCH("/ingredients/:id", h.Patch)
	rg.DELETE("/ingredients/:id", h.Delete)
}
