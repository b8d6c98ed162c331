package tags

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

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CreateTagRequest represents the request to create or fully update a tag
type CreateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// PatchTagRequest represents a partial tag update
type PatchTagRequest struct {
	Name *string `json:"name"`
}

func tagToResponse(tag models.Tag) TagResponse {
	return TagResponse{ID: tag.ID, Name: tag.Name}
}

// nameTaken checks per-user name uniqueness, excluding the tag being
// updated so resubmitting the current name is not a conflict
func (h *Handler) nameTaken(userID uint, name string, excludeID uint) bool {
	var existing models.Tag
	query := h.db.Where("user_id = ? AND name = ?", userID, name)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	return query.First(&existing).Error == nil
}

// isTruthy interprets query-param flags: 1, true, TRUE and friends
func isTruthy(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

// List returns the user's tags, newest name first
// @Summary List tags
// @Description Get the authenticated user's tags, ordered by name descending
// @Tags tags
// @Produce json
// @Param assigned_only query string false "Only tags attached to at least one recipe (1 or true)"
// @Param name query string false "Substring filter on name"
// @Success 200 {array} TagResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Where("tags.user_id = ?", userID).Order("tags.name DESC")

	if name := c.Query("name"); name != "" {
		query = query.Where("tags.name LIKE ?", "%"+name+"%")
	}

	if isTruthy(c.Query("assigned_only")) {
		// Inner join keeps only tags attached to a recipe; grouping
		// collapses tags used by several recipes into one row
		query = query.
			Joins("INNER JOIN recipe_tags ON recipe_tags.tag_id = tags.id").
			Group("tags.id")
	}

	var tags []models.Tag
	if err := query.Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	responses := make([]TagResponse, len(tags))
	for i, tag := range tags {
		responses[i] = tagToResponse(tag)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new tag
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag details"
// @Success 201 {object} TagResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /tags [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateTagRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	name := strings.TrimSpace(req.Name)
	if len(errs["name"]) == 0 {
		if name == "" {
			errs.Add("name", "this field is required")
		} else if h.nameTaken(userID, name, 0) {
			errs.Add("name", "you already have a tag with this name")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	tag := models.Tag{UserID: userID, Name: name}
	if err := h.db.Create(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	c.JSON(http.StatusCreated, tagToResponse(tag))
}

// Get returns a single tag
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} TagResponse
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return
	}

	// Another user's tag is indistinguishable from a missing one
	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	c.JSON(http.StatusOK, tagToResponse(tag))
}

// Update fully updates a tag
// @Summary Update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path int true "Tag ID"
// @Param request body CreateTagRequest true "Tag details"
// @Success 200 {object} TagResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return
	}

	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var req CreateTagRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	name := strings.TrimSpace(req.Name)
	if len(errs["name"]) == 0 {
		if name == "" {
			errs.Add("name", "this field is required")
		} else if h.nameTaken(userID, name, tag.ID) {
			errs.Add("name", "you already have a tag with this name")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	tag.Name = name
	if err := h.db.Save(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	c.JSON(http.StatusOK, tagToResponse(tag))
}

// Patch partially updates a tag
// @Summary Partially update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path int true "Tag ID"
// @Param request body PatchTagRequest true "Fields to update"
// @Success 200 {object} TagResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [patch]
func (h *Handler) Patch(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return
	}

	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var req PatchTagRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	if req.Name != nil && len(errs["name"]) == 0 {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			errs.Add("name", "must not be blank")
		} else if h.nameTaken(userID, name, tag.ID) {
			errs.Add("name", "you already have a tag with this name")
		} else {
			tag.Name = name
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	if err := h.db.Save(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	c.JSON(http.StatusOK, tagToResponse(tag))
}

// Delete deletes a tag
// @Summary Delete a tag
// @Tags tags
// @Param id path int true "Tag ID"
// @Success 204 "Tag deleted"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return
	}

	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	// Join rows must go with the tag or assigned_only would keep
	// counting recipes against a tag that no longer exists
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Recipes").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
	rg.GET("/tags/:id", h.Get)
	rg.PUT("/tags/:id", h.Update)
	rg.PATCH("/tags/:id", h.Patch)
	rg.DELETE("/tags/:id", h.Delete)
}
