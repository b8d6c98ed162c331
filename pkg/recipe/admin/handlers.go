// Package admin implements the staff-only management endpoints for
// users and system statistics.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/validation"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	CreatedAt   string `json:"created_at"`
	RecipeCount int64  `json:"recipe_count"`
	TagCount    int64  `json:"tag_count"`
}

// CreateUserRequest represents the request to create a user
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=5"`
	Name        string `json:"name" binding:"required"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Email       *string `json:"email" binding:"omitempty,email"`
	Password    *string `json:"password" binding:"omitempty,min=5"`
	Name        *string `json:"name"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers       int64 `json:"total_users"`
	TotalRecipes     int64 `json:"total_recipes"`
	TotalTags        int64 `json:"total_tags"`
	TotalIngredients int64 `json:"total_ingredients"`
	RecipesWithImage int64 `json:"recipes_with_image"`
	StaffUsers       int64 `json:"staff_users"`
	ActiveAPIKeys    int64 `json:"active_api_keys"`
}

func (h *Handler) userToResponse(user models.User) UserResponse {
	var recipeCount, tagCount int64
	h.db.Model(&models.Recipe{}).Where("user_id = ?", user.ID).Count(&recipeCount)
	h.db.Model(&models.Tag{}).Where("user_id = ?", user.ID).Count(&tagCount)

	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		RecipeCount: recipeCount,
		TagCount:    tagCount,
	}
}

// ListUsers returns all users (staff only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("created_at DESC")

	// Optional search by email or name
	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Optional filter by staff flag
	if raw := c.Query("is_staff"); raw != "" {
		if isStaff, err := strconv.ParseBool(raw); err == nil {
			query = query.Where("is_staff = ?", isStaff)
		}
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.userToResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (staff only)
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.userToResponse(user))
}

// CreateUser creates a new user, optionally with staff flags (staff only)
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	email := auth.NormalizeEmail(req.Email)
	if email != "" && len(errs["email"]) == 0 {
		var count int64
		h.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
		if count > 0 {
			errs.Add("email", "a user with this email already exists")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
		IsStaff:      req.IsStaff,
		IsSuperuser:  req.IsSuperuser,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, h.userToResponse(user))
}

// UpdateUser updates a user's profile and flags (staff only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	// Prevent staff from locking themselves out
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.IsStaff != nil && !*req.IsStaff {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove your own staff access"})
		return
	}

	updates := make(map[string]interface{})
	if req.Email != nil {
		email := auth.NormalizeEmail(*req.Email)
		if email == "" {
			errs.Add("email", "must not be blank")
		} else if len(errs["email"]) == 0 {
			var count int64
			h.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count)
			if count > 0 {
				errs.Add("email", "a user with this email already exists")
			} else {
				updates["email"] = email
			}
		}
	}
	if req.Name != nil {
		if *req.Name == "" {
			errs.Add("name", "must not be blank")
		} else {
			updates["name"] = *req.Name
		}
	}
	if req.Password != nil && len(errs["password"]) == 0 {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		updates["password_hash"] = hash
	}
	if req.IsStaff != nil {
		updates["is_staff"] = *req.IsStaff
	}
	if req.IsSuperuser != nil {
		updates["is_superuser"] = *req.IsSuperuser
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, id)
	c.JSON(http.StatusOK, h.userToResponse(user))
}

// DeleteUser deletes a user and everything they own (staff only)
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent staff from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		// Join rows first, then the rows they point at
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id IN (SELECT id FROM recipes WHERE user_id = ?)", user.ID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM recipe_ingredients WHERE recipe_id IN (SELECT id FROM recipes WHERE user_id = ?)", user.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Recipe{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Ingredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics (staff only)
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Recipe{}).Count(&stats.TotalRecipes)
	h.db.Model(&models.Tag{}).Count(&stats.TotalTags)
	h.db.Model(&models.Ingredient{}).Count(&stats.TotalIngredients)
	h.db.Model(&models.APIKey{}).Count(&stats.ActiveAPIKeys)

	h.db.Model(&models.Recipe{}).Where("image != ''").Count(&stats.RecipesWithImage)
	h.db.Model(&models.User{}).Where("is_staff = ?", true).Count(&stats.StaffUsers)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.POST("/users", h.CreateUser)
	rg.GET("/users/:id", h.GetUser)
	rg.PATCH("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
