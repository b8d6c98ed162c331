package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/validation"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateMeRequest represents a profile update. Pointer fields
// distinguish "not sent" from "sent empty".
type UpdateMeRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=5"`
	Name     *string `json:"name"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register handles user registration
// @Summary Register a new user
// @Description Create a new user account and receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	email := NormalizeEmail(req.Email)

	// Uniqueness is reported alongside any other field problems
	if email != "" && len(errs["email"]) == 0 {
		var existing models.User
		if err := h.db.Where("email = ?", email).First(&existing).Error; err == nil {
			errs.Add("email", "a user with this email already exists")
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := GenerateToken(user.ID, user.Email, user.IsStaff, user.IsSuperuser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: userResponse(&user)})
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]string "Invalid credentials or malformed request"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBinding(err)})
		return
	}

	// Bad credentials are a 400, and the response never says whether
	// the email exists
	var user models.User
	if err := h.db.Where("email = ?", NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := GenerateToken(user.ID, user.Email, user.IsStaff, user.IsSuperuser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: userResponse(&user)})
}

// Me returns the current authenticated user
// @Summary Get current user
// @Description Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, userResponse(&user))
}

// UpdateMe updates the current user's profile
// @Summary Update current user
// @Description Update the authenticated user's name, email or password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body UpdateMeRequest true "Fields to update"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]interface{} "Field-keyed validation errors"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /auth/me [patch]
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateMeRequest
	errs := validation.New()
	if err := c.ShouldBindJSON(&req); err != nil {
		errs = validation.FromBinding(err)
	}

	var email string
	if req.Email != nil {
		email = NormalizeEmail(*req.Email)
		if email == "" {
			errs.Add("email", "must not be blank")
		} else if len(errs["email"]) == 0 {
			var existing models.User
			if err := h.db.Where("email = ? AND id <> ?", email, user.ID).First(&existing).Error; err == nil {
				errs.Add("email", "a user with this email already exists")
			}
		}
	}
	if req.Password != nil && *req.Password == "" {
		errs.Add("password", "must not be blank")
	}
	if req.Name != nil && *req.Name == "" {
		errs.Add("name", "must not be blank")
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	if req.Email != nil {
		user.Email = email
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		hashedPassword, err := HashPassword(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
			return
		}
		user.PasswordHash = hashedPassword
	}

	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, userResponse(&user))
}

// Logout handles user logout (client-side token invalidation)
// @Summary Logout
// @Description Logout the current user (client-side token invalidation)
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logged out successfully"
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", AuthMiddleware(), h.Me)
	rg.PATCH("/me", AuthMiddleware(), h.UpdateMe)
}
