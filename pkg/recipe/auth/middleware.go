package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeyIsStaff is the key for the staff flag in gin context
	ContextKeyIsStaff = "is_staff"
	// ContextKeyIsSuperuser is the key for the superuser flag in gin context
	ContextKeyIsSuperuser = "is_superuser"
)

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := ValidateToken(tokenString)
		if err != nil {
			if err == ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		// Set user info in context
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyIsStaff, claims.IsStaff)
		c.Set(ContextKeyIsSuperuser, claims.IsSuperuser)

		c.Next()
	}
}

// RequireStaff middleware checks if the user has the staff flag
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		isStaff, exists := c.Get(ContextKeyIsStaff)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if isStaff != true {
			c.JSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	return email.(string), true
}

// IsStaff reports whether the current user has the staff flag
func IsStaff(c *gin.Context) bool {
	isStaff, exists := c.Get(ContextKeyIsStaff)
	if !exists {
		return false
	}
	return isStaff == true
}

// IsSuperuser reports whether the current user has the superuser flag
func IsSuperuser(c *gin.Context) bool {
	isSuperuser, exists := c.Get(ContextKeyIsSuperuser)
	if !exists {
		return false
	}
	return isSuperuser == true
}
