package apikeys

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	handler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

	// Probe route for exercising the combined middleware
	protected := api.Group("", CombinedAuthMiddleware(db))
	protected.GET("/whoami", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, user.IsStaff, user.IsSuperuser)
	return "Bearer " + token
}

func createKeyViaAPI(t *testing.T, router *gin.Engine, user models.User, description string) CreateAPIKeyResponse {
	body := CreateAPIKeyRequest{Description: description}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/api/api-keys", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response CreateAPIKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	return response
}

func TestCreateAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	response := createKeyViaAPI(t, router, user, "CI access")

	if len(response.Key) != KeyLength*2 {
		t.Errorf("Expected %d char key, got %d", KeyLength*2, len(response.Key))
	}
	if response.KeyPrefix != response.Key[:KeyPrefixLength] {
		t.Errorf("Expected prefix to match key start, got %s", response.KeyPrefix)
	}
	if response.Description != "CI access" {
		t.Errorf("Expected description to round-trip, got %s", response.Description)
	}
}

func TestListAPIKeysHidesFullKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	created := createKeyViaAPI(t, router, user, "only once")

	req, _ := http.NewRequest("GET", "/api/api-keys", nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var keys []APIKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &keys)
	if len(keys) != 1 {
		t.Fatalf("Expected 1 key, got %d", len(keys))
	}

	if bytes.Contains(resp.Body.Bytes(), []byte(created.Key)) {
		t.Error("Full key must not appear in list responses")
	}
}

func TestDeleteAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	created := createKeyViaAPI(t, router, user, "")

	req, _ := http.NewRequest("DELETE", "/api/api-keys/1", nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// The key no longer authenticates
	req, _ = http.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+created.Key)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for deleted key, got %d", resp.Code)
	}
}

func TestDeleteOtherUsersAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	createKeyViaAPI(t, router, owner, "")

	req, _ := http.NewRequest("DELETE", "/api/api-keys/1", nil)
	req.Header.Set("Authorization", getAuthHeader(other))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestCombinedAuthWithAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	created := createKeyViaAPI(t, router, user, "")

	req, _ := http.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+created.Key)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response struct {
		UserID uint `json:"user_id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.UserID != user.ID {
		t.Errorf("Expected user ID %d, got %d", user.ID, response.UserID)
	}
}

func TestCombinedAuthWithJWT(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	req, _ := http.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCombinedAuthRejectsGarbage(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer deadbeefdeadbeef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	req, _ = http.NewRequest("GET", "/api/whoami", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without header, got %d", resp.Code)
	}
}
