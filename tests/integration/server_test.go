package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/admin"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/apikeys"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/importexport"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/ingredients"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/media"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/recipes"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/tags"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// setupFullServer creates a Gin engine with all routes registered
// This mirrors the setup in cmd/recipe-server/main.go
func setupFullServer(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	storage, err := media.NewStorage(t.TempDir(), "recipes")
	if err != nil {
		t.Fatalf("Failed to create media storage: %v", err)
	}
	mediaURL := media.URLPath("/media", "recipes")

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "recipe-api",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db)

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(db)
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Tags routes (protected - accepts JWT or API key)
		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Ingredients routes (protected - accepts JWT or API key)
		ingredientsHandler := ingredients.NewHandler(db)
		ingredientsHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Recipes routes (protected - accepts JWT or API key)
		recipesHandler := recipes.NewHandler(db, storage, mediaURL)
		recipesHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Import/Export routes (protected - accepts JWT or API key)
		importExportHandler := importexport.NewHandler(db)
		importExportHandler.RegisterRoutes(api.Group("/recipes", combinedAuth))

		// Admin routes (staff only)
		adminHandler := admin.NewHandler(db)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireStaff())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Uploaded recipe images (public)
	r.Static(mediaURL, storage.Root())

	return r
}

// registerUser registers a user through the API and returns their JWT token
func registerUser(t *testing.T, router *gin.Engine, email, password, name string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
	req, _ := http.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to register %s: status %d, body %s", email, resp.Code, resp.Body.String())
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse register response: %v", err)
	}
	return result.Token
}

// doJSON sends a JSON request with an optional bearer token
func doJSON(router *gin.Engine, method, url, token string, payload interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if payload != nil {
		body, _ := json.Marshal(payload)
		reader = bytes.NewReader(body)
	}
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// multipartRecipe builds a multipart form body with the given fields and an optional image file
func multipartRecipe(t *testing.T, fields map[string]string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("Failed to write form field %s: %v", key, err)
		}
	}
	if imageData != nil {
		part, err := w.CreateFormFile("image", "upload.png")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write(imageData); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// TestServerStartup verifies that all routes can be registered without conflicts
// This test would fail if there are route conflicts (like /recipes/export vs /recipes/:id)
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(t, db)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestHealthEndpoint verifies the health endpoint responds correctly
func TestHealthEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	req, _ := http.NewRequest("GET", "/health", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestAPIHealthEndpoint verifies the API health endpoint responds correctly
func TestAPIHealthEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	req, _ := http.NewRequest("GET", "/api/health", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/tags"},
		{"POST", "/api/tags"},
		{"GET", "/api/ingredients"},
		{"GET", "/api/recipes"},
		{"POST", "/api/recipes"},
		{"GET", "/api/recipes/export"},
		{"GET", "/api/api-keys"},
		{"GET", "/api/admin/stats"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"POST", "/api/auth/register", http.StatusBadRequest},      // Bad request (no body), but not 401
		{"POST", "/api/auth/login", http.StatusBadRequest},         // Bad request (no body), but not 401
		{"GET", "/media/recipes/missing.png", http.StatusNotFound}, // 404 for missing file, but not 401
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestFullRecipeFlow walks a user through the whole API surface
func TestFullRecipeFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	token := registerUser(t, router, "cook@example.com", "secret123", "Cook")

	resp := doJSON(router, "POST", "/api/tags", token, map[string]string{"name": "dessert"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create tag: status %d, body %s", resp.Code, resp.Body.String())
	}
	var tag struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &tag)

	resp = doJSON(router, "POST", "/api/ingredients", token, map[string]string{"name": "sugar"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create ingredient: status %d, body %s", resp.Code, resp.Body.String())
	}
	var ingredient struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &ingredient)

	resp = doJSON(router, "POST", "/api/recipes", token, map[string]interface{}{
		"title":        "Chocolate cake",
		"time_minutes": 45,
		"price":        12.50,
		"tags":         []uint{tag.ID},
		"ingredients":  []uint{ingredient.ID},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create recipe: status %d, body %s", resp.Code, resp.Body.String())
	}
	var recipe struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &recipe)

	resp = doJSON(router, "GET", "/api/recipes", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to list recipes: status %d", resp.Code)
	}
	var list []struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Fatalf("Expected 1 recipe, got %d", len(list))
	}

	recipeURL := fmt.Sprintf("/api/recipes/%d", recipe.ID)
	resp = doJSON(router, "GET", recipeURL, token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to get recipe: status %d", resp.Code)
	}
	var detail struct {
		Title string `json:"title"`
		Tags  []struct {
			Name string `json:"name"`
		} `json:"tags"`
		Ingredients []struct {
			Name string `json:"name"`
		} `json:"ingredients"`
	}
	json.Unmarshal(resp.Body.Bytes(), &detail)
	if detail.Title != "Chocolate cake" {
		t.Errorf("Expected title 'Chocolate cake', got %q", detail.Title)
	}
	if len(detail.Tags) != 1 || detail.Tags[0].Name != "dessert" {
		t.Errorf("Expected tag 'dessert' in detail, got %+v", detail.Tags)
	}
	if len(detail.Ingredients) != 1 || detail.Ingredients[0].Name != "sugar" {
		t.Errorf("Expected ingredient 'sugar' in detail, got %+v", detail.Ingredients)
	}

	resp = doJSON(router, "PATCH", recipeURL, token, map[string]string{"title": "Carrot cake"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to patch recipe: status %d, body %s", resp.Code, resp.Body.String())
	}
	var patched struct {
		Title string `json:"title"`
	}
	json.Unmarshal(resp.Body.Bytes(), &patched)
	if patched.Title != "Carrot cake" {
		t.Errorf("Expected patched title 'Carrot cake', got %q", patched.Title)
	}

	resp = doJSON(router, "DELETE", recipeURL, token, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204 on delete, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", recipeURL, token, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", resp.Code)
	}
}

// TestAPIKeyFlow verifies a created API key authenticates recipe requests but not key management
func TestAPIKeyFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	token := registerUser(t, router, "keyuser@example.com", "secret123", "Key User")

	resp := doJSON(router, "POST", "/api/api-keys", token, map[string]string{"description": "integration"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create API key: status %d, body %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Key string `json:"key"`
	}
	json.Unmarshal(resp.Body.Bytes(), &created)
	if created.Key == "" {
		t.Fatal("Expected full key in create response")
	}

	// The raw key works wherever the combined middleware is mounted
	resp = doJSON(router, "GET", "/api/recipes", created.Key, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 with API key, got %d: %s", resp.Code, resp.Body.String())
	}

	// Key management stays JWT only
	resp = doJSON(router, "GET", "/api/api-keys", created.Key, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 managing keys with an API key, got %d", resp.Code)
	}
}

// TestUsersAreIsolated verifies one user can never see or touch another user's recipes
func TestUsersAreIsolated(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	tokenA := registerUser(t, router, "alice@example.com", "secret123", "Alice")
	tokenB := registerUser(t, router, "bob@example.com", "secret123", "Bob")

	resp := doJSON(router, "POST", "/api/recipes", tokenA, map[string]interface{}{
		"title":        "Alice's stew",
		"time_minutes": 90,
		"price":        8.00,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create recipe: status %d, body %s", resp.Code, resp.Body.String())
	}
	var recipe struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &recipe)
	recipeURL := fmt.Sprintf("/api/recipes/%d", recipe.ID)

	resp = doJSON(router, "GET", "/api/recipes", tokenB, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to list recipes: status %d", resp.Code)
	}
	var list []struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("Expected empty list for other user, got %d recipes", len(list))
	}

	resp = doJSON(router, "GET", recipeURL, tokenB, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for other user's recipe, got %d", resp.Code)
	}

	resp = doJSON(router, "DELETE", recipeURL, tokenB, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 deleting other user's recipe, got %d", resp.Code)
	}

	// Still there for the owner
	resp = doJSON(router, "GET", recipeURL, tokenA, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for owner after failed delete, got %d", resp.Code)
	}
}

// TestExportImportOverHTTP round-trips recipes between two accounts through the API
func TestExportImportOverHTTP(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	tokenA := registerUser(t, router, "exporter@example.com", "secret123", "Exporter")
	tokenB := registerUser(t, router, "importer@example.com", "secret123", "Importer")

	resp := doJSON(router, "POST", "/api/tags", tokenA, map[string]string{"name": "japanese"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create tag: status %d", resp.Code)
	}
	var tag struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &tag)

	resp = doJSON(router, "POST", "/api/recipes", tokenA, map[string]interface{}{
		"title":        "Miso soup",
		"time_minutes": 15,
		"price":        4.50,
		"tags":         []uint{tag.ID},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create recipe: status %d, body %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(router, "GET", "/api/recipes/export", tokenA, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to export: status %d, body %s", resp.Code, resp.Body.String())
	}
	var exported []map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &exported); err != nil {
		t.Fatalf("Failed to parse export: %v", err)
	}
	if len(exported) != 1 {
		t.Fatalf("Expected 1 exported recipe, got %d", len(exported))
	}

	resp = doJSON(router, "POST", "/api/recipes/import", tokenB, map[string]interface{}{"recipes": exported})
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to import: status %d, body %s", resp.Code, resp.Body.String())
	}
	var result struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Imported != 1 || result.Skipped != 0 {
		t.Errorf("Expected 1 imported and 0 skipped, got %d and %d", result.Imported, result.Skipped)
	}

	resp = doJSON(router, "GET", "/api/recipes", tokenB, nil)
	var list []struct {
		Title string `json:"title"`
	}
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Title != "Miso soup" {
		t.Errorf("Expected imported 'Miso soup' in importer's list, got %+v", list)
	}
}

// TestRecipeImageUploadAndServe uploads an image and fetches it back through the media route
func TestRecipeImageUploadAndServe(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	token := registerUser(t, router, "photographer@example.com", "secret123", "Photographer")

	body, contentType := multipartRecipe(t, map[string]string{
		"title":        "Pancakes",
		"time_minutes": "20",
		"price":        "3.50",
	}, pngBytes(t))

	req, _ := http.NewRequest("POST", "/api/recipes", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create recipe with image: status %d, body %s", resp.Code, resp.Body.String())
	}
	var recipe struct {
		Image *string `json:"image"`
	}
	json.Unmarshal(resp.Body.Bytes(), &recipe)
	if recipe.Image == nil {
		t.Fatal("Expected image URL in response")
	}

	imgReq, _ := http.NewRequest("GET", *recipe.Image, nil)
	imgResp := httptest.NewRecorder()
	router.ServeHTTP(imgResp, imgReq)

	if imgResp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 fetching %s, got %d", *recipe.Image, imgResp.Code)
	}
	if imgResp.Body.Len() == 0 {
		t.Error("Expected image bytes in response body")
	}
}

// TestAdminAccessOverHTTP verifies the staff gate and that a fresh staff token opens it
func TestAdminAccessOverHTTP(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(t, db)

	token := registerUser(t, router, "regular@example.com", "secret123", "Regular")

	resp := doJSON(router, "GET", "/api/admin/stats", token, nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-staff user, got %d", resp.Code)
	}

	// Staff status lives in the token claims, so a re-login is needed after promotion
	if err := db.Model(&models.User{}).Where("email = ?", "regular@example.com").Update("is_staff", true).Error; err != nil {
		t.Fatalf("Failed to promote user: %v", err)
	}
	resp = doJSON(router, "POST", "/api/auth/login", "", map[string]string{
		"email":    "regular@example.com",
		"password": "secret123",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to log in after promotion: status %d", resp.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &login)

	resp = doJSON(router, "GET", "/api/admin/stats", login.Token, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for staff user, got %d: %s", resp.Code, resp.Body.String())
	}
	var stats struct {
		TotalUsers int64 `json:"total_users"`
	}
	json.Unmarshal(resp.Body.Bytes(), &stats)
	if stats.TotalUsers != 1 {
		t.Errorf("Expected 1 total user in stats, got %d", stats.TotalUsers)
	}
}
